// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/petar-djukic/go-c2rust/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(file string, kind types.Kind, name string) types.ItemID {
	return types.ItemID{File: file, Kind: kind, Name: name}
}

func TestCommit_SameNameFromTwoFilesKeepsFirst(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()

	ok, d := l.Commit(ctx, id("a.h", types.KindAggregate, "Point"), "pub struct Point { pub x: i32, pub y: i32 }")
	assert.True(t, ok)
	assert.Equal(t, DecisionAdded, d)

	ok, d = l.Commit(ctx, id("b.h", types.KindAggregate, "Point"), "pub struct Point { pub x: f64, pub y: f64 }")
	assert.False(t, ok)
	assert.Equal(t, DecisionDuplicate, d)

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "a.h", snap[0].Origin.File)
	assert.Equal(t, Stats{Added: 1, Duplicates: 1}, l.Stats())
}

func TestCommit_FullDefinitionSupersedesForward(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()

	ok, _ := l.Commit(ctx, id("a.h", types.KindAggregate, "Node"), "pub struct Node;")
	require.True(t, ok)

	ok, d := l.Commit(ctx, id("b.h", types.KindAggregate, "Node"), "#[repr(C)]\npub struct Node {\n    pub next: *mut Node,\n}")
	assert.True(t, ok)
	assert.Equal(t, DecisionSuperseded, d)

	ok, d = l.Commit(ctx, id("c.h", types.KindAggregate, "Node"), "pub struct Node;")
	assert.False(t, ok, "forward after full definition is dropped")
	assert.Equal(t, DecisionDuplicate, d)

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Contains(t, snap[0].Code, "pub next")
	assert.False(t, snap[0].Forward)
}

func TestRenderFor(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()
	_, _ = l.Commit(ctx, id("a.h", types.KindAggregate, "Node"), "pub struct Node;")
	_, _ = l.Commit(ctx, id("a.h", types.KindAggregate, "Point"), "pub struct Point { pub x: i32 }")
	_, _ = l.Commit(ctx, id("a.h", types.KindConstant, "N"), "pub const N: u32 = 4;")

	full := "#[repr(C)]\npub struct Node {\n    pub next: *mut Node,\n}"
	out, dup := l.RenderFor(ctx, id("b.h", types.KindAggregate, "Node"), full)
	assert.False(t, dup)
	assert.NotContains(t, out, "pub struct Node;", "superseded forward declaration is left out")
	assert.Contains(t, out, "pub struct Point")
	assert.Contains(t, out, "pub const N: u32 = 4;")

	_, dup = l.RenderFor(ctx, id("b.h", types.KindAggregate, "Point"), "pub struct Point { pub x: f64 }")
	assert.True(t, dup, "a second full definition would be dropped")

	_, dup = l.RenderFor(ctx, id("c.h", types.KindAggregate, "Node"), "pub struct Node;")
	assert.True(t, dup, "a second forward declaration would be dropped")

	out, dup = l.RenderFor(ctx, id("a.h", types.KindAlias, "Idx"), "pub type Idx = usize;")
	assert.False(t, dup)
	assert.Equal(t, l.Render(), out)
	assert.Equal(t, 3, l.Len(), "rendering never changes the records")
}

func TestCommit_SecondForwardIsDropped(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()

	ok, _ := l.Commit(ctx, id("a.h", types.KindAggregate, "Opaque"), "pub struct Opaque;")
	require.True(t, ok)
	ok, d := l.Commit(ctx, id("b.h", types.KindAggregate, "Opaque"), "pub struct Opaque;")
	assert.False(t, ok)
	assert.Equal(t, DecisionDuplicate, d)
}

func TestCommit_NameFallsBackToOrigin(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()

	ok, _ := l.Commit(ctx, id("a.h", types.KindConstant, "WEIRD"), "// nothing recognizable")
	require.True(t, ok)
	assert.True(t, l.Has(types.KindConstant, "WEIRD"))
}

func TestCommit_EmptyRejected(t *testing.T) {
	l := New(nil, nil)
	ok, d := l.Commit(context.Background(), id("a.h", types.KindConstant, "X"), "   ")
	assert.False(t, ok)
	assert.Equal(t, DecisionRejected, d)
	assert.Equal(t, 0, l.Len())
}

func TestCommit_KindsAreSeparateNamespaces(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()

	ok, _ := l.Commit(ctx, id("a.h", types.KindAggregate, "Point"), "pub struct Point { pub x: i32 }")
	require.True(t, ok)
	ok, _ = l.Commit(ctx, id("a.c", types.KindFunction, "Point"), "pub fn Point() -> i32 { unimplemented!() }")
	assert.True(t, ok)
	assert.Equal(t, 2, l.Len())
}

func TestSnapshot_DependencyOrder(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()

	l.Commit(ctx, id("a.c", types.KindFunction, "area"), "pub fn area(p: &Point) -> i32 { unimplemented!() }")
	l.Commit(ctx, id("a.h", types.KindAggregate, "Point"), "pub struct Point { pub x: i32 }")
	l.Commit(ctx, id("a.h", types.KindAlias, "Idx"), "pub type Idx = usize;")
	l.Commit(ctx, id("a.h", types.KindConstant, "LIMIT"), "pub const LIMIT: u32 = 10;")
	l.Commit(ctx, id("a.h", types.KindField, "count"), "pub static mut count: i32 = 0;")
	l.Commit(ctx, id("a.h", types.KindConstant, "OTHER"), "pub const OTHER: u32 = 1;")

	var order []string
	for _, r := range l.Snapshot() {
		order = append(order, r.Name)
	}
	assert.Equal(t, []string{"LIMIT", "OTHER", "Idx", "Point", "count", "area"}, order)
}

func TestCommit_ConcurrentSameNameKeepsOne(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	accepted := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := l.Commit(ctx, id("a.h", types.KindAlias, "T"), "pub type T = i32;")
			accepted <- ok
		}()
	}
	wg.Wait()
	close(accepted)

	n := 0
	for ok := range accepted {
		if ok {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, l.Len())
}

func TestRender_StubsFunctionsWithoutChangingRecords(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()

	sig := "pub fn area(w: i32, h: i32) -> i32 {\n    unimplemented!()\n}"
	l.Commit(ctx, id("a.c", types.KindFunction, "area"), sig)
	l.Commit(ctx, id("a.h", types.KindConstant, "LIMIT"), "pub const LIMIT: u32 = 10;")

	out := l.Render()
	assert.Contains(t, out, "// ---- constants ----")
	assert.Contains(t, out, "// ---- functions ----")
	assert.Contains(t, out, "pub fn area(w: i32, h: i32) -> i32 {\n    0i32\n}")
	assert.Less(t, strings.Index(out, "LIMIT"), strings.Index(out, "area"))

	snap := l.Snapshot()
	assert.Equal(t, sig, snap[1].Code, "stored artifact keeps its placeholder body")
}

func TestPrepareCandidate(t *testing.T) {
	l := New(nil, nil)
	ctx := context.Background()
	l.Commit(ctx, id("a.h", types.KindConstant, "LIMIT"), "pub const LIMIT: u32 = 10;")

	candidate := "use std::os::raw::c_int;\n#![allow(dead_code)]\npub const LIMIT: u32 = 10;\npub const OTHER: u32 = 2;\npub struct A { pub n: c_int }\n"
	out := l.PrepareCandidate(candidate)

	assert.NotContains(t, out, "use std")
	assert.NotContains(t, out, "#![allow")
	assert.Contains(t, out, "// already defined: pub const LIMIT: u32 = 10;")
	assert.Contains(t, out, "pub const OTHER: u32 = 2;")
	assert.Contains(t, out, "pub struct A")
}
