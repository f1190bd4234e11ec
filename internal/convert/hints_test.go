// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package convert

import (
	"context"
	"testing"

	"github.com/petar-djukic/go-c2rust/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(kind types.Kind, name, src string) types.Item {
	return types.Item{ID: types.ItemID{File: "geo.h", Kind: kind, Name: name}, Source: src}
}

func TestNormalize(t *testing.T) {
	src := "struct Point {\n\tint x; /* horizontal */\n\tchar* name; // label\n};"
	assert.Equal(t, "struct Point { int x ; char * name ; } ;", Normalize(src))
}

func TestIsHeaderGuard(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"#define GEO_H", true},
		{"#define _GEO_H_", true},
		{"#define __GEO_H__", true},
		{"  #  define _CONFIG_INCLUDED 1", true},
		{"#define CONFIG_INCLUDED", true},
		{"/* guard */\n#define GEO_H", true},
		{"#define GEO_HEIGHT 10", false},
		{"#define MAX_SIZE 128", false},
		{"#define IMG_H 480", false},
		{"#define FONT_H 16", false},
		{"#define PAGE_H (A4_HEIGHT * 2)", false},
		{"#define CONFIG_INCLUDED 1", false},
		{"#define _IMG_H 480", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeaderGuard(item(types.KindConstant, "X", tt.src)))
		})
	}
	assert.False(t, IsHeaderGuard(item(types.KindAlias, "GEO_H", "#define GEO_H")), "constants only")
}

func TestIsFunctionPointer(t *testing.T) {
	assert.True(t, IsFunctionPointer(item(types.KindAlias, "cmp_fn", "typedef int (*cmp_fn)(const void *a, const void *b);")))
	assert.True(t, IsFunctionPointer(item(types.KindAlias, "handler", "typedef void handler(int)")))
	assert.False(t, IsFunctionPointer(item(types.KindAlias, "Handle", "typedef void *Handle;")))
	assert.False(t, IsFunctionPointer(item(types.KindFunction, "f", "int (*f)(void);")))
}

func TestHints(t *testing.T) {
	src := `struct Packet {
    unsigned flags : 3;
    char payload[64];
    union { int i; float f; } value;
    void (*on_done)(struct Packet *p);
};`
	hints := Hints(item(types.KindAggregate, "Packet", src))

	byName := make(map[string][]string)
	for _, h := range hints {
		byName[h.Construct] = h.Examples
	}
	assert.Equal(t, []string{"void (*on_done)(struct Packet *p)"}, byName["function pointer"])
	assert.Equal(t, []string{"flags : 3"}, byName["bitfield"])
	assert.Equal(t, []string{"char payload[64]"}, byName["fixed array"])
	assert.Contains(t, byName["union"][0], "union { int i ; float f ; }")
	assert.NotContains(t, byName, "nested anonymous struct")
}

func TestHints_LimitsExamplesAndScope(t *testing.T) {
	src := "struct S { int a[1]; int b[2]; int c[3]; int d[4]; };"
	hints := Hints(item(types.KindAggregate, "S", src))
	require.Len(t, hints, 1)
	assert.Len(t, hints[0].Examples, 3)

	assert.Empty(t, Hints(item(types.KindConstant, "SEL", "#define SEL(x) (x ? a : 1)")), "bitfields only inside aggregates")
}

func TestKindLabel(t *testing.T) {
	macro := item(types.KindFunction, "MAX(a, b)", "#define MAX(a, b) ((a) > (b) ? (a) : (b))")
	macro.OriginalKind = "define"

	assert.Equal(t, "global variable", KindLabel(item(types.KindField, "g", "int g;")))
	assert.Equal(t, "constant", KindLabel(item(types.KindConstant, "N", "#define N 4")))
	assert.Equal(t, "typedef", KindLabel(item(types.KindAlias, "T", "typedef int T;")))
	assert.Equal(t, "union", KindLabel(item(types.KindAggregate, "U", "union U { int i; };")))
	assert.Equal(t, "enum", KindLabel(item(types.KindAggregate, "C", "typedef enum { RED } C;")))
	assert.Equal(t, "struct", KindLabel(item(types.KindAggregate, "P", "")))
	assert.Equal(t, "function", KindLabel(item(types.KindFunction, "f", "int f(void);")))
	assert.Equal(t, "function-like macro", KindLabel(macro))
}

func TestStaticJudge(t *testing.T) {
	ctx := context.Background()
	j := StaticJudge{}

	c, err := j.Check(ctx, "pub fn area(p: Point) -> c_int {\n    unimplemented!()\n}", []string{"Point"})
	require.NoError(t, err)
	assert.True(t, c.Clean)
	assert.Equal(t, "NONE", c.Severity)

	c, err = j.Check(ctx, "pub fn area(p: Point) -> c_int {\n    let w = p.x;\n    w * p.y\n}", nil)
	require.NoError(t, err)
	assert.False(t, c.Clean)
	assert.True(t, c.HasImplementation)
	assert.Contains(t, c.Violations, "area: body has 2 statements")
	assert.Contains(t, c.Violations, "area: body uses let")
	assert.Equal(t, "MEDIUM", c.Severity)

	c, err = j.Check(ctx, "pub struct Point {\n    pub x: c_int,\n}\npub fn area(p: Point) -> c_int {\n    unimplemented!()\n}", []string{"Point"})
	require.NoError(t, err)
	assert.False(t, c.Clean)
	assert.True(t, c.HasRedefinition)
	assert.Equal(t, []string{"redefines struct Point"}, c.Violations)
	assert.Equal(t, "HIGH", c.Severity)
}

func TestNewJudge(t *testing.T) {
	assert.IsType(t, StaticJudge{}, NewJudge("static", nil))
	assert.IsType(t, OracleJudge{}, NewJudge("oracle", nil))
	assert.IsType(t, OracleJudge{}, NewJudge("", nil))
}
