// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/petar-djukic/go-c2rust/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInput = `{
  "geo.h": {
    "structs": {
      "Point": {
        "full_text": "struct Point { int x; int y; };",
        "dependencies": {},
        "conversion_status": "pending",
        "line": 3
      },
      "Node": {
        "full_text": "struct Node { struct Node *next; Point p; };",
        "dependencies": {
          "geo.h::Node": {"qualified_name": "geo.h::Node", "type": "structs"},
          "geo.h::Point": {"qualified_name": "geo.h::Point", "type": "typedefs"}
        }
      }
    },
    "defines": {
      "MAX(a, b)": {"full_text": "#define MAX(a, b) ((a) > (b) ? (a) : (b))"},
      "LIMIT": {"full_text": "#define LIMIT 10"}
    },
    "includes": ["stdio.h"]
  }
}`

func TestDecode_NestedMap(t *testing.T) {
	s, err := Decode([]byte(sampleInput))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())

	point, ok := s.Lookup("geo.h", types.KindAggregate, "Point")
	require.True(t, ok)
	assert.Equal(t, "struct Point { int x; int y; };", point.Source)
	assert.Equal(t, types.StatusUnprocessed, point.Status, "unknown status values load as unprocessed")
	assert.Contains(t, point.Extra, "line")
}

func TestDecode_SelfReferencesOmitted(t *testing.T) {
	s, err := Decode([]byte(sampleInput))
	require.NoError(t, err)

	node, ok := s.Lookup("geo.h", types.KindAggregate, "Node")
	require.True(t, ok)
	require.Len(t, node.Deps, 1)
	assert.Equal(t, "geo.h::Point", node.Deps[0].QualifiedName)
	assert.Equal(t, types.KindAlias, node.Deps[0].Kind, "declared kind is kept even when wrong")
}

func TestDecode_ListDependencies(t *testing.T) {
	s, err := Decode([]byte(`{"a.c": {"functions": {"f": {
		"full_text": "int f(void);",
		"dependencies": [{"qualified_name": "a.c::T", "type": "weird"}]
	}}}}`))
	require.NoError(t, err)

	f, ok := s.Lookup("a.c", types.KindFunction, "f")
	require.True(t, ok)
	require.Len(t, f.Deps, 1)
	assert.Equal(t, types.KindUnknown, f.Deps[0].Kind)
}

func TestDecode_RejectsMalformedMap(t *testing.T) {
	for name, input := range map[string]string{
		"file is not an object":  `{"a.c": ["f"]}`,
		"rounds not a number":    `{"a.c": {"functions": {"f": {"conversion_rounds": "three"}}}}`,
		"item is a string":       `{"a.c": {"structs": {"S": "struct S;"}}}`,
		"unresolved not strings": `{"a.c": {"typedefs": {"T": {"unresolved_dependencies": [1]}}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			assert.ErrorIs(t, err, ErrInvalidItemMap)
		})
	}

	_, err := Decode([]byte(`{"a.c": `))
	assert.Error(t, err)
}

func TestReclassify_FunctionLikeMacros(t *testing.T) {
	s, err := Decode([]byte(sampleInput))
	require.NoError(t, err)

	assert.Equal(t, 1, s.Reclassify())
	assert.Equal(t, 0, s.Reclassify(), "reclassification is idempotent")

	_, ok := s.Lookup("geo.h", types.KindConstant, "MAX(a, b)")
	assert.False(t, ok)

	moved, ok := s.Lookup("geo.h", types.KindFunction, "MAX(a, b)")
	require.True(t, ok)
	assert.Equal(t, "define", moved.OriginalKind)

	_, ok = s.Lookup("geo.h", types.KindConstant, "LIMIT")
	assert.True(t, ok, "plain constants stay put")
}

func TestSaveLoad_PreservesFields(t *testing.T) {
	s, err := Decode([]byte(sampleInput))
	require.NoError(t, err)
	s.Reclassify()

	id := types.ItemID{File: "geo.h", Kind: types.KindAggregate, Name: "Point"}
	s.Record(id, types.Outcome{
		Status:   types.StatusSuccess,
		Artifact: "pub struct Point { pub x: i32, pub y: i32 }",
		Rounds:   2,
	})

	path := filepath.Join(t.TempDir(), "out", "items.json")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.Len(), loaded.Len())

	point, ok := loaded.Get(id)
	require.True(t, ok)
	assert.Equal(t, types.StatusSuccess, point.Status)
	assert.Equal(t, "pub struct Point { pub x: i32, pub y: i32 }", point.Artifact)
	assert.Equal(t, 2, point.Rounds)
	assert.JSONEq(t, "3", string(point.Extra["line"]))

	macro, ok := loaded.Lookup("geo.h", types.KindFunction, "MAX(a, b)")
	require.True(t, ok)
	assert.Equal(t, "define", macro.OriginalKind)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var generic map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.JSONEq(t, `["stdio.h"]`, string(generic["geo.h"]["includes"]))
}

func TestSave_NoTempFilesLeft(t *testing.T) {
	s, err := Decode([]byte(sampleInput))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMerge_PriorSuccessIsAuthoritative(t *testing.T) {
	input, err := Decode([]byte(sampleInput))
	require.NoError(t, err)
	input.Reclassify()

	prior, err := Decode([]byte(`{"geo.h": {
		"structs": {
			"Point": {"full_text": "struct Point { int x; int y; };", "conversion_status": "success", "rust_signature": "pub struct Point;"},
			"Node": {"full_text": "x", "conversion_status": "failed", "failure_reason": "max rounds"}
		},
		"functions": {
			"MAX(a, b)": {"full_text": "#define MAX(a, b)", "conversion_status": "success", "rust_signature": "fn max() {}", "original_type": "define"}
		}
	}}`))
	require.NoError(t, err)

	assert.Equal(t, 2, input.Merge(prior))

	point, _ := input.Lookup("geo.h", types.KindAggregate, "Point")
	assert.Equal(t, types.StatusSuccess, point.Status)
	assert.Equal(t, "pub struct Point;", point.Artifact)

	node, _ := input.Lookup("geo.h", types.KindAggregate, "Node")
	assert.Equal(t, types.StatusUnprocessed, node.Status, "non-success prior entries are ignored")

	macro, _ := input.Lookup("geo.h", types.KindFunction, "MAX(a, b)")
	assert.Equal(t, types.StatusSuccess, macro.Status)
}

func TestResetUnfinished(t *testing.T) {
	s := New()
	for i, st := range []types.Status{types.StatusFailed, types.StatusError, types.StatusInProgress, types.StatusSuccess, types.StatusSkipped} {
		s.Put(types.Item{ID: types.ItemID{File: "a.c", Kind: types.KindFunction, Name: string(rune('a' + i))}, Status: st})
	}

	assert.Equal(t, 3, s.ResetUnfinished())

	counts := map[types.Status]int{}
	for _, it := range s.Items() {
		counts[it.Status]++
	}
	assert.Equal(t, 3, counts[types.StatusUnprocessed])
	assert.Equal(t, 1, counts[types.StatusSuccess])
	assert.Equal(t, 1, counts[types.StatusSkipped])
}

func TestItems_Ordered(t *testing.T) {
	s := New()
	s.Put(types.Item{ID: types.ItemID{File: "b.c", Kind: types.KindField, Name: "z"}})
	s.Put(types.Item{ID: types.ItemID{File: "a.c", Kind: types.KindFunction, Name: "a"}})
	s.Put(types.Item{ID: types.ItemID{File: "a.c", Kind: types.KindConstant, Name: "b"}})

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "a.c::defines::b", items[0].ID.String())
	assert.Equal(t, "a.c::functions::a", items[1].ID.String())
	assert.Equal(t, "b.c::fields::z", items[2].ID.String())
}

func TestRecord_FailureKeepsPreviousArtifact(t *testing.T) {
	s := New()
	id := types.ItemID{File: "a.c", Kind: types.KindAlias, Name: "T"}
	s.Put(types.Item{ID: id, Artifact: "type T = i32;"})

	s.Record(id, types.Outcome{
		Status:      types.StatusFailed,
		Reason:      "build failed",
		Diagnostics: []types.BuildError{{Code: "E0412", Message: "cannot find type"}},
	})

	it, _ := s.Get(id)
	assert.Equal(t, types.StatusFailed, it.Status)
	assert.Equal(t, "type T = i32;", it.Artifact)
	require.Len(t, it.Diagnostics, 1)
}

func TestCheckpointer_SavesEveryN(t *testing.T) {
	s := New()
	s.Put(types.Item{ID: types.ItemID{File: "a.c", Kind: types.KindField, Name: "x"}})
	path := filepath.Join(t.TempDir(), "items.json")

	cp := NewCheckpointer(s, path, 3)
	for i := 0; i < 7; i++ {
		require.NoError(t, cp.Tick())
	}
	assert.Equal(t, 2, cp.Saves())

	require.NoError(t, cp.Flush())
	assert.Equal(t, 3, cp.Saves())
	assert.FileExists(t, path)
}
