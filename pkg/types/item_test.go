// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_KeyRoundTrip(t *testing.T) {
	for _, k := range Kinds {
		got, ok := ParseKind(k.Key())
		assert.True(t, ok, k.Key())
		assert.Equal(t, k, got)

		got, ok = ParseKind(k.String())
		assert.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}

	_, ok := ParseKind("macros")
	assert.False(t, ok)
}

func TestItemID_Forms(t *testing.T) {
	id := ItemID{File: "geo.h", Kind: KindAggregate, Name: "Point"}
	assert.Equal(t, "geo.h::structs::Point", id.String())
	assert.Equal(t, "geo.h::Point", id.QualifiedName())
}

func TestSplitQualifiedName(t *testing.T) {
	tests := []struct {
		in         string
		file, name string
		ok         bool
	}{
		{"a.c::foo", "a.c", "foo", true},
		{"dir/a.c::ns::x", "dir/a.c", "ns::x", true},
		{"nofile", "", "", false},
		{"::foo", "", "", false},
		{"a.c::", "", "", false},
	}
	for _, tt := range tests {
		file, name, ok := SplitQualifiedName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.file, file, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusUnprocessed.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, StatusSkipped.Terminal())
}

func TestBuildError_String(t *testing.T) {
	e := BuildError{Code: "E0412", Message: "cannot find type `Foo`", File: "src/main.rs", Line: 3, Column: 9}
	assert.Equal(t, "error[E0412]: cannot find type `Foo` (src/main.rs:3:9)", e.String())
	assert.Equal(t, "error: aborting", BuildError{Message: "aborting"}.String())
}
