// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Persisted item keys.
const (
	keySource      = "full_text"
	keyDeps        = "dependencies"
	keyStatus      = "conversion_status"
	keyArtifact    = "rust_signature"
	keyRounds      = "conversion_rounds"
	keyReason      = "failure_reason"
	keyOrigKind    = "original_type"
	keyHeaderGuard = "is_header_guard"
	keyErrors      = "compile_errors"
	keyUnresolved  = "unresolved_dependencies"
)

var knownKeys = map[string]bool{
	keySource: true, keyDeps: true, keyStatus: true, keyArtifact: true,
	keyRounds: true, keyReason: true, keyOrigKind: true, keyHeaderGuard: true,
	keyErrors: true, keyUnresolved: true,
}

type depJSON struct {
	QualifiedName string `json:"qualified_name"`
	Type          string `json:"type"`
}

type buildErrorJSON struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func decodeItem(id types.ItemID, raw json.RawMessage) (*types.Item, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	item := &types.Item{ID: id, Status: types.StatusUnprocessed}
	var status string
	var errs []buildErrorJSON

	decoders := []struct {
		key string
		dst any
	}{
		{keySource, &item.Source},
		{keyStatus, &status},
		{keyArtifact, &item.Artifact},
		{keyRounds, &item.Rounds},
		{keyReason, &item.Reason},
		{keyOrigKind, &item.OriginalKind},
		{keyHeaderGuard, &item.HeaderGuard},
		{keyErrors, &errs},
		{keyUnresolved, &item.Unresolved},
	}
	for _, d := range decoders {
		v, ok := fields[d.key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, d.dst); err != nil {
			return nil, fmt.Errorf("field %s: %w", d.key, err)
		}
	}

	item.Status = parseStatus(status)
	for _, e := range errs {
		item.Diagnostics = append(item.Diagnostics, types.BuildError(e))
	}

	if v, ok := fields[keyDeps]; ok {
		deps, err := decodeDeps(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", keyDeps, err)
		}
		self := id.QualifiedName()
		for _, d := range deps {
			if d.QualifiedName == self {
				continue
			}
			item.Deps = append(item.Deps, d)
		}
	}

	for k, v := range fields {
		if knownKeys[k] {
			continue
		}
		if item.Extra == nil {
			item.Extra = make(map[string]json.RawMessage)
		}
		item.Extra[k] = v
	}
	return item, nil
}

// decodeDeps accepts the keyed map form and a plain list of references.
func decodeDeps(raw json.RawMessage) ([]types.DepRef, error) {
	if string(raw) == "null" {
		return nil, nil
	}

	var list []depJSON
	var keyed map[string]depJSON
	if err := json.Unmarshal(raw, &keyed); err == nil {
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			d := keyed[k]
			if d.QualifiedName == "" {
				d.QualifiedName = k
			}
			list = append(list, d)
		}
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}

	refs := make([]types.DepRef, 0, len(list))
	for _, d := range list {
		kind, ok := types.ParseKind(d.Type)
		if !ok {
			kind = types.KindUnknown
		}
		refs = append(refs, types.DepRef{QualifiedName: d.QualifiedName, Kind: kind})
	}
	return refs, nil
}

func parseStatus(s string) types.Status {
	switch types.Status(s) {
	case types.StatusInProgress, types.StatusSuccess, types.StatusFailed,
		types.StatusError, types.StatusSkipped:
		return types.Status(s)
	}
	return types.StatusUnprocessed
}

func encodeItem(item *types.Item) map[string]any {
	out := make(map[string]any, len(item.Extra)+8)
	for k, v := range item.Extra {
		out[k] = v
	}

	out[keySource] = item.Source
	out[keyStatus] = string(item.Status)

	deps := make(map[string]depJSON, len(item.Deps))
	for _, d := range item.Deps {
		deps[d.QualifiedName] = depJSON{QualifiedName: d.QualifiedName, Type: depKindKey(d.Kind)}
	}
	out[keyDeps] = deps

	if item.Artifact != "" {
		out[keyArtifact] = item.Artifact
	}
	if item.Rounds > 0 {
		out[keyRounds] = item.Rounds
	}
	if item.Reason != "" {
		out[keyReason] = item.Reason
	}
	if item.OriginalKind != "" {
		out[keyOrigKind] = item.OriginalKind
	}
	if item.HeaderGuard {
		out[keyHeaderGuard] = true
	}
	if len(item.Diagnostics) > 0 {
		errs := make([]buildErrorJSON, 0, len(item.Diagnostics))
		for _, e := range item.Diagnostics {
			errs = append(errs, buildErrorJSON(e))
		}
		out[keyErrors] = errs
	}
	if len(item.Unresolved) > 0 {
		out[keyUnresolved] = item.Unresolved
	}
	return out
}

func depKindKey(k types.Kind) string {
	if k == types.KindUnknown {
		return ""
	}
	return k.Key()
}

// writeFileAtomic writes data to a temp file in the destination directory,
// syncs it, renames it over path, then syncs the directory.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
