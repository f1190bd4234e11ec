// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package store holds the keyed collection of translation items, loads it
// from the extractor's nested JSON map (file -> kind -> name -> item), and
// persists it back atomically.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Store is the authoritative in-memory item collection. All methods are safe
// for concurrent use; accessors return copies.
type Store struct {
	mu    sync.RWMutex
	items map[types.ItemID]*types.Item

	// extraKinds keeps per-file sections whose key is not an item kind.
	extraKinds map[string]map[string]json.RawMessage
}

// New returns an empty store.
func New() *Store {
	return &Store{
		items:      make(map[types.ItemID]*types.Item),
		extraKinds: make(map[string]map[string]json.RawMessage),
	}
}

// Load reads a nested item map from path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	s, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return s, nil
}

// Decode validates and parses a nested item map.
func Decode(data []byte) (*Store, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var files map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, err
	}

	s := New()
	for file, sections := range files {
		for key, raw := range sections {
			kind, ok := types.ParseKind(key)
			if !ok {
				if s.extraKinds[file] == nil {
					s.extraKinds[file] = make(map[string]json.RawMessage)
				}
				s.extraKinds[file][key] = raw
				continue
			}

			var entries map[string]json.RawMessage
			if err := json.Unmarshal(raw, &entries); err != nil {
				return nil, fmt.Errorf("%s/%s: %w", file, key, err)
			}
			for name, entry := range entries {
				id := types.ItemID{File: file, Kind: kind, Name: name}
				item, err := decodeItem(id, entry)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", id, err)
				}
				s.items[id] = item
			}
		}
	}
	return s, nil
}

// Encode renders the store as an indented nested item map.
func (s *Store) Encode() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]any)
	section := func(file string) map[string]any {
		if out[file] == nil {
			out[file] = make(map[string]any)
		}
		return out[file]
	}

	for file, extras := range s.extraKinds {
		for key, raw := range extras {
			section(file)[key] = raw
		}
	}

	for id, item := range s.items {
		sec := section(id.File)
		entries, _ := sec[id.Kind.Key()].(map[string]any)
		if entries == nil {
			entries = make(map[string]any)
			sec[id.Kind.Key()] = entries
		}
		entries[id.Name] = encodeItem(item)
	}

	return json.MarshalIndent(out, "", "  ")
}

// Save writes the store to path atomically.
func (s *Store) Save(path string) error {
	data, err := s.Encode()
	if err != nil {
		return fmt.Errorf("encoding items: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'), 0o644)
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Put inserts or replaces an item.
func (s *Store) Put(item types.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := item
	s.items[item.ID] = &it
}

// Get returns a copy of the item with the given ID.
func (s *Store) Get(id types.ItemID) (types.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return types.Item{}, false
	}
	return *it, true
}

// Lookup is Get by components.
func (s *Store) Lookup(file string, kind types.Kind, name string) (types.Item, bool) {
	return s.Get(types.ItemID{File: file, Kind: kind, Name: name})
}

// Status returns the status of an item, or unprocessed when it is unknown.
func (s *Store) Status(id types.ItemID) types.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if it, ok := s.items[id]; ok {
		return it.Status
	}
	return types.StatusUnprocessed
}

// Items returns copies of all items ordered by file, kind, then name.
func (s *Store) Items() []types.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]types.Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, *it)
	}
	SortItems(items)
	return items
}

// InFile returns copies of the items of one source file, ordered by kind
// then name.
func (s *Store) InFile(file string) []types.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []types.Item
	for id, it := range s.items {
		if id.File == file {
			items = append(items, *it)
		}
	}
	SortItems(items)
	return items
}

// SortItems orders items by file, kind, then name.
func SortItems(items []types.Item) {
	sort.Slice(items, func(i, j int) bool {
		return lessID(items[i].ID, items[j].ID)
	})
}

func lessID(a, b types.ItemID) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Name < b.Name
}

// SetStatus changes the status of an item.
func (s *Store) SetStatus(id types.ItemID, status types.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[id]; ok {
		it.Status = status
	}
}

// SetUnresolved records the dependencies an item was still waiting on.
func (s *Store) SetUnresolved(id types.ItemID, deps []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[id]; ok {
		it.Unresolved = deps
	}
}

// Record applies a conversion outcome to an item.
func (s *Store) Record(id types.ItemID, out types.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return
	}
	it.Status = out.Status
	it.Rounds = out.Rounds
	it.Reason = out.Reason
	it.Diagnostics = out.Diagnostics
	it.HeaderGuard = out.HeaderGuard
	it.Unresolved = nil
	if out.Status == types.StatusSuccess {
		it.Artifact = out.Artifact
	}
}

// Merge copies every successful item of prior over the receiver. Prior
// results are authoritative: an item converted in an earlier run keeps its
// artifact and is never reprocessed. It returns the number of items merged.
func (s *Store) Merge(prior *Store) int {
	prior.mu.RLock()
	defer prior.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, p := range prior.items {
		if p.Status != types.StatusSuccess {
			continue
		}
		cur, ok := s.items[id]
		if !ok {
			cp := *p
			s.items[id] = &cp
			n++
			continue
		}
		cur.Status = p.Status
		cur.Artifact = p.Artifact
		cur.Rounds = p.Rounds
		cur.Reason = p.Reason
		cur.HeaderGuard = p.HeaderGuard
		cur.Diagnostics = p.Diagnostics
		cur.Unresolved = nil
		if p.OriginalKind != "" {
			cur.OriginalKind = p.OriginalKind
		}
		n++
	}
	return n
}

// Reclassify moves function-like macros (constants whose name carries a
// parameter list) to the function kind, marking their original kind. It is
// idempotent and returns the number of items moved.
func (s *Store) Reclassify() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, it := range s.items {
		if id.Kind != types.KindConstant || !isFunctionLikeName(id.Name) {
			continue
		}
		moved := types.ItemID{File: id.File, Kind: types.KindFunction, Name: id.Name}
		if _, exists := s.items[moved]; exists {
			continue
		}
		delete(s.items, id)
		it.ID = moved
		it.OriginalKind = "define"
		s.items[moved] = it
		n++
	}
	return n
}

func isFunctionLikeName(name string) bool {
	open := strings.Index(name, "(")
	return open >= 0 && strings.Contains(name[open:], ")")
}

// ResetUnfinished returns failed, errored and interrupted items to
// unprocessed so a new run retries them. Successful and skipped items are
// left alone. It returns the number of items reset.
func (s *Store) ResetUnfinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.items {
		switch it.Status {
		case types.StatusFailed, types.StatusError, types.StatusInProgress:
			it.Status = types.StatusUnprocessed
			n++
		}
	}
	return n
}
