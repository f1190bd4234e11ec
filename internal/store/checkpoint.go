// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package store

import "sync"

const defaultSaveEvery = 10

// Checkpointer persists a store every N processed items.
type Checkpointer struct {
	mu      sync.Mutex
	store   *Store
	path    string
	every   int
	pending int
	saves   int
}

// NewCheckpointer returns a checkpointer that saves s to path after every
// `every` calls to Tick (default 10).
func NewCheckpointer(s *Store, path string, every int) *Checkpointer {
	if every <= 0 {
		every = defaultSaveEvery
	}
	return &Checkpointer{store: s, path: path, every: every}
}

// Tick counts one processed item and saves when the interval is reached.
func (c *Checkpointer) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending++
	if c.pending < c.every {
		return nil
	}
	return c.saveLocked()
}

// Flush saves unconditionally.
func (c *Checkpointer) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

// Saves returns how many times the store has been written.
func (c *Checkpointer) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func (c *Checkpointer) saveLocked() error {
	if err := c.store.Save(c.path); err != nil {
		return err
	}
	c.pending = 0
	c.saves++
	return nil
}
