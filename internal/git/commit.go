// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"fmt"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	authorName  = "go-c2rust"
	authorEmail = "noreply@go-c2rust"
)

// AutoCommit stages the given paths (files or directories) and commits them
// with a message built from info. Unchanged paths are ignored; when nothing
// changed no commit is made and the returned flag is false.
func (r *Repo) AutoCommit(paths []string, info RunInfo) (bool, error) {
	if !r.cfg.AutoCommit {
		return false, nil
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("getting status: %w", err)
	}

	var staged []string
	for _, p := range paths {
		rel, err := r.rel(p)
		if err != nil {
			return false, err
		}
		if !changed(status, rel) {
			continue
		}
		if _, err := wt.Add(rel); err != nil {
			return false, fmt.Errorf("staging %s: %w", rel, err)
		}
		staged = append(staged, rel)
	}
	if len(staged) == 0 {
		return false, nil
	}

	_, err = wt.Commit(GenerateMessage(info, staged), &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	return true, nil
}

// changed reports whether rel, or any file below it, has a status entry.
func changed(status gogit.Status, rel string) bool {
	if rel == "." {
		return !status.IsClean()
	}
	prefix := rel + "/"
	for path, fs := range status {
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		if path == rel || strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Undo reverts the last commit if it was made by go-c2rust. The reset is
// soft, so the committed results stay in the working tree.
func (r *Repo) Undo() error {
	own, err := r.IsOwnCommit()
	if err != nil {
		return err
	}
	if !own {
		return ErrNotOwnCommit
	}

	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("getting commit: %w", err)
	}
	if commit.NumParents() == 0 {
		return fmt.Errorf("cannot undo: HEAD is the initial commit")
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return fmt.Errorf("getting parent commit: %w", err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: parent.Hash, Mode: gogit.SoftReset}); err != nil {
		return fmt.Errorf("resetting to parent: %w", err)
	}
	return nil
}
