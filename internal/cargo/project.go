// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cargo renders single-crate Cargo projects from translated Rust
// code and runs `cargo check` on them.
package cargo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCrateName names generated crates when no name is given.
const DefaultCrateName = "rust_validation"

// Prelude opens every generated main.rs. Translated items use the raw C
// types unqualified, and the lints silence what single-item translation
// cannot avoid.
const Prelude = `#![allow(unused_variables, dead_code, unused_imports, unused_mut, non_camel_case_types, non_snake_case, non_upper_case_globals)]

use std::os::raw::*;
use std::ptr;
use std::ffi::c_void;
`

// Project is a Cargo project held in memory.
type Project struct {
	Name string
	Main string // contents of src/main.rs
}

// Manifest returns the Cargo.toml of a crate without dependencies.
func Manifest(name string) string {
	if name == "" {
		name = DefaultCrateName
	}
	return fmt.Sprintf("[package]\nname = %q\nversion = \"0.1.0\"\nedition = \"2021\"\n\n[dependencies]\n", name)
}

// RenderMain assembles main.rs from the accumulated context and a candidate
// item. It returns the source and the 1-based line at which the candidate
// starts, so diagnostics can be mapped back to it.
func RenderMain(context, candidate, label string) (string, int) {
	var buf strings.Builder
	buf.WriteString(Prelude)
	buf.WriteString("\n")
	if c := strings.TrimSpace(context); c != "" {
		buf.WriteString(c)
		buf.WriteString("\n\n")
	}
	if label != "" {
		fmt.Fprintf(&buf, "// ---- candidate: %s ----\n", label)
	}
	start := strings.Count(buf.String(), "\n") + 1
	buf.WriteString(strings.TrimSpace(candidate))
	buf.WriteString("\n\nfn main() {}\n")
	return buf.String(), start
}

// RenderValidation returns the main.rs of the validation project: every
// committed artifact followed by an empty main.
func RenderValidation(body string) string {
	var buf strings.Builder
	buf.WriteString(Prelude)
	buf.WriteString("\n")
	if b := strings.TrimSpace(body); b != "" {
		buf.WriteString(b)
		buf.WriteString("\n\n")
	}
	buf.WriteString("fn main() {}\n")
	return buf.String()
}

// Write creates dir/Cargo.toml and dir/src/main.rs.
func Write(dir string, p Project) error {
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		return fmt.Errorf("creating project dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(Manifest(p.Name)), 0o644); err != nil {
		return fmt.Errorf("writing Cargo.toml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "main.rs"), []byte(p.Main), 0o644); err != nil {
		return fmt.Errorf("writing main.rs: %w", err)
	}
	return nil
}

// Files returns the paths Write creates, relative to the project dir.
func Files() []string {
	return []string{"Cargo.toml", filepath.Join("src", "main.rs")}
}
