// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffroots turns a unified diff into closure root paths.
package diffroots

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// ChangeKind classifies one file in a diff.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Renamed  ChangeKind = "renamed"
	Deleted  ChangeKind = "deleted"
)

// Change is one file entry of a diff.
type Change struct {
	Kind ChangeKind

	// Path is the absolute post-change path, or the pre-change path for
	// deletions.
	Path string

	// OrigPath is the absolute pre-change path for renames.
	OrigPath string
}

// Parse reads a unified diff (git or plain) and returns its file changes
// with paths joined to projectRoot. Entries whose path escapes projectRoot
// are dropped.
func Parse(r io.Reader, projectRoot string) ([]Change, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(r).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	changes := make([]Change, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		orig := stripPrefix(fd.OrigName)
		next := stripPrefix(fd.NewName)

		var c Change
		switch {
		case next == "" || next == devNull:
			c = Change{Kind: Deleted, Path: orig}
		case orig == "" || orig == devNull:
			c = Change{Kind: Added, Path: next}
		case orig != next:
			c = Change{Kind: Renamed, Path: next, OrigPath: orig}
		default:
			c = Change{Kind: Modified, Path: next}
		}

		var ok bool
		if c.Path, ok = within(projectRoot, c.Path); !ok {
			continue
		}
		if c.OrigPath != "" {
			c.OrigPath, _ = within(projectRoot, c.OrigPath)
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// FromUnifiedDiff returns the absolute paths of files that exist after the
// diff is applied (added, modified, renamed), deduplicated, in diff order.
func FromUnifiedDiff(r io.Reader, projectRoot string) ([]string, error) {
	changes, err := Parse(r, projectRoot)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(changes))
	roots := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.Kind == Deleted {
			continue
		}
		if _, ok := seen[c.Path]; ok {
			continue
		}
		seen[c.Path] = struct{}{}
		roots = append(roots, c.Path)
	}
	return roots, nil
}

// stripPrefix removes the a/ or b/ prefix git puts on diff paths and any
// trailing timestamp a plain diff header carries.
func stripPrefix(name string) string {
	if i := strings.IndexByte(name, '\t'); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == devNull {
		return name
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return name
}

// within joins rel to root and reports whether the result stays inside root.
func within(root, rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}
