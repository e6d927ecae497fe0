// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Depth is a number of import hops from the nearest root.
type Depth int

// Unbounded disables the depth limit. Traversal still terminates because
// every file is expanded at most once.
const Unbounded Depth = -1

// Bounded reports whether d is a finite limit.
func (d Depth) Bounded() bool {
	return d >= 0
}

// String returns the decimal depth or "unbounded".
func (d Depth) String() string {
	if !d.Bounded() {
		return "unbounded"
	}
	return strconv.Itoa(int(d))
}

// ParseDepth parses "unbounded" (or "inf", "-1") and non-negative integers.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unbounded", "inf", "infinite", "-1":
		return Unbounded, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid depth %q: want a non-negative integer or \"unbounded\"", s)
	}
	return Depth(n), nil
}

// ResolvedDependency is a file discovered during traversal.
type ResolvedDependency struct {
	// Path is the canonical absolute path.
	Path string `json:"path"`

	// Depth is the level at which the file was first discovered. Direct
	// imports of a root are depth 1.
	Depth Depth `json:"depth"`
}

// BuildStats summarizes one traversal.
type BuildStats struct {
	// FilesExpanded counts files whose imports were extracted.
	FilesExpanded int `json:"files_expanded"`

	// ReferencesFound counts raw import references.
	ReferencesFound int `json:"references_found"`

	// ReferencesResolved counts references mapped to a project file.
	ReferencesResolved int `json:"references_resolved"`

	// ReadFailures counts files that could not be read.
	ReadFailures int `json:"read_failures"`

	// DurationMilli is the wall time of the traversal.
	DurationMilli int64 `json:"duration_ms"`
}

// Closure is the ordered, deduplicated set of files reachable from a root
// set. Roots are never members.
//
// Invariants: no path appears twice and a path's depth is never changed
// after it is recorded.
type Closure struct {
	// RunID identifies the traversal in logs and spans.
	RunID string `json:"run_id"`

	// Roots are the canonical root paths, deduplicated, in input order.
	Roots []string `json:"roots"`

	// MaxDepth is the limit the closure was built with.
	MaxDepth Depth `json:"max_depth"`

	// Dependencies are in breadth-first discovery order.
	Dependencies []ResolvedDependency `json:"dependencies"`

	// Unreadable lists members (or roots) whose content could not be read.
	// They are still members of the closure.
	Unreadable []string `json:"unreadable,omitempty"`

	// Incomplete is true when the traversal stopped early because the
	// context was done.
	Incomplete bool `json:"incomplete,omitempty"`

	Stats BuildStats `json:"stats"`

	index map[string]int
}

func newClosure(runID string, maxDepth Depth) *Closure {
	return &Closure{
		RunID:        runID,
		MaxDepth:     maxDepth,
		Dependencies: make([]ResolvedDependency, 0),
		index:        make(map[string]int),
	}
}

// add appends path at depth. It reports false, leaving the closure
// unchanged, when path is already a member.
func (c *Closure) add(path string, depth Depth) bool {
	if _, ok := c.index[path]; ok {
		return false
	}
	c.index[path] = len(c.Dependencies)
	c.Dependencies = append(c.Dependencies, ResolvedDependency{Path: path, Depth: depth})
	return true
}

// Paths returns member paths in discovery order.
func (c *Closure) Paths() []string {
	paths := make([]string, len(c.Dependencies))
	for i, d := range c.Dependencies {
		paths[i] = d.Path
	}
	return paths
}

// Len returns the number of members.
func (c *Closure) Len() int {
	return len(c.Dependencies)
}

// Contains reports whether path is a member.
func (c *Closure) Contains(path string) bool {
	_, ok := c.index[path]
	return ok
}

// DepthOf returns the depth a member was discovered at.
func (c *Closure) DepthOf(path string) (Depth, bool) {
	i, ok := c.index[path]
	if !ok {
		return 0, false
	}
	return c.Dependencies[i].Depth, true
}
