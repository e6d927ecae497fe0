// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve maps raw import specifiers to project files on disk.
package resolve

import (
	"os"
	"path/filepath"
	"strings"
)

// Default probing configuration.
var (
	// DefaultExtensions are appended to a candidate path in order.
	DefaultExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".py"}

	// DefaultIndexFiles are tried when the candidate names a directory.
	DefaultIndexFiles = []string{"index.js", "index.ts"}

	// DefaultExternalDirs hold installed third-party packages.
	DefaultExternalDirs = []string{"node_modules"}
)

// pythonIndexFile marks a Python package directory.
const pythonIndexFile = "__init__.py"

// Option configures a Resolver.
type Option func(*Resolver)

// WithExtensions replaces the probed extension list.
func WithExtensions(exts ...string) Option {
	return func(r *Resolver) {
		if len(exts) > 0 {
			r.extensions = normalizeExtensions(exts)
		}
	}
}

// WithIndexFiles replaces the directory index file names.
func WithIndexFiles(names ...string) Option {
	return func(r *Resolver) {
		if len(names) > 0 {
			r.indexFiles = append([]string(nil), names...)
		}
	}
}

// WithExternalDirs replaces the external-dependency directories. Relative
// entries are taken relative to the project root.
func WithExternalDirs(dirs ...string) Option {
	return func(r *Resolver) {
		r.externalDirs = append([]string(nil), dirs...)
	}
}

// Resolver turns an import specifier plus the file it appears in into the
// canonical path of an existing project file.
//
// Thread Safety:
//
//	Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	root         string
	extensions   []string
	indexFiles   []string
	externalDirs []string
}

// New creates a Resolver for projectRoot.
func New(projectRoot string, opts ...Option) *Resolver {
	r := &Resolver{
		root:         Canonicalize(projectRoot),
		extensions:   append([]string(nil), DefaultExtensions...),
		indexFiles:   append([]string(nil), DefaultIndexFiles...),
		externalDirs: append([]string(nil), DefaultExternalDirs...),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProjectRoot returns the canonical project root.
func (r *Resolver) ProjectRoot() string {
	return r.root
}

// Resolve maps rawSpecifier, found in originFile, to a project file.
//
// Description:
//
//	A bare specifier (no leading ".", not absolute) naming an installed
//	external package is rejected. Everything else, including bare
//	specifiers that are not installed packages, is joined to the origin's
//	directory and probed: the exact path, each configured extension, then
//	each directory index file. The first regular file wins.
//
//	Python origins get dotted module paths translated first ("..a.b" is
//	"../a/b"), absolute module paths are also tried from the project root,
//	and "__init__.py" is an extra index file.
//
// Outputs:
//
//	string - Canonical absolute path of the resolved file.
//	bool   - False when the specifier is external or nothing matched.
//
// Filesystem errors are treated as "does not exist" for that probe.
func (r *Resolver) Resolve(rawSpecifier, originFile string) (string, bool) {
	spec := strings.TrimSpace(rawSpecifier)
	if spec == "" {
		return "", false
	}

	python := isPythonFile(originFile)
	if python && !filepath.IsAbs(spec) {
		spec = pythonModulePath(spec)
	}

	bare := isBare(spec)
	if bare && r.IsExternal(spec) {
		return "", false
	}

	originDir := filepath.Dir(originFile)
	var bases []string
	switch {
	case filepath.IsAbs(spec):
		bases = []string{filepath.Clean(spec)}
	case bare && python:
		bases = []string{filepath.Join(originDir, spec), filepath.Join(r.root, spec)}
	default:
		bases = []string{filepath.Join(originDir, spec)}
	}

	indexFiles := r.indexFiles
	if python {
		indexFiles = append(append([]string(nil), indexFiles...), pythonIndexFile)
	}

	for _, base := range bases {
		if found, ok := r.probe(base, indexFiles); ok {
			return Canonicalize(found), true
		}
	}
	return "", false
}

// IsExternal reports whether a bare specifier names a directory under one
// of the external-dependency directories. Both the full specifier and its
// package name ("lodash" for "lodash/fp", "@scope/pkg" for
// "@scope/pkg/sub") are checked.
func (r *Resolver) IsExternal(spec string) bool {
	if !isBare(spec) {
		return false
	}

	names := []string{spec}
	if pkg := packageName(spec); pkg != "" && pkg != spec {
		names = append(names, pkg)
	}

	for _, dir := range r.externalDirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(r.root, dir)
		}
		for _, name := range names {
			if isDir(filepath.Join(dir, filepath.FromSlash(name))) {
				return true
			}
		}
	}
	return false
}

// probe returns the first existing regular file among base, base+ext and
// base/index.
func (r *Resolver) probe(base string, indexFiles []string) (string, bool) {
	if isRegularFile(base) {
		return base, true
	}
	for _, ext := range r.extensions {
		if candidate := base + ext; isRegularFile(candidate) {
			return candidate, true
		}
	}
	for _, index := range indexFiles {
		if candidate := filepath.Join(base, index); isRegularFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Canonicalize returns an absolute, cleaned path with symlinks evaluated.
// When the path cannot be evaluated (it does not exist, permission denied)
// the cleaned absolute form is returned.
func Canonicalize(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// isBare reports whether spec is neither relative nor absolute.
func isBare(spec string) bool {
	return !strings.HasPrefix(spec, ".") && !filepath.IsAbs(spec)
}

// packageName returns the npm package portion of a bare specifier.
func packageName(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// pythonModulePath turns a dotted module reference into a relative path:
// ".a.b" -> "./a/b", "..a" -> "../a", "." -> ".", "a.b" -> "a/b".
func pythonModulePath(spec string) string {
	dots := len(spec) - len(strings.TrimLeft(spec, "."))
	rest := strings.ReplaceAll(spec[dots:], ".", "/")

	if dots == 0 {
		return rest
	}

	prefix := "."
	if dots > 1 {
		prefix = strings.TrimSuffix(strings.Repeat("../", dots-1), "/")
	}
	if rest == "" {
		return prefix
	}
	return prefix + "/" + rest
}

func isPythonFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi":
		return true
	default:
		return false
	}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
