// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Extractor defines the contract for language-specific import extraction.
//
// Description:
//
//	Extractor implementations turn file content into raw import references.
//	Each implementation covers one language group and is selected by file
//	extension through a Registry.
//
// Inputs:
//
//	ctx     - Bounds any blocking work (external parsers).
//	content - Raw file bytes. May be invalid UTF-8 or binary.
//	path    - Path of the file, recorded as OriginFile on every reference.
//
// Outputs:
//
//	[]ImportReference - Best-effort references in source order. Never an error;
//	                    an implementation that cannot make sense of the input
//	                    returns an empty slice.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, content []byte, path string) []ImportReference

	// Language returns the language group handled.
	Language() Language

	// Extensions returns lowercase extensions including the leading dot.
	Extensions() []string
}

// Registry selects an Extractor by file extension.
//
// Thread Safety:
//
//	Registry is safe for concurrent use. Registration takes a write lock,
//	lookups take a read lock.
type Registry struct {
	mu          sync.RWMutex
	byLanguage  map[Language]Extractor
	byExtension map[string]Extractor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[Language]Extractor),
		byExtension: make(map[string]Extractor),
	}
}

// Register adds an extractor under its language and every extension it
// declares. Later registrations overwrite earlier ones.
func (r *Registry) Register(e Extractor) {
	if e == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[e.Language()] = e
	for _, ext := range e.Extensions() {
		r.byExtension[strings.ToLower(ext)] = e
	}
}

// Lookup returns the extractor registered for the path's extension.
func (r *Registry) Lookup(path string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byExtension[strings.ToLower(filepath.Ext(path))]
	return e, ok
}

// ByLanguage returns the extractor registered for a language group.
func (r *Registry) ByLanguage(lang Language) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byLanguage[lang]
	return e, ok
}

// Supports reports whether an extractor is registered for the path.
func (r *Registry) Supports(path string) bool {
	_, ok := r.Lookup(path)
	return ok
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract dispatches to the extractor for path. Unrecognized extensions
// yield an empty result.
func (r *Registry) Extract(ctx context.Context, content []byte, path string) []ImportReference {
	e, ok := r.Lookup(path)
	if !ok {
		return nil
	}
	return e.Extract(ctx, content, path)
}

// RegistryOptions configures NewDefaultRegistry.
type RegistryOptions struct {
	// RegexOnly registers RegexExtractor variants instead of the parser
	// backed extractors.
	RegexOnly bool

	// Python configures the Python extractor.
	Python []PythonExtractorOption

	// Logger receives fallback diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// NewDefaultRegistry returns a registry with the JS-family and Python
// extractors registered.
//
// Example:
//
//	reg := ast.NewDefaultRegistry(ast.RegistryOptions{
//	    Python: []ast.PythonExtractorOption{ast.WithPythonTimeout(3 * time.Second)},
//	})
//	refs := reg.Extract(ctx, content, "/repo/src/app.ts")
func NewDefaultRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := NewRegistry()
	if opts.RegexOnly {
		r.Register(NewRegexExtractor(LanguageJavaScript))
		r.Register(NewRegexExtractor(LanguagePython))
		return r
	}

	r.Register(NewJavaScriptExtractor(WithJavaScriptLogger(logger)))
	pyOpts := append([]PythonExtractorOption{WithPythonLogger(logger)}, opts.Python...)
	r.Register(NewPythonExtractor(pyOpts...))
	return r
}
