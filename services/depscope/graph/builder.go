// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph computes the dependency closure of a set of root files.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/depscope/services/depscope/ast"
	"github.com/AleutianAI/depscope/services/depscope/resolve"
)

// Default builder configuration values.
const (
	// DefaultMaxFileSize is the largest file the default reader loads for
	// extraction (10MB). Larger files stay in the closure unexpanded.
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// ImportExtractor produces raw import references for a file.
// *ast.Registry satisfies it.
type ImportExtractor interface {
	Extract(ctx context.Context, content []byte, path string) []ast.ImportReference
	Supports(path string) bool
}

// PathResolver maps a specifier found in originFile to a canonical project
// path. *resolve.Resolver satisfies it.
type PathResolver interface {
	Resolve(rawSpecifier, originFile string) (string, bool)
}

// FileReader loads file content for extraction.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// osReader reads from the local filesystem, refusing files over maxSize.
type osReader struct {
	maxSize int64
}

// ReadFile implements FileReader.
func (r osReader) ReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	if r.maxSize > 0 && info.Size() > r.maxSize {
		return nil, fmt.Errorf("%s: %w: %d bytes", path, ErrFileTooLarge, info.Size())
	}
	return os.ReadFile(path)
}

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// WorkerCount bounds concurrent file expansions within one frontier.
	// Default: runtime.NumCPU()
	WorkerCount int

	// MaxFileSize is the default reader's size limit in bytes.
	// Default: 10MB
	MaxFileSize int64

	// Extractor overrides the default extractor registry.
	Extractor ImportExtractor

	// Resolver overrides the default project resolver.
	Resolver PathResolver

	// Reader overrides the default filesystem reader.
	Reader FileReader

	// Logger receives per-file diagnostics and run summaries.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		WorkerCount: runtime.NumCPU(),
		MaxFileSize: DefaultMaxFileSize,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithWorkerCount sets the number of parallel expansions.
func WithWorkerCount(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.WorkerCount = n
	}
}

// WithMaxFileSize sets the default reader's size limit.
func WithMaxFileSize(bytes int64) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxFileSize = bytes
	}
}

// WithExtractor sets the import extractor.
func WithExtractor(e ImportExtractor) BuilderOption {
	return func(o *BuilderOptions) {
		o.Extractor = e
	}
}

// WithResolver sets the path resolver.
func WithResolver(r PathResolver) BuilderOption {
	return func(o *BuilderOptions) {
		o.Resolver = r
	}
}

// WithReader sets the file reader.
func WithReader(r FileReader) BuilderOption {
	return func(o *BuilderOptions) {
		o.Reader = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = l
	}
}

// Builder computes dependency closures.
//
// The builder holds only configuration. Each Build call owns its own
// traversal state, so one Builder may serve concurrent Build calls.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a Builder for projectRoot.
//
// Example:
//
//	builder := graph.NewBuilder("/path/to/project", graph.WithWorkerCount(4))
//	closure := builder.Build(ctx, []string{"/path/to/project/src/app.ts"}, 2)
//	for _, path := range closure.Paths() {
//	    fmt.Println(path)
//	}
func NewBuilder(projectRoot string, opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.WorkerCount <= 0 {
		options.WorkerCount = runtime.NumCPU()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Extractor == nil {
		options.Extractor = ast.NewDefaultRegistry(ast.RegistryOptions{Logger: options.Logger})
	}
	if options.Resolver == nil {
		options.Resolver = resolve.New(projectRoot)
	}
	if options.Reader == nil {
		options.Reader = osReader{maxSize: options.MaxFileSize}
	}

	return &Builder{options: options}
}

// queued is a worklist entry.
type queued struct {
	path  string
	depth Depth
}

// expansion is what a worker learned about one file.
type expansion struct {
	resolved []string
	refs     int
	readErr  error
}

// traversal is the mutable state of one Build call. Only the merge step
// writes to it.
type traversal struct {
	visited map[string]struct{}
	closure *Closure
	queue   []queued
}

func newTraversal(runID string, maxDepth Depth) *traversal {
	return &traversal{
		visited: make(map[string]struct{}),
		closure: newClosure(runID, maxDepth),
	}
}

// seed enqueues every distinct root at depth 0 and marks it visited.
func (t *traversal) seed(roots []string) {
	for _, root := range roots {
		if root == "" {
			continue
		}
		p := resolve.Canonicalize(root)
		if _, ok := t.visited[p]; ok {
			continue
		}
		t.visited[p] = struct{}{}
		t.closure.Roots = append(t.closure.Roots, p)
		t.queue = append(t.queue, queued{path: p, depth: 0})
	}
}

// nextLevel pops every queued entry sharing the head's depth. Depths in the
// queue never decrease, so this is exactly the next BFS level.
func (t *traversal) nextLevel() []queued {
	depth := t.queue[0].depth
	n := 0
	for n < len(t.queue) && t.queue[n].depth == depth {
		n++
	}
	level := t.queue[:n:n]
	t.queue = t.queue[n:]
	return level
}

// merge folds worker results into the traversal in worklist order, which
// makes the outcome identical to a sequential FIFO traversal.
func (t *traversal) merge(level []queued, results []expansion) {
	for i, item := range level {
		res := results[i]
		t.closure.Stats.FilesExpanded++
		t.closure.Stats.ReferencesFound += res.refs
		t.closure.Stats.ReferencesResolved += len(res.resolved)
		if res.readErr != nil && !errors.Is(res.readErr, ErrFileTooLarge) {
			t.closure.Stats.ReadFailures++
			t.closure.Unreadable = append(t.closure.Unreadable, item.path)
		}

		for _, p := range res.resolved {
			if _, ok := t.visited[p]; ok {
				continue
			}
			t.visited[p] = struct{}{}
			t.closure.add(p, item.depth+1)
			t.queue = append(t.queue, queued{path: p, depth: item.depth + 1})
		}
	}
}

// Build computes the dependency closure of roots.
//
// Description:
//
//	Breadth-first traversal over an explicit worklist. Roots start at depth 0
//	and are marked visited up front, so a root is never emitted and never
//	expanded twice, even when another root imports it. A node at
//	depth >= maxDepth is kept but not expanded. Every other node is read,
//	its imports extracted and resolved, and each newly seen file is appended
//	to the closure at depth+1.
//
//	Files in one BFS level are expanded concurrently, bounded by
//	WorkerCount. Results are merged single-threaded in worklist order, so
//	ordering and depths match a sequential traversal exactly.
//
// Inputs:
//
//	ctx      - Cancellation stops the traversal at the next level boundary;
//	           the partial closure is returned with Incomplete set.
//	roots    - Root file paths. Canonicalized and deduplicated.
//	maxDepth - Depth limit, or Unbounded.
//
// Outputs:
//
//	*Closure - Never nil. Per-file failures are absorbed: unreadable files
//	           stay in the closure and are listed in Unreadable.
func (b *Builder) Build(ctx context.Context, roots []string, maxDepth Depth) *Closure {
	start := time.Now()
	runID := uuid.NewString()

	ctx, span := startBuildSpan(ctx, runID, len(roots), maxDepth)
	defer span.End()

	logger := b.options.Logger.With(slog.String("run_id", runID))

	t := newTraversal(runID, maxDepth)
	t.seed(roots)

	for len(t.queue) > 0 {
		if ctx.Err() != nil {
			t.closure.Incomplete = true
			break
		}

		level := t.nextLevel()
		if maxDepth.Bounded() && level[0].depth >= maxDepth {
			continue
		}

		results := b.expandLevel(ctx, logger, level)
		t.merge(level, results)

		if ctx.Err() != nil {
			t.closure.Incomplete = true
			break
		}
	}

	duration := time.Since(start)
	t.closure.Stats.DurationMilli = duration.Milliseconds()

	setBuildSpanResult(span, t.closure)
	recordBuildMetrics(ctx, duration, t.closure)

	logger.Info("dependency closure built",
		slog.Int("roots", len(t.closure.Roots)),
		slog.String("max_depth", maxDepth.String()),
		slog.Int("files", t.closure.Len()),
		slog.Int("unreadable", len(t.closure.Unreadable)),
		slog.Bool("incomplete", t.closure.Incomplete),
		slog.Int64("duration_ms", t.closure.Stats.DurationMilli))

	return t.closure
}

// expandLevel expands every file in level with bounded concurrency.
func (b *Builder) expandLevel(ctx context.Context, logger *slog.Logger, level []queued) []expansion {
	results := make([]expansion, len(level))

	var g errgroup.Group
	g.SetLimit(b.options.WorkerCount)
	for i, item := range level {
		g.Go(func() error {
			results[i] = b.expand(ctx, logger, item.path)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// expand reads one file and resolves its imports. It never fails; a read
// error is reported in the expansion and yields no imports.
func (b *Builder) expand(ctx context.Context, logger *slog.Logger, path string) expansion {
	if ctx.Err() != nil {
		return expansion{}
	}
	if !b.options.Extractor.Supports(path) {
		return expansion{}
	}

	content, err := b.options.Reader.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRead, err)
		logger.Debug("skipping extraction",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return expansion{readErr: err}
	}

	refs := b.options.Extractor.Extract(ctx, content, path)
	exp := expansion{refs: len(refs)}

	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		resolved, ok := b.options.Resolver.Resolve(ref.RawSpecifier, path)
		if !ok {
			logger.Debug(ErrResolution.Error(),
				slog.String("file", path),
				slog.String("specifier", ref.RawSpecifier),
				slog.String("kind", ref.Kind.String()))
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		exp.resolved = append(exp.resolved, resolved)
	}
	return exp
}
