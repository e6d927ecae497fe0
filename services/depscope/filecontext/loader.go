// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filecontext loads the content of closure files for downstream
// consumers, skipping files that cannot usefully be included as text.
package filecontext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// sniffLen is how much of a file is checked for NUL bytes.
const sniffLen = 8 * 1024

// Default limits.
const (
	DefaultMaxFileSize  int64 = 1024 * 1024
	DefaultMaxTotalSize int64 = 0
)

// File is a loaded text file.
type File struct {
	// Path is the absolute path.
	Path string `json:"path"`

	// RelPath is Path relative to the loader's base directory, or Path when
	// no base is set or Path lies outside it.
	RelPath string `json:"rel_path"`

	Content string `json:"content"`
	Size    int64  `json:"size"`
}

// Skipped records a file that was not loaded.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Bundle is the result of a Load call, in input order.
type Bundle struct {
	Files      []File    `json:"files"`
	Skipped    []Skipped `json:"skipped,omitempty"`
	TotalBytes int64     `json:"total_bytes"`
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxFileSize skips files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(l *Loader) {
		l.maxFileSize = n
	}
}

// WithMaxTotalSize stops loading once the bundle would exceed n bytes.
// Zero disables the limit.
func WithMaxTotalSize(n int64) Option {
	return func(l *Loader) {
		l.maxTotalSize = n
	}
}

// WithBaseDir sets the directory RelPath is computed against.
func WithBaseDir(dir string) Option {
	return func(l *Loader) {
		l.baseDir = dir
	}
}

// WithWorkers bounds concurrent reads.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader reads closure files.
//
// Thread Safety:
//
//	Loader is immutable after construction and safe for concurrent use.
type Loader struct {
	maxFileSize  int64
	maxTotalSize int64
	baseDir      string
	workers      int
	logger       *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		maxFileSize:  DefaultMaxFileSize,
		maxTotalSize: DefaultMaxTotalSize,
		workers:      runtime.NumCPU(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// readResult is one file's outcome before the total budget is applied.
type readResult struct {
	file   File
	reason string
}

// Load reads paths in parallel and assembles a Bundle in input order.
//
// Files that are missing, unreadable, binary (a NUL byte in the first 8KB)
// or over the per-file limit are listed in Skipped with a reason. Once the
// total budget is reached every remaining file is skipped. The only error
// returned is the context's.
func (l *Loader) Load(ctx context.Context, paths []string) (*Bundle, error) {
	results := make([]readResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = l.read(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle := &Bundle{Files: make([]File, 0, len(paths))}
	for i, res := range results {
		if res.reason == "" && l.maxTotalSize > 0 && bundle.TotalBytes+res.file.Size > l.maxTotalSize {
			res.reason = fmt.Sprintf("total size budget of %s reached", humanize.IBytes(uint64(l.maxTotalSize)))
		}
		if res.reason != "" {
			l.logger.Debug("skipping file content",
				slog.String("file", paths[i]),
				slog.String("reason", res.reason))
			bundle.Skipped = append(bundle.Skipped, Skipped{Path: paths[i], Reason: res.reason})
			continue
		}
		bundle.Files = append(bundle.Files, res.file)
		bundle.TotalBytes += res.file.Size
	}
	return bundle, nil
}

func (l *Loader) read(path string) readResult {
	f, err := os.Open(path)
	if err != nil {
		return readResult{reason: fmt.Sprintf("unreadable: %v", err)}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return readResult{reason: fmt.Sprintf("unreadable: %v", err)}
	}
	if !info.Mode().IsRegular() {
		return readResult{reason: "not a regular file"}
	}
	if l.maxFileSize > 0 && info.Size() > l.maxFileSize {
		return readResult{reason: fmt.Sprintf("file is %s, over the %s limit",
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(l.maxFileSize)))}
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return readResult{reason: fmt.Sprintf("unreadable: %v", err)}
	}
	if IsBinary(content) {
		return readResult{reason: "binary content"}
	}

	return readResult{file: File{
		Path:    path,
		RelPath: l.relPath(path),
		Content: string(content),
		Size:    int64(len(content)),
	}}
}

func (l *Loader) relPath(path string) string {
	if l.baseDir == "" {
		return path
	}
	rel, err := filepath.Rel(l.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

// IsBinary reports whether content has a NUL byte in its first 8KB.
func IsBinary(content []byte) bool {
	if len(content) > sniffLen {
		content = content[:sniffLen]
	}
	return bytes.IndexByte(content, 0) >= 0
}
