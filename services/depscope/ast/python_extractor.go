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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Python extractor defaults.
const (
	// DefaultPythonTimeout bounds one interpreter invocation.
	DefaultPythonTimeout = 5 * time.Second
)

// DefaultPythonCommand is the interpreter invocation used when none is configured.
var DefaultPythonCommand = []string{"python3"}

// pythonImportScript enumerates import statements with the interpreter's
// own parser and prints them as a JSON list ordered by position.
const pythonImportScript = `import ast, json, sys
tree = ast.parse(sys.stdin.buffer.read())
out = []
for node in ast.walk(tree):
    if isinstance(node, ast.Import):
        for a in node.names:
            out.append({"kind": "import", "source": a.name, "line": node.lineno, "col": node.col_offset,
                        "names": [[a.name, a.asname or a.name]]})
    elif isinstance(node, ast.ImportFrom):
        out.append({"kind": "from", "source": "." * (node.level or 0) + (node.module or ""),
                    "line": node.lineno, "col": node.col_offset,
                    "names": [[a.name, a.asname or a.name] for a in node.names]})
out.sort(key=lambda r: (r["line"], r["col"]))
json.dump(out, sys.stdout)
`

// pythonImport is one record of the script's output.
type pythonImport struct {
	Kind   string      `json:"kind"`
	Source string      `json:"source"`
	Line   int         `json:"line"`
	Col    int         `json:"col"`
	Names  [][2]string `json:"names"`
}

// PythonExtractorOption configures a PythonExtractor.
type PythonExtractorOption func(*PythonExtractor)

// WithCommandRunner replaces the process runner.
func WithCommandRunner(runner CommandRunner) PythonExtractorOption {
	return func(e *PythonExtractor) {
		if runner != nil {
			e.runner = runner
		}
	}
}

// WithPythonCommand sets the interpreter invocation, e.g. {"python3"} or
// {"uv", "run", "python"}.
func WithPythonCommand(command ...string) PythonExtractorOption {
	return func(e *PythonExtractor) {
		if len(command) > 0 && command[0] != "" {
			e.command = append([]string(nil), command...)
		}
	}
}

// WithPythonTimeout bounds each interpreter invocation.
func WithPythonTimeout(d time.Duration) PythonExtractorOption {
	return func(e *PythonExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithPythonLogger sets the logger used for fallback diagnostics.
func WithPythonLogger(logger *slog.Logger) PythonExtractorOption {
	return func(e *PythonExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// PythonExtractor extracts imports from Python files.
//
// Description:
//
//	The interpreter's ast module is invoked through a CommandRunner with the
//	source on stdin. A non-zero exit, a timeout, a missing interpreter or
//	output that is not the expected JSON all fall back to line-anchored
//	regex scanning.
//
// Thread Safety:
//
//	Safe for concurrent use as long as the CommandRunner is.
type PythonExtractor struct {
	runner  CommandRunner
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPythonExtractor creates a PythonExtractor backed by ExecRunner unless
// WithCommandRunner is given.
func NewPythonExtractor(opts ...PythonExtractorOption) *PythonExtractor {
	e := &PythonExtractor{
		runner:  ExecRunner{},
		command: append([]string(nil), DefaultPythonCommand...),
		timeout: DefaultPythonTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Language implements Extractor.
func (e *PythonExtractor) Language() Language {
	return LanguagePython
}

// Extensions implements Extractor.
func (e *PythonExtractor) Extensions() []string {
	return append([]string(nil), pyExtensions...)
}

// Extract implements Extractor.
func (e *PythonExtractor) Extract(ctx context.Context, content []byte, path string) []ImportReference {
	start := time.Now()
	ctx, span := startExtractSpan(ctx, LanguagePython, path, len(content))
	defer span.End()

	strategy := strategySubprocess
	refs, err := e.runParser(ctx, content, path)
	if err != nil {
		e.logger.Debug("python parser failed, scanning with regex",
			slog.String("file", path),
			slog.String("error", err.Error()))
		strategy = strategyRegex
		refs = scanPythonImports(content, path)
	}

	setExtractSpanResult(span, strategy, len(refs))
	recordExtractMetrics(ctx, LanguagePython, strategy, time.Since(start), len(refs))
	return refs
}

// runParser invokes the interpreter. Failures wrap ErrExternalTool.
func (e *PythonExtractor) runParser(ctx context.Context, content []byte, path string) ([]ImportReference, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string(nil), e.command[1:]...), "-c", pythonImportScript)
	out, err := e.runner.Run(runCtx, content, e.command[0], args...)
	if err != nil {
		return nil, newExtractError(path, strategySubprocess, fmt.Errorf("%w: %v", ErrExternalTool, err))
	}

	records, err := decodePythonImports(out)
	if err != nil {
		return nil, newExtractError(path, strategySubprocess, fmt.Errorf("%w: %v", ErrExternalTool, err))
	}

	refs := make([]ImportReference, 0, len(records))
	for _, rec := range records {
		if rec.Source == "" {
			continue
		}
		ref := ImportReference{
			RawSpecifier: rec.Source,
			Kind:         PlainImport,
			OriginFile:   path,
		}
		if rec.Kind == "from" {
			ref.Kind = FromImport
		}
		for _, n := range rec.Names {
			ref.Specifiers = append(ref.Specifiers, ImportSpecifier{Imported: n[0], Local: n[1]})
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// decodePythonImports strictly decodes the script output.
func decodePythonImports(out []byte) ([]pythonImport, error) {
	dec := json.NewDecoder(bytes.NewReader(out))
	dec.DisallowUnknownFields()

	var records []pythonImport
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("malformed parser output: %w", err)
	}
	if records == nil {
		return nil, fmt.Errorf("malformed parser output: expected a JSON list")
	}
	for i, rec := range records {
		if rec.Kind != "import" && rec.Kind != "from" {
			return nil, fmt.Errorf("malformed parser output: record %d has kind %q", i, rec.Kind)
		}
	}
	return records, nil
}
