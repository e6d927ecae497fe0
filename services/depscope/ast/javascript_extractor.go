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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// DefaultMaxFileSize is the largest file the tree-sitter path will parse
// (10MB). Larger files go straight to regex scanning.
const DefaultMaxFileSize = 10 * 1024 * 1024

// JavaScriptExtractorOption configures a JavaScriptExtractor.
type JavaScriptExtractorOption func(*JavaScriptExtractor)

// WithJavaScriptMaxFileSize sets the parse size limit in bytes.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptExtractorOption {
	return func(e *JavaScriptExtractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// WithJavaScriptLogger sets the logger used for fallback diagnostics.
func WithJavaScriptLogger(logger *slog.Logger) JavaScriptExtractorOption {
	return func(e *JavaScriptExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// JavaScriptExtractor extracts imports from JavaScript and TypeScript files.
//
// Description:
//
//	Content is parsed with tree-sitter. The tsx grammar (JSX enabled) is used
//	for .jsx and .tsx files; every other extension uses the typescript
//	grammar, which accepts plain JavaScript as well. The tree is walked
//	generically and the following are recorded:
//
//	  import ... from 'm' / import 'm'      -> StaticImport
//	  export ... from 'm'                   -> StaticImport
//	  require('m')                          -> DynamicRequire
//	  import x = require('m')               -> DynamicRequire
//
//	A tree containing syntax errors, a failed parse, or a panic inside the
//	parser binding all fall back to regex scanning of the raw text.
//
// Thread Safety:
//
//	Safe for concurrent use. Each Extract call creates its own tree-sitter
//	parser.
type JavaScriptExtractor struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewJavaScriptExtractor creates a JavaScriptExtractor.
func NewJavaScriptExtractor(opts ...JavaScriptExtractorOption) *JavaScriptExtractor {
	e := &JavaScriptExtractor{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Language implements Extractor.
func (e *JavaScriptExtractor) Language() Language {
	return LanguageJavaScript
}

// Extensions implements Extractor.
func (e *JavaScriptExtractor) Extensions() []string {
	return append([]string(nil), jsExtensions...)
}

// Extract implements Extractor.
func (e *JavaScriptExtractor) Extract(ctx context.Context, content []byte, path string) []ImportReference {
	start := time.Now()
	lang := LanguageForPath(path)
	ctx, span := startExtractSpan(ctx, lang, path, len(content))
	defer span.End()

	strategy := strategyTreeSitter
	refs, err := e.parse(ctx, content, path)
	if err != nil {
		e.logger.Debug("tree-sitter extraction failed, scanning with regex",
			slog.String("file", path),
			slog.String("error", err.Error()))
		strategy = strategyRegex
		refs = scanJSImports(content, path)
	}

	setExtractSpanResult(span, strategy, len(refs))
	recordExtractMetrics(ctx, lang, strategy, time.Since(start), len(refs))
	return refs
}

// parse runs the tree-sitter strategy. Any failure is returned as an
// *ExtractError wrapping ErrParseFailure.
func (e *JavaScriptExtractor) parse(ctx context.Context, content []byte, path string) (refs []ImportReference, err error) {
	defer func() {
		if r := recover(); r != nil {
			refs = nil
			err = newExtractError(path, strategyTreeSitter, fmt.Errorf("%w: panic: %v", ErrParseFailure, r))
		}
	}()

	if int64(len(content)) > e.maxFileSize {
		return nil, newExtractError(path, strategyTreeSitter,
			fmt.Errorf("%w: size %d exceeds limit %d", ErrParseFailure, len(content), e.maxFileSize))
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammarFor(path))

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, newExtractError(path, strategyTreeSitter, errors.Join(ErrParseFailure, err))
	}
	if tree == nil {
		return nil, newExtractError(path, strategyTreeSitter, fmt.Errorf("%w: nil tree", ErrParseFailure))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, newExtractError(path, strategyTreeSitter, fmt.Errorf("%w: nil root node", ErrParseFailure))
	}
	if root.HasError() {
		return nil, newExtractError(path, strategyTreeSitter, fmt.Errorf("%w: source contains syntax errors", ErrParseFailure))
	}

	return walkJSTree(root, content, path), nil
}

// grammarFor enables JSX only for .jsx and .tsx files.
func grammarFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsx", ".tsx":
		return tsx.GetLanguage()
	default:
		return typescript.GetLanguage()
	}
}

// walkJSTree visits every node in pre-order with an explicit stack. Only
// child links are followed and comment nodes are skipped, so the walk is
// bounded by the tree size regardless of nesting depth.
func walkJSTree(root *sitter.Node, content []byte, path string) []ImportReference {
	refs := make([]ImportReference, 0)
	stack := []*sitter.Node{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}

		switch n.Type() {
		case "comment":
			continue
		case "import_statement":
			if ref, ok := importStatementRef(n, content, path); ok {
				refs = append(refs, ref)
			}
			// Children hold no further references.
			continue
		case "export_statement":
			if src := n.ChildByFieldName("source"); src != nil {
				if spec, ok := stringLiteral(src, content); ok {
					refs = append(refs, ImportReference{
						RawSpecifier: spec,
						Kind:         StaticImport,
						OriginFile:   path,
					})
				}
				continue
			}
		case "call_expression":
			if spec, ok := requireCall(n, content); ok {
				refs = append(refs, ImportReference{
					RawSpecifier: spec,
					Kind:         DynamicRequire,
					OriginFile:   path,
				})
			}
		}

		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.Child(i))
		}
	}

	return refs
}

// importStatementRef builds the reference for an import_statement, covering
// the TypeScript "import x = require('m')" form as well.
func importStatementRef(n *sitter.Node, content []byte, path string) (ImportReference, bool) {
	if src := n.ChildByFieldName("source"); src != nil {
		spec, ok := stringLiteral(src, content)
		if !ok {
			return ImportReference{}, false
		}
		return ImportReference{
			RawSpecifier: spec,
			Kind:         StaticImport,
			OriginFile:   path,
			Specifiers:   importSpecifiers(n, content),
		}, true
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "import_require_clause" {
			continue
		}
		src := child.ChildByFieldName("source")
		if src == nil {
			src = firstChildOfType(child, "string")
		}
		if src == nil {
			return ImportReference{}, false
		}
		spec, ok := stringLiteral(src, content)
		if !ok {
			return ImportReference{}, false
		}
		ref := ImportReference{
			RawSpecifier: spec,
			Kind:         DynamicRequire,
			OriginFile:   path,
		}
		if id := firstChildOfType(child, "identifier"); id != nil {
			local := id.Content(content)
			ref.Specifiers = []ImportSpecifier{{Imported: DefaultImportName, Local: local}}
		}
		return ref, true
	}

	return ImportReference{}, false
}

// importSpecifiers collects the names bound by an import_clause.
func importSpecifiers(stmt *sitter.Node, content []byte) []ImportSpecifier {
	clause := firstChildOfType(stmt, "import_clause")
	if clause == nil {
		return nil
	}

	var specs []ImportSpecifier
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "identifier":
			specs = append(specs, ImportSpecifier{Imported: DefaultImportName, Local: child.Content(content)})
		case "namespace_import":
			if id := firstChildOfType(child, "identifier"); id != nil {
				specs = append(specs, ImportSpecifier{Imported: NamespaceImportName, Local: id.Content(content)})
			}
		case "named_imports":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil {
					continue
				}
				imported := strings.Trim(name.Content(content), `"'`)
				local := imported
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = alias.Content(content)
				}
				specs = append(specs, ImportSpecifier{Imported: imported, Local: local})
			}
		}
	}
	return specs
}

// requireCall reports the module of a call whose callee is the bare
// identifier "require" and whose sole argument is a string literal.
func requireCall(call *sitter.Node, content []byte) (string, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || fn.Content(content) != "require" {
		return "", false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() != 1 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return "", false
	}
	return stringLiteral(arg, content)
}

// stringLiteral returns the unquoted value of a string node.
func stringLiteral(n *sitter.Node, content []byte) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "string_fragment", "escape_sequence":
			b.WriteString(child.Content(content))
		}
	}
	if b.Len() > 0 {
		return b.String(), true
	}
	raw := strings.Trim(n.Content(content), `"'`)
	return raw, raw != ""
}

func firstChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}
