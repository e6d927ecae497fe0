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
	"regexp"
	"sort"
	"strings"
)

var (
	// jsImportPattern matches "import ... from 'm'", "import 'm'" and
	// "export ... from 'm'". Group 1 is the module string.
	jsImportPattern = regexp.MustCompile(
		`\b(?:import\s+(?:type\s+)?(?:[\w$*{}\s,]+?\s+from\s+)?|export\s+(?:type\s+)?[\w$*{}\s,]+?\s+from\s+)['"]([^'"\r\n]+)['"]`)

	// jsRequirePattern matches "require('m')". Group 1 is the module string.
	jsRequirePattern = regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"\r\n]+)['"]\s*\)`)

	// pyImportPattern matches "import a.b, c as d". Group 1 is the module list.
	pyImportPattern = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([\w.]+(?:[ \t]+as[ \t]+\w+)?(?:[ \t]*,[ \t]*[\w.]+(?:[ \t]+as[ \t]+\w+)?)*)`)

	// pyFromPattern matches "from ..a.b import". Group 1 is the module.
	pyFromPattern = regexp.MustCompile(`(?m)^[ \t]*from[ \t]+(\.*[\w.]*)[ \t]+import\b`)
)

var (
	jsExtensions = []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx"}
	pyExtensions = []string{".py", ".pyi"}
)

// RegexExtractor scans raw text with regular expressions only.
//
// It is both the fallback used by the parser-backed extractors and a
// standalone variant for callers that want to skip parsing entirely.
// It never panics, whatever the input.
type RegexExtractor struct {
	lang Language
}

// NewRegexExtractor creates a regex-only extractor for a language group.
// Any JS-family language selects the JavaScript patterns.
func NewRegexExtractor(lang Language) *RegexExtractor {
	if lang.IsJSFamily() {
		lang = LanguageJavaScript
	}
	return &RegexExtractor{lang: lang}
}

// Extract implements Extractor.
func (e *RegexExtractor) Extract(_ context.Context, content []byte, path string) []ImportReference {
	switch e.lang {
	case LanguageJavaScript:
		return scanJSImports(content, path)
	case LanguagePython:
		return scanPythonImports(content, path)
	default:
		return nil
	}
}

// Language implements Extractor.
func (e *RegexExtractor) Language() Language {
	return e.lang
}

// Extensions implements Extractor.
func (e *RegexExtractor) Extensions() []string {
	switch e.lang {
	case LanguageJavaScript:
		return append([]string(nil), jsExtensions...)
	case LanguagePython:
		return append([]string(nil), pyExtensions...)
	default:
		return nil
	}
}

type positionedRef struct {
	offset int
	ref    ImportReference
}

// scanJSImports runs the import and require scans independently and merges
// the hits in text order.
func scanJSImports(content []byte, path string) []ImportReference {
	var hits []positionedRef

	for _, m := range jsImportPattern.FindAllSubmatchIndex(content, -1) {
		hits = append(hits, positionedRef{
			offset: m[0],
			ref: ImportReference{
				RawSpecifier: string(content[m[2]:m[3]]),
				Kind:         StaticImport,
				OriginFile:   path,
			},
		})
	}
	for _, m := range jsRequirePattern.FindAllSubmatchIndex(content, -1) {
		hits = append(hits, positionedRef{
			offset: m[0],
			ref: ImportReference{
				RawSpecifier: string(content[m[2]:m[3]]),
				Kind:         DynamicRequire,
				OriginFile:   path,
			},
		})
	}

	return sortedRefs(hits)
}

// scanPythonImports runs the line-anchored import and from scans.
func scanPythonImports(content []byte, path string) []ImportReference {
	var hits []positionedRef

	for _, m := range pyImportPattern.FindAllSubmatchIndex(content, -1) {
		for _, part := range strings.Split(string(content[m[2]:m[3]]), ",") {
			fields := strings.Fields(part)
			if len(fields) == 0 {
				continue
			}
			hits = append(hits, positionedRef{
				offset: m[0],
				ref: ImportReference{
					RawSpecifier: fields[0],
					Kind:         PlainImport,
					OriginFile:   path,
				},
			})
		}
	}
	for _, m := range pyFromPattern.FindAllSubmatchIndex(content, -1) {
		module := string(content[m[2]:m[3]])
		if module == "" {
			continue
		}
		hits = append(hits, positionedRef{
			offset: m[0],
			ref: ImportReference{
				RawSpecifier: module,
				Kind:         FromImport,
				OriginFile:   path,
			},
		})
	}

	return sortedRefs(hits)
}

func sortedRefs(hits []positionedRef) []ImportReference {
	if len(hits) == 0 {
		return []ImportReference{}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })

	refs := make([]ImportReference, len(hits))
	for i, h := range hits {
		refs[i] = h.ref
	}
	return refs
}
