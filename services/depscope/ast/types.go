// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts raw import references from source files.
//
// Extraction is best-effort by contract: an Extractor never returns an error.
// When the preferred strategy for a language fails (syntax errors, a broken
// external parser, a timeout), the extractor degrades to regular-expression
// scanning of the raw text and, failing that, to an empty result.
//
// Supported language groups:
//   - JavaScript/TypeScript (.js .mjs .cjs .jsx .ts .mts .cts .tsx) via tree-sitter
//   - Python (.py .pyi) via the interpreter's own ast module behind a CommandRunner
package ast

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Language identifies the language group a source file belongs to.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageUnknown    Language = "unknown"
)

// languageByExtension maps lowercase extensions to their language group.
var languageByExtension = map[string]Language{
	".js":  LanguageJavaScript,
	".mjs": LanguageJavaScript,
	".cjs": LanguageJavaScript,
	".jsx": LanguageJavaScript,
	".ts":  LanguageTypeScript,
	".mts": LanguageTypeScript,
	".cts": LanguageTypeScript,
	".tsx": LanguageTypeScript,
	".py":  LanguagePython,
	".pyi": LanguagePython,
}

// LanguageForPath returns the language group for a file path based on its
// extension. Unrecognized extensions return LanguageUnknown.
func LanguageForPath(path string) Language {
	if lang, ok := languageByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LanguageUnknown
}

// IsJSFamily reports whether the language is JavaScript or TypeScript.
func (l Language) IsJSFamily() bool {
	return l == LanguageJavaScript || l == LanguageTypeScript
}

// SourceFile is a read-only view of a file handed to an extractor.
type SourceFile struct {
	Path     string
	Language Language
}

// NewSourceFile builds a SourceFile, deriving the language from the path.
func NewSourceFile(path string) SourceFile {
	return SourceFile{Path: path, Language: LanguageForPath(path)}
}

// ImportKind classifies how an import reference was written.
type ImportKind int

const (
	// StaticImport is an ES module import or re-export statement.
	StaticImport ImportKind = iota

	// DynamicRequire is a CommonJS require('x') call.
	DynamicRequire

	// FromImport is a Python "from x import y" statement.
	FromImport

	// PlainImport is a Python "import x" statement.
	PlainImport
)

// String returns the string representation of the ImportKind.
func (k ImportKind) String() string {
	switch k {
	case StaticImport:
		return "static_import"
	case DynamicRequire:
		return "dynamic_require"
	case FromImport:
		return "from_import"
	case PlainImport:
		return "plain_import"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ImportKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ImportKind) UnmarshalText(text []byte) error {
	for _, candidate := range []ImportKind{StaticImport, DynamicRequire, FromImport, PlainImport} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown import kind %q", text)
}

// Sentinel specifier names.
const (
	// DefaultImportName is recorded as the imported name of a default import
	// ("import foo from 'x'" yields Imported=DefaultImportName, Local="foo").
	DefaultImportName = "default"

	// NamespaceImportName is recorded for "import * as ns from 'x'".
	NamespaceImportName = "*"
)

// ImportSpecifier is one name bound by an import statement.
type ImportSpecifier struct {
	// Imported is the exported name in the source module.
	Imported string `json:"imported"`

	// Local is the binding in the importing module. Equal to Imported when
	// no alias is used.
	Local string `json:"local"`
}

// ImportReference is a raw, unresolved mention of another module.
type ImportReference struct {
	// RawSpecifier is the module string exactly as written ("./b", "lodash", "..pkg.mod").
	RawSpecifier string `json:"raw_specifier"`

	// Kind is how the reference was written.
	Kind ImportKind `json:"kind"`

	// OriginFile is the file the reference was found in.
	OriginFile string `json:"origin_file"`

	// Specifiers lists the bound names, when the extraction strategy captures them.
	Specifiers []ImportSpecifier `json:"specifiers,omitempty"`
}
