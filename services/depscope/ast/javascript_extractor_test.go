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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specifiersOf(refs []ImportReference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.RawSpecifier
	}
	return out
}

func TestJavaScriptExtractor_StaticImportsAndRequire(t *testing.T) {
	src := []byte(`import React, { useState as useS, useEffect } from 'react';
import * as utils from './utils';
import './side-effect';
const fs = require("fs");
export { thing } from './reexport';

function load() {
  return require('./lazy');
}
`)
	e := NewJavaScriptExtractor()
	refs := e.Extract(context.Background(), src, "/repo/src/app.js")

	require.Len(t, refs, 6)
	assert.Equal(t, []string{"react", "./utils", "./side-effect", "fs", "./reexport", "./lazy"}, specifiersOf(refs))

	assert.Equal(t, StaticImport, refs[0].Kind)
	assert.Equal(t, "/repo/src/app.js", refs[0].OriginFile)
	assert.Equal(t, []ImportSpecifier{
		{Imported: DefaultImportName, Local: "React"},
		{Imported: "useState", Local: "useS"},
		{Imported: "useEffect", Local: "useEffect"},
	}, refs[0].Specifiers)

	assert.Equal(t, []ImportSpecifier{{Imported: NamespaceImportName, Local: "utils"}}, refs[1].Specifiers)
	assert.Empty(t, refs[2].Specifiers)
	assert.Equal(t, DynamicRequire, refs[3].Kind)
	assert.Equal(t, StaticImport, refs[4].Kind)
	assert.Equal(t, DynamicRequire, refs[5].Kind)
}

func TestJavaScriptExtractor_IgnoresNonRequireCalls(t *testing.T) {
	src := []byte(`const a = foo.require('./not-this');
const b = require('./two', './args');
const c = require(name);
const d = load('./nope');
`)
	refs := NewJavaScriptExtractor().Extract(context.Background(), src, "/repo/a.js")
	assert.Empty(t, refs)
}

func TestJavaScriptExtractor_TypeScript(t *testing.T) {
	src := []byte(`import type { Config } from './config';
import fs = require('fs');
import { helper } from "../lib/helper";

export function run(c: Config): string {
  return helper(c) as string;
}
`)
	refs := NewJavaScriptExtractor().Extract(context.Background(), src, "/repo/src/run.ts")

	require.Len(t, refs, 3)
	assert.Equal(t, []string{"./config", "fs", "../lib/helper"}, specifiersOf(refs))
	assert.Equal(t, DynamicRequire, refs[1].Kind)
	assert.Equal(t, []ImportSpecifier{{Imported: DefaultImportName, Local: "fs"}}, refs[1].Specifiers)
	assert.Equal(t, []ImportSpecifier{{Imported: "helper", Local: "helper"}}, refs[2].Specifiers)
}

func TestJavaScriptExtractor_JSXOnlyForJSXExtensions(t *testing.T) {
	src := []byte(`import Button from './Button';

export const App = () => <Button label="go" />;
`)
	e := NewJavaScriptExtractor()

	for _, path := range []string{"/repo/App.tsx", "/repo/App.jsx"} {
		refs := e.Extract(context.Background(), src, path)
		require.Len(t, refs, 1, path)
		assert.Equal(t, "./Button", refs[0].RawSpecifier)
		// Specifiers are only captured by the tree-sitter strategy.
		assert.Equal(t, []ImportSpecifier{{Imported: DefaultImportName, Local: "Button"}}, refs[0].Specifiers, path)
	}
}

func TestJavaScriptExtractor_MalformedInputYieldsEmpty(t *testing.T) {
	src := []byte("import { from ;;; }}}{{ @@@ <<< >>> (((")
	refs := NewJavaScriptExtractor().Extract(context.Background(), src, "/repo/broken.js")
	assert.NotNil(t, refs)
	assert.Empty(t, refs)
}

func TestJavaScriptExtractor_SyntaxErrorFallsBackToRegex(t *testing.T) {
	src := []byte(`import x from './x';
const y = require('./y');
function ((( {
`)
	refs := NewJavaScriptExtractor().Extract(context.Background(), src, "/repo/partial.js")

	require.Len(t, refs, 2)
	assert.Equal(t, []string{"./x", "./y"}, specifiersOf(refs))
	assert.Equal(t, StaticImport, refs[0].Kind)
	assert.Equal(t, DynamicRequire, refs[1].Kind)
	assert.Nil(t, refs[0].Specifiers)
}

func TestJavaScriptExtractor_BinaryContent(t *testing.T) {
	content := make([]byte, 4096)
	for i := range content {
		content[i] = byte(i * 31)
	}
	e := NewJavaScriptExtractor()
	assert.NotPanics(t, func() {
		_ = e.Extract(context.Background(), content, "/repo/blob.js")
	})
}

func TestJavaScriptExtractor_OversizedFileUsesRegex(t *testing.T) {
	src := []byte(`import a from './a';`)
	e := NewJavaScriptExtractor(WithJavaScriptMaxFileSize(4))
	refs := e.Extract(context.Background(), src, "/repo/big.js")

	require.Len(t, refs, 1)
	assert.Equal(t, "./a", refs[0].RawSpecifier)
	assert.Nil(t, refs[0].Specifiers)
}

func TestJavaScriptExtractor_Metadata(t *testing.T) {
	e := NewJavaScriptExtractor()
	assert.Equal(t, LanguageJavaScript, e.Language())
	assert.ElementsMatch(t, []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx"}, e.Extensions())
}
