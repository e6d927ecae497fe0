// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path -> content) under a fresh temp dir
// and returns its canonical path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := Canonicalize(t.TempDir())
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestResolver_RelativeProbing(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.js":              "",
		"src/b.ts":              "",
		"src/c.tsx":             "",
		"src/exact.mjs":         "",
		"src/widgets/index.ts":  "",
		"src/both.js":           "",
		"src/both.ts":           "",
		"lib/util.jsx":          "",
		"src/dironly/README.md": "",
	})
	r := New(root)
	origin := filepath.Join(root, "src", "a.js")

	tests := []struct {
		spec string
		want string
	}{
		{spec: "./b", want: "src/b.ts"},
		{spec: "./c", want: "src/c.tsx"},
		{spec: "./exact.mjs", want: "src/exact.mjs"},
		{spec: "./widgets", want: "src/widgets/index.ts"},
		{spec: "./both", want: "src/both.js"},
		{spec: "../lib/util", want: "lib/util.jsx"},
		{spec: "./a.js", want: "src/a.js"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, ok := r.Resolve(tt.spec, origin)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, ok := r.Resolve("./nope", origin)
		assert.False(t, ok)
	})

	t.Run("directory without index", func(t *testing.T) {
		_, ok := r.Resolve("./dironly", origin)
		assert.False(t, ok)
	})

	t.Run("empty specifier", func(t *testing.T) {
		_, ok := r.Resolve("  ", origin)
		assert.False(t, ok)
	})
}

func TestResolver_AbsoluteSpecifier(t *testing.T) {
	root := writeTree(t, map[string]string{"x/y.js": "", "a.js": ""})
	r := New(root)

	got, ok := r.Resolve(filepath.Join(root, "x", "y"), filepath.Join(root, "a.js"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "x", "y.js"), got)
}

func TestResolver_BareSpecifiers(t *testing.T) {
	root := writeTree(t, map[string]string{
		"node_modules/lodash/package.json":  "{}",
		"node_modules/@scope/pkg/index.js":  "",
		"src/app.js":                        "",
		"src/helpers.js":                    "",
		"src/lodash.js":                     "",
		"vendor_modules/thing/package.json": "{}",
		"src/thing.js":                      "",
	})
	r := New(root)
	origin := filepath.Join(root, "src", "app.js")

	t.Run("installed package is external", func(t *testing.T) {
		_, ok := r.Resolve("lodash", origin)
		assert.False(t, ok, "a local lodash.js must not shadow the installed package")
		assert.True(t, r.IsExternal("lodash/fp"))
		assert.True(t, r.IsExternal("@scope/pkg/sub"))
	})

	t.Run("not installed falls through to relative", func(t *testing.T) {
		got, ok := r.Resolve("helpers", origin)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(root, "src", "helpers.js"), got)
	})

	t.Run("custom external dirs", func(t *testing.T) {
		custom := New(root, WithExternalDirs("vendor_modules"))
		_, ok := custom.Resolve("thing", origin)
		assert.False(t, ok)

		got, ok := r.Resolve("thing", origin)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(root, "src", "thing.js"), got)
	})

	t.Run("relative specifiers are never external", func(t *testing.T) {
		assert.False(t, r.IsExternal("./lodash"))
	})
}

func TestResolver_Python(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app/main.py":              "",
		"app/models.py":            "",
		"app/services/__init__.py": "",
		"app/services/mail.py":     "",
		"shared/util.py":           "",
		"shared/__init__.py":       "",
		"toplevel.py":              "",
	})
	r := New(root)
	origin := filepath.Join(root, "app", "main.py")

	tests := []struct {
		spec string
		want string
	}{
		{spec: ".models", want: "app/models.py"},
		{spec: ".services", want: "app/services/__init__.py"},
		{spec: ".services.mail", want: "app/services/mail.py"},
		{spec: "..shared.util", want: "shared/util.py"},
		{spec: "..shared", want: "shared/__init__.py"},
		{spec: "models", want: "app/models.py"},
		{spec: "shared.util", want: "shared/util.py"},
		{spec: "toplevel", want: "toplevel.py"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, ok := r.Resolve(tt.spec, origin)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got)
		})
	}

	_, ok := r.Resolve("os.path", origin)
	assert.False(t, ok)
}

func TestResolver_Symlinks(t *testing.T) {
	root := writeTree(t, map[string]string{"real/target.js": "", "src/a.js": ""})
	link := filepath.Join(root, "src", "linked.js")
	if err := os.Symlink(filepath.Join(root, "real", "target.js"), link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, ok := New(root).Resolve("./linked", filepath.Join(root, "src", "a.js"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "real", "target.js"), got)
}

func TestResolver_Options(t *testing.T) {
	root := writeTree(t, map[string]string{"a.js": "", "b.vue": "", "dir/main.js": ""})
	r := New(root, WithExtensions("vue", ""), WithIndexFiles("main.js"))

	got, ok := r.Resolve("./b", filepath.Join(root, "a.js"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "b.vue"), got)

	got, ok = r.Resolve("./dir", filepath.Join(root, "a.js"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "dir", "main.js"), got)

	_, ok = r.Resolve("./a", filepath.Join(root, "a.js"))
	assert.False(t, ok)
}

func TestPythonModulePath(t *testing.T) {
	assert.Equal(t, "a/b", pythonModulePath("a.b"))
	assert.Equal(t, "./a/b", pythonModulePath(".a.b"))
	assert.Equal(t, ".", pythonModulePath("."))
	assert.Equal(t, "..", pythonModulePath(".."))
	assert.Equal(t, "../../x", pythonModulePath("...x"))
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "", Canonicalize(""))
	root := Canonicalize(t.TempDir())
	assert.Equal(t, root, Canonicalize(filepath.Join(root, "x", "..")))
	assert.Equal(t, filepath.Join(root, "missing"), Canonicalize(filepath.Join(root, "missing")))
}
