// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.MaxDepth)
	assert.False(t, cfg.Unbounded)
	assert.Equal(t, []string{"python3"}, cfg.Python.Command)
	assert.Equal(t, 5*time.Second, cfg.Python.Timeout)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
max_depth: 3
external_dirs: [node_modules, vendor]
python:
  timeout: 2s
max_file_size: 2MB
workers: 4
log:
  level: debug
  json: true
`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, []string{"node_modules", "vendor"}, cfg.ExternalDirs)
	assert.Equal(t, 2*time.Second, cfg.Python.Timeout)
	assert.Equal(t, []string{"python3"}, cfg.Python.Command, "unset keys keep defaults")
	assert.Equal(t, ByteSize(2_000_000), cfg.MaxFileSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, DefaultConfig().Extensions, cfg.Extensions)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParse_ByteSizeForms(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
	}{
		{in: "max_file_size: 4096", want: 4096},
		{in: "max_file_size: 1 MiB", want: 1 << 20},
		{in: "max_file_size: 512KB", want: 512_000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.MaxFileSize)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "depth too large", in: "max_depth: 6"},
		{name: "depth zero", in: "max_depth: 0"},
		{name: "extension without dot", in: "extensions: [js]"},
		{name: "empty python command", in: "python:\n  command: []"},
		{name: "zero timeout", in: "python:\n  timeout: 0s"},
		{name: "unknown level", in: "log:\n  level: loud"},
		{name: "negative workers", in: "workers: -1"},
		{name: "unknown key", in: "max_dept: 2"},
		{name: "bad size", in: "max_file_size: lots"},
		{name: "not yaml", in: "max_depth: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestParse_UnboundedKeepsValidDepth(t *testing.T) {
	cfg, err := Parse([]byte("unbounded: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Unbounded)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
}

func TestLoadFromProject(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadFromProject(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("reads project file", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("max_depth: 2\n"), 0o644))

		cfg, err := LoadFromProject(root)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.MaxDepth)
	})

	t.Run("invalid file names the path", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, FileName)
		require.NoError(t, os.WriteFile(path, []byte("max_depth: 9\n"), 0o644))

		_, err := LoadFromProject(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 4
	cfg.MaxFileSize = 3 << 20

	data, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_file_size: 3.0 MiB")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
