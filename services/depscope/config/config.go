// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads depscope settings from a project's .depscope.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the project-level config file looked up by LoadFromProject.
const FileName = ".depscope.yaml"

// Default values.
const (
	DefaultMaxDepth      = 1
	DefaultPythonTimeout = 5 * time.Second
	DefaultMaxFileSize   = ByteSize(10 * 1024 * 1024)
)

// configValidate is shared by all Validate calls.
var configValidate = validator.New()

// ByteSize is a size in bytes. In YAML it may be written as an integer or
// a human-readable string ("512KB", "10 MiB").
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: byte size must be a number or string", node.Line)
	}
	parsed, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*b = ByteSize(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (any, error) {
	return humanize.IBytes(uint64(b)), nil
}

// String returns the human-readable size.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// PythonConfig controls the external Python import parser.
type PythonConfig struct {
	// Command is the interpreter argv prefix, e.g. ["python3"] or
	// ["uv", "run", "python"].
	Command []string `yaml:"command" validate:"min=1,dive,required"`

	// Timeout bounds one parser invocation.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// Config is the complete depscope configuration.
//
// Example .depscope.yaml:
//
//	max_depth: 2
//	extensions: [.js, .ts, .tsx, .py]
//	external_dirs: [node_modules, vendor]
//	python:
//	  command: [python3]
//	  timeout: 3s
//	max_file_size: 2MB
//	log:
//	  level: debug
type Config struct {
	// MaxDepth is the traversal depth limit, ignored when Unbounded is set.
	MaxDepth int `yaml:"max_depth" validate:"gte=1,lte=5"`

	// Unbounded follows imports until no new file is found.
	Unbounded bool `yaml:"unbounded"`

	// Extensions are probed, in order, when resolving a specifier.
	Extensions []string `yaml:"extensions" validate:"dive,required,startswith=."`

	// IndexFiles are tried when a specifier names a directory.
	IndexFiles []string `yaml:"index_files" validate:"dive,required"`

	// ExternalDirs hold installed third-party packages, relative to the
	// project root unless absolute.
	ExternalDirs []string `yaml:"external_dirs" validate:"dive,required"`

	Python PythonConfig `yaml:"python"`

	// Workers bounds parallel file expansion. Zero means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0,lte=1024"`

	// MaxFileSize is the largest file read for extraction.
	MaxFileSize ByteSize `yaml:"max_file_size" validate:"gt=0"`

	// RegexOnly disables the syntax-tree and interpreter extractors.
	RegexOnly bool `yaml:"regex_only"`

	Log LogConfig `yaml:"log"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		MaxDepth:     DefaultMaxDepth,
		Extensions:   []string{".js", ".jsx", ".ts", ".tsx", ".py"},
		IndexFiles:   []string{"index.js", "index.ts"},
		ExternalDirs: []string{"node_modules"},
		Python: PythonConfig{
			Command: []string{"python3"},
			Timeout: DefaultPythonTimeout,
		},
		MaxFileSize: DefaultMaxFileSize,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads the config file at path. Keys absent from the file keep their
// default values. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromProject loads <root>/.depscope.yaml, returning defaults when the
// file does not exist.
func LoadFromProject(root string) (Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Parse decodes YAML over DefaultConfig and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
