// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depscope/pkg/logging"
	"github.com/AleutianAI/depscope/services/depscope/ast"
	"github.com/AleutianAI/depscope/services/depscope/config"
	"github.com/AleutianAI/depscope/services/depscope/resolve"
	"github.com/AleutianAI/depscope/services/depscope/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	projectRoot string
	configPath  string
	logLevel    string
	logJSON     bool
	trace       string
}

// runEnv is the per-invocation setup shared by subcommands.
type runEnv struct {
	root     string
	cfg      config.Config
	logger   *logging.Logger
	shutdown func(context.Context) error
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "depscope",
		Short: "Compute the import closure of changed JS/TS/Python files",
		Long: `depscope follows the imports of a set of root files through a project
and prints every project file they reach, breadth-first, up to a depth limit.
Installed third-party packages are never followed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.projectRoot, "project-root", "", "project root (default: working directory)")
	pf.StringVar(&g.configPath, "config", "", "config file (default: <project-root>/"+config.FileName+")")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&g.logJSON, "log-json", false, "write logs as JSON")
	pf.StringVar(&g.trace, "trace", telemetry.ExporterNone, "trace exporter: none, stdout, otlp")
	pf.Lookup("trace").NoOptDefVal = telemetry.ExporterStdout

	rootCmd.AddCommand(
		newClosureCmd(g),
		newImportsCmd(g),
		newConfigCmd(g),
	)
	return rootCmd
}

// setup resolves the project root, loads config, and starts logging and
// telemetry. The caller must call close.
func (g *globalFlags) setup(cmd *cobra.Command) (*runEnv, error) {
	root := g.projectRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		root = wd
	}
	root = resolve.Canonicalize(root)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	var (
		cfg config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg, err = config.LoadFromProject(root)
	}
	if err != nil {
		return nil, err
	}

	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logJSON {
		cfg.Log.JSON = true
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:    level,
		LogDir:   cfg.Log.Dir,
		Service:  "depscope",
		JSON:     cfg.Log.JSON,
		AutoJSON: true,
		Output:   cmd.ErrOrStderr(),
	})

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.TraceExporter = g.trace
	tcfg.Writer = cmd.ErrOrStderr()
	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	logger.Debug("configuration loaded",
		"project_root", root,
		"max_depth", cfg.MaxDepth,
		"unbounded", cfg.Unbounded,
		"workers", cfg.Workers)

	return &runEnv{root: root, cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

// close flushes telemetry and closes the log file.
func (e *runEnv) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(e.shutdown(ctx), e.logger.Close())
}

// registry builds the extractor registry from config.
func (e *runEnv) registry() *ast.Registry {
	slogger := e.logger.Slog()
	return ast.NewDefaultRegistry(ast.RegistryOptions{
		RegexOnly: e.cfg.RegexOnly,
		Python: []ast.PythonExtractorOption{
			ast.WithPythonCommand(e.cfg.Python.Command...),
			ast.WithPythonTimeout(e.cfg.Python.Timeout),
			ast.WithPythonLogger(slogger),
		},
		Logger: slogger,
	})
}

// resolver builds the path resolver from config.
func (e *runEnv) resolver() *resolve.Resolver {
	return resolve.New(e.root,
		resolve.WithExtensions(e.cfg.Extensions...),
		resolve.WithIndexFiles(e.cfg.IndexFiles...),
		resolve.WithExternalDirs(e.cfg.ExternalDirs...),
	)
}

// absPath joins a command-line path to the project root unless absolute.
func (e *runEnv) absPath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(e.root, p)
}

// relPath renders p relative to the project root when it lies inside it.
func (e *runEnv) relPath(p string) string {
	rel, err := filepath.Rel(e.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}
