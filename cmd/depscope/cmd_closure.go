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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/depscope/services/depscope/config"
	"github.com/AleutianAI/depscope/services/depscope/diffroots"
	"github.com/AleutianAI/depscope/services/depscope/filecontext"
	"github.com/AleutianAI/depscope/services/depscope/graph"
)

// ErrNoRoots is returned when neither arguments nor a diff name a root.
var ErrNoRoots = errors.New("no root files: pass paths or --diff")

// ErrIncomplete is returned after output when the traversal was interrupted.
var ErrIncomplete = errors.New("traversal interrupted; closure is partial")

type closureFlags struct {
	depth       string
	unbounded   bool
	diffPath    string
	jsonOut     bool
	workers     int
	python      string
	withContent bool
	maxContent  string
	regexOnly   bool
}

// closureOutput is the --json document.
type closureOutput struct {
	ProjectRoot string              `json:"project_root"`
	Closure     *graph.Closure      `json:"closure"`
	Content     *filecontext.Bundle `json:"content,omitempty"`
}

func newClosureCmd(g *globalFlags) *cobra.Command {
	f := &closureFlags{}

	cmd := &cobra.Command{
		Use:   "closure [root...]",
		Short: "Print the project files reachable from the root files",
		Long: `Print the project files reachable from the root files by following imports
breadth-first. Roots are relative to the project root unless absolute and are
not printed themselves. Each line is "<depth>\t<path>".`,
		Example: `  depscope closure src/app.ts --depth 2
  git diff HEAD~1 | depscope closure --diff - --json
  depscope closure api/main.py --unbounded --with-content`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClosure(cmd, g, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.depth, "depth", "d", "", "maximum import hops (1-5 or \"unbounded\"; default from config)")
	fl.BoolVar(&f.unbounded, "unbounded", false, "follow imports until no new file is found")
	fl.StringVar(&f.diffPath, "diff", "", "read roots from a unified diff file (\"-\" for stdin)")
	fl.BoolVar(&f.jsonOut, "json", false, "print the closure as JSON")
	fl.IntVarP(&f.workers, "workers", "w", 0, "parallel file expansions (default: config or CPU count)")
	fl.StringVar(&f.python, "python", "", "Python interpreter command used to parse imports")
	fl.BoolVar(&f.withContent, "with-content", false, "include file contents in the output")
	fl.StringVar(&f.maxContent, "max-content", "", "total content budget for --with-content, e.g. 2MB")
	fl.BoolVar(&f.regexOnly, "regex-only", false, "use pattern scanning only for import extraction")
	cmd.MarkFlagsMutuallyExclusive("depth", "unbounded")

	return cmd
}

// applyClosureFlags overlays explicitly set flags on cfg.
func applyClosureFlags(cmd *cobra.Command, f *closureFlags, cfg *config.Config) (graph.Depth, error) {
	fl := cmd.Flags()
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fl.Changed("python") {
		cfg.Python.Command = strings.Fields(f.python)
	}
	if fl.Changed("regex-only") {
		cfg.RegexOnly = f.regexOnly
	}
	if fl.Changed("unbounded") {
		cfg.Unbounded = f.unbounded
	}

	depth := graph.Depth(cfg.MaxDepth)
	if fl.Changed("depth") {
		d, err := graph.ParseDepth(f.depth)
		if err != nil {
			return 0, err
		}
		if d.Bounded() {
			cfg.MaxDepth = int(d)
			cfg.Unbounded = false
		} else {
			cfg.Unbounded = true
		}
		depth = d
	}
	if cfg.Unbounded {
		depth = graph.Unbounded
	}

	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	return depth, nil
}

func runClosure(cmd *cobra.Command, g *globalFlags, f *closureFlags, args []string) (err error) {
	env, err := g.setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, env.close())
	}()

	depth, err := applyClosureFlags(cmd, f, &env.cfg)
	if err != nil {
		return err
	}

	roots, err := collectRoots(cmd, env, f.diffPath, args)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return ErrNoRoots
	}

	slogger := env.logger.Slog()
	builder := graph.NewBuilder(env.root,
		graph.WithExtractor(env.registry()),
		graph.WithResolver(env.resolver()),
		graph.WithWorkerCount(env.cfg.Workers),
		graph.WithMaxFileSize(int64(env.cfg.MaxFileSize)),
		graph.WithLogger(slogger),
	)

	closure := builder.Build(cmd.Context(), roots, depth)

	var bundle *filecontext.Bundle
	if f.withContent {
		opts := []filecontext.Option{
			filecontext.WithBaseDir(env.root),
			filecontext.WithMaxFileSize(int64(env.cfg.MaxFileSize)),
			filecontext.WithLogger(slogger),
		}
		if env.cfg.Workers > 0 {
			opts = append(opts, filecontext.WithWorkers(env.cfg.Workers))
		}
		if f.maxContent != "" {
			budget, err := humanize.ParseBytes(f.maxContent)
			if err != nil {
				return fmt.Errorf("--max-content: %w", err)
			}
			opts = append(opts, filecontext.WithMaxTotalSize(int64(budget)))
		}
		bundle, err = filecontext.NewLoader(opts...).Load(cmd.Context(), closure.Paths())
		if err != nil {
			return fmt.Errorf("loading file content: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if f.jsonOut {
		err = writeClosureJSON(out, closureOutput{ProjectRoot: env.root, Closure: closure, Content: bundle})
	} else {
		err = writeClosureText(out, env, closure, bundle)
	}
	if err != nil {
		return err
	}

	env.logger.Info("closure written",
		"roots", len(closure.Roots),
		"files", closure.Len(),
		"content", humanize.IBytes(uint64(contentBytes(bundle))))

	if closure.Incomplete {
		return ErrIncomplete
	}
	return nil
}

// collectRoots merges positional roots with roots parsed from a diff.
func collectRoots(cmd *cobra.Command, env *runEnv, diffPath string, args []string) ([]string, error) {
	roots := make([]string, 0, len(args))
	for _, a := range args {
		roots = append(roots, env.absPath(a))
	}
	if diffPath == "" {
		return roots, nil
	}

	var r io.Reader
	if diffPath == "-" {
		r = cmd.InOrStdin()
	} else {
		file, err := os.Open(diffPath)
		if err != nil {
			return nil, fmt.Errorf("opening diff: %w", err)
		}
		defer file.Close()
		r = file
	}

	fromDiff, err := diffroots.FromUnifiedDiff(r, env.root)
	if err != nil {
		return nil, err
	}
	env.logger.Debug("roots read from diff", "count", len(fromDiff))
	return append(roots, fromDiff...), nil
}

func writeClosureJSON(w io.Writer, doc closureOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeClosureText(w io.Writer, env *runEnv, c *graph.Closure, bundle *filecontext.Bundle) error {
	if bundle == nil {
		for _, dep := range c.Dependencies {
			if _, err := fmt.Fprintf(w, "%d\t%s\n", dep.Depth, env.relPath(dep.Path)); err != nil {
				return err
			}
		}
		return nil
	}

	for _, file := range bundle.Files {
		if _, err := fmt.Fprintf(w, "==> %s <==\n%s", file.RelPath, file.Content); err != nil {
			return err
		}
		if !strings.HasSuffix(file.Content, "\n") {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
	}
	for _, s := range bundle.Skipped {
		if _, err := fmt.Fprintf(w, "==> %s <== (skipped: %s)\n", env.relPath(s.Path), s.Reason); err != nil {
			return err
		}
	}
	return nil
}

func contentBytes(b *filecontext.Bundle) int64 {
	if b == nil {
		return 0
	}
	return b.TotalBytes
}
