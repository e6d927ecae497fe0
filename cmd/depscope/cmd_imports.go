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
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depscope/services/depscope/ast"
)

// importLine is one extracted reference with its resolution.
type importLine struct {
	ast.ImportReference
	Resolved string `json:"resolved,omitempty"`
}

func newImportsCmd(g *globalFlags) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "imports <file>...",
		Short: "Print the import references of individual files",
		Long: `Print every import reference found in each file and the project file it
resolves to. External and unresolvable specifiers are shown with "-".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			env, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, env.close())
			}()

			registry := env.registry()
			resolver := env.resolver()

			var lines []importLine
			for _, arg := range args {
				path := env.absPath(arg)
				if !registry.Supports(path) {
					return fmt.Errorf("%s: unsupported file type", arg)
				}
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				for _, ref := range registry.Extract(cmd.Context(), content, path) {
					line := importLine{ImportReference: ref}
					if resolved, ok := resolver.Resolve(ref.RawSpecifier, path); ok {
						line.Resolved = resolved
					}
					lines = append(lines, line)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if lines == nil {
					lines = []importLine{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(lines)
			}
			for _, l := range lines {
				resolved := "-"
				if l.Resolved != "" {
					resolved = env.relPath(l.Resolved)
				}
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
					env.relPath(l.OriginFile), l.Kind, l.RawSpecifier, resolved); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print references as JSON")
	return cmd
}
