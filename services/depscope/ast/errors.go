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
	"errors"
	"fmt"
)

// Sentinel errors classifying why an extraction strategy was abandoned.
//
// Extractors never return these to callers. They are attached to log
// records and metric attributes so fallbacks can be told apart.
var (
	// ErrParseFailure indicates the syntax-tree parse failed or the tree
	// contained syntax errors.
	ErrParseFailure = errors.New("parse failure")

	// ErrExternalTool indicates the external parser exited non-zero, timed
	// out, could not be started, or produced malformed output.
	ErrExternalTool = errors.New("external tool failure")
)

// ExtractError describes a strategy failure for a single file.
type ExtractError struct {
	// FilePath is the file being extracted.
	FilePath string

	// Strategy is the strategy that failed ("treesitter", "subprocess").
	Strategy string

	// Cause is the underlying error.
	Cause error
}

// Error returns "path: strategy: cause".
func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.FilePath, e.Strategy, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExtractError) Unwrap() error {
	return e.Cause
}

func newExtractError(path, strategy string, cause error) *ExtractError {
	return &ExtractError{FilePath: path, Strategy: strategy, Cause: cause}
}
