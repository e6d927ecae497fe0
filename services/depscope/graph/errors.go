// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "errors"

// Per-file failure classes. Build absorbs them; they surface only in logs
// and in Closure.Unreadable.
var (
	// ErrRead indicates a closure member's content could not be loaded.
	ErrRead = errors.New("read failure")

	// ErrResolution indicates an import specifier matched no project file.
	ErrResolution = errors.New("unresolved import")

	// ErrFileTooLarge is returned by the default reader for files over the
	// size limit. Such files stay in the closure unexpanded and are not
	// reported as unreadable.
	ErrFileTooLarge = errors.New("file too large")
)
