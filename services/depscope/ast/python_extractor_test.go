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
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and returns canned output.
type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	name   string
	args   []string
	stdin  []byte
	output []byte
	err    error
	block  bool
}

func (f *fakeRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.name = name
	f.args = args
	f.stdin = stdin
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.output, f.err
}

const pySource = `import os
import pkg.sub as s, json
from . import sibling
from ..shared.util import helper as h
`

func TestPythonExtractor_UsesInterpreterOutput(t *testing.T) {
	runner := &fakeRunner{output: []byte(`[
		{"kind": "import", "source": "os", "line": 1, "col": 0, "names": [["os", "os"]]},
		{"kind": "from", "source": "..shared.util", "line": 4, "col": 0, "names": [["helper", "h"]]}
	]`)}
	e := NewPythonExtractor(WithCommandRunner(runner), WithPythonCommand("uv", "run", "python"))

	refs := e.Extract(context.Background(), []byte(pySource), "/repo/app/main.py")

	require.Len(t, refs, 2)
	assert.Equal(t, "os", refs[0].RawSpecifier)
	assert.Equal(t, PlainImport, refs[0].Kind)
	assert.Equal(t, "..shared.util", refs[1].RawSpecifier)
	assert.Equal(t, FromImport, refs[1].Kind)
	assert.Equal(t, []ImportSpecifier{{Imported: "helper", Local: "h"}}, refs[1].Specifiers)
	assert.Equal(t, "/repo/app/main.py", refs[1].OriginFile)

	assert.Equal(t, "uv", runner.name)
	require.Len(t, runner.args, 4)
	assert.Equal(t, []string{"run", "python", "-c"}, runner.args[:3])
	assert.Equal(t, []byte(pySource), runner.stdin)
}

func TestPythonExtractor_FallsBackToRegex(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{name: "non-zero exit", runner: &fakeRunner{err: errors.New("exit status 1")}},
		{name: "malformed output", runner: &fakeRunner{output: []byte("Traceback (most recent call last)")}},
		{name: "unexpected kind", runner: &fakeRunner{output: []byte(`[{"kind": "weird", "source": "x"}]`)}},
		{name: "null output", runner: &fakeRunner{output: []byte(`null`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewPythonExtractor(WithCommandRunner(tt.runner))
			refs := e.Extract(context.Background(), []byte(pySource), "/repo/app/main.py")

			assert.Equal(t, 1, tt.runner.calls)
			assert.Equal(t, []string{"os", "pkg.sub", "json", ".", "..shared.util"}, specifiersOf(refs))
			assert.Equal(t, PlainImport, refs[0].Kind)
			assert.Equal(t, FromImport, refs[3].Kind)
		})
	}
}

func TestPythonExtractor_TimeoutFallsBack(t *testing.T) {
	runner := &fakeRunner{block: true}
	e := NewPythonExtractor(WithCommandRunner(runner), WithPythonTimeout(50*time.Millisecond))

	start := time.Now()
	refs := e.Extract(context.Background(), []byte("import os\n"), "/repo/a.py")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{"os"}, specifiersOf(refs))
}

func TestPythonExtractor_RealInterpreter(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	e := NewPythonExtractor()
	refs := e.Extract(context.Background(), []byte(pySource), "/repo/app/main.py")

	assert.Equal(t, []string{"os", "pkg.sub", "json", ".", "..shared.util"}, specifiersOf(refs))
	require.Len(t, refs, 5)
	assert.Equal(t, []ImportSpecifier{{Imported: "pkg.sub", Local: "s"}}, refs[1].Specifiers)
}

func TestPythonExtractor_RealInterpreterSyntaxError(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	src := []byte("import os\ndef broken(:\n")
	refs := NewPythonExtractor().Extract(context.Background(), src, "/repo/bad.py")
	assert.Equal(t, []string{"os"}, specifiersOf(refs))
}
