// Copyright 2026 cc64 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bootstrap runs the fixed-point harness spec.md 8 describes:
// rather than self-hosting (this compiler is itself written in Go, not C),
// the harness repeatedly re-compiles the same translation unit from the C
// test corpus and checks the generated assembly text stops changing after
// the first pass, the way a self-hosting compiler's stage2/stage3 outputs
// are checked for byte-identity once the bootstrap has converged.
package bootstrap

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cc64/cc64/internal/codegen"
	"github.com/cc64/cc64/internal/parser"
	"github.com/cc64/cc64/internal/preprocess"
	"github.com/cc64/cc64/internal/types"
)

// Stage preprocesses, parses, and compiles src to assembly text n times in
// a row and returns the final stage's output. Every stage after the first
// must reproduce the previous stage's bytes exactly; a mismatch means the
// pipeline is not a pure function of its input (spec.md 9's explicit-state
// discipline exists precisely so this holds), which is reported as an
// error rather than silently returning the divergent output.
func Stage(src []byte, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("bootstrap: stage count must be >= 1, got %d", n)
	}

	var prev []byte
	for i := 0; i < n; i++ {
		out, err := compileOnce(src, i)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: stage %d: %w", i, err)
		}
		if i > 0 && !bytes.Equal(prev, out) {
			return nil, fmt.Errorf("bootstrap: stage %d diverged from stage %d output", i, i-1)
		}
		prev = out
	}
	return prev, nil
}

func compileOnce(src []byte, stage int) ([]byte, error) {
	tmp, err := os.CreateTemp("", fmt.Sprintf("cc64-bootstrap-%d-*.c", stage))
	if err != nil {
		return nil, err
	}
	name := tmp.Name()
	defer os.Remove(name)
	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	pp := preprocess.New(nil, preprocess.Target{Linux: true})
	text, err := pp.Run(name)
	if err != nil {
		return nil, err
	}

	p := parser.New(name, []byte(text), types.Target{})
	p.SetPackEvents(pp.PackEvents())
	prog, err := p.ParseProgram()
	if err != nil {
		return nil, err
	}

	g := codegen.NewGen(name, codegen.SysV, codegen.ATT)
	out, err := g.Compile(prog)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
