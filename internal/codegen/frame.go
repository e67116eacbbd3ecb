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

package codegen

import (
	"fmt"

	"github.com/cc64/cc64/internal/ast"
	"github.com/cc64/cc64/internal/types"
)

// frame models one function's stack layout: every local and parameter gets
// a negative offset from rbp, assigned in declaration order respecting
// natural alignment (spec.md 4.4 "Stack frame layout"). Lookup is by name:
// this compiler's supported subset has no nested functions (spec.md 6.2)
// and does not need block-scoped shadowing, so one flat table per function
// suffices, matching the parser's own flat per-function locals table
// (spec.md 3.4).
//
// A `static` local (spec.md 3.1 keyword) never gets a stack slot: it keeps one program-lifetime location
// instead, so it is tracked in statics/staticDecls rather than offsets.
type frame struct {
	offsets     map[string]int
	types       map[string]*types.Type
	size        int
	statics     map[string]string // local name -> unique .data/.bss label
	staticDecls []*ast.Node        // declarations backing those labels, for emission
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

func naturalAlign(t *types.Type) int {
	switch t.Variant {
	case types.ARRAY:
		return naturalAlign(t.Elem)
	case types.STRUCT, types.UNION:
		max := 1
		for _, m := range t.Members {
			if a := naturalAlign(m.Type); a > max {
				max = a
			}
		}
		return max
	default:
		if t.Size > 8 {
			return 8
		}
		if t.Size == 0 {
			return 1
		}
		return t.Size
	}
}

// buildFrame assigns a stack slot to every parameter of fn and to every
// VAR_DECL reachable through fn's body. Parameters are placed first so
// they are spilled from their ABI registers immediately on entry (spec.md
// 4.4).
func buildFrame(fn *ast.Node) *frame {
	fr := &frame{
		offsets: map[string]int{},
		types:   map[string]*types.Type{},
		statics: map[string]string{},
	}
	cur := 0
	staticN := 0

	place := func(name string, t *types.Type) {
		if _, seen := fr.offsets[name]; seen {
			return
		}
		align := naturalAlign(t)
		cur = alignUp(cur+t.Size, align)
		fr.offsets[name] = -cur
		fr.types[name] = t
	}

	for _, p := range fn.Params {
		place(p.Name, p.Type)
	}

	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Kind == ast.VAR_DECL && !n.Global {
			if n.StorageStatic {
				if _, seen := fr.statics[n.Name]; !seen {
					label := fmt.Sprintf("%s.%s.%d", fn.Name, n.Name, staticN)
					staticN++
					fr.statics[n.Name] = label
					n.StaticLabel = label
					fr.staticDecls = append(fr.staticDecls, n)
				}
			} else {
				place(n.Name, n.Type)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, body := range fn.Children {
		walk(body)
	}

	fr.size = alignUp(cur, 16)
	return fr
}

func (f *frame) offsetOf(name string) (int, bool) { o, ok := f.offsets[name]; return o, ok }

func (f *frame) staticLabel(name string) (string, bool) {
	l, ok := f.statics[name]
	return l, ok
}
