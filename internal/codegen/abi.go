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

// Package codegen walks the typed AST and emits x86-64 instructions, either
// as assembly text (AT&T or Intel syntax) or directly into a relocatable
// object (spec.md 4.4). The ABI abstraction mirrors the teacher's
// ArchParser registry (arch.go's RegisterParser/GetParser pattern),
// generalized from "one parser per host architecture" to "one register/
// calling-convention table per target ABI" (SPEC_FULL.md 1).
package codegen

import "github.com/cc64/cc64/internal/types"

// ABI identifies a calling convention and register set (spec.md 4.4).
type ABI int

const (
	SysV ABI = iota
	Win64
	DOS16
)

// abiInfo holds the per-ABI integer argument registers, shadow space, and
// the call-cleanup convention.
type abiInfo struct {
	IntArgRegs   []string
	FloatArgRegs []string
	ShadowSpace  int
	CallerCleans bool
}

var abiTable = map[ABI]abiInfo{
	SysV: {
		IntArgRegs:   []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"},
		FloatArgRegs: []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7"},
		ShadowSpace:  0,
		CallerCleans: true,
	},
	Win64: {
		IntArgRegs:   []string{"rcx", "rdx", "r8", "r9"},
		FloatArgRegs: []string{"xmm0", "xmm1", "xmm2", "xmm3"},
		ShadowSpace:  32,
		CallerCleans: true,
	},
	DOS16: {
		IntArgRegs:   nil, // DOS16 passes all arguments on the stack
		FloatArgRegs: nil,
		ShadowSpace:  0,
		CallerCleans: true,
	},
}

func (a ABI) info() abiInfo { return abiTable[a] }

// Target derives the types.Target matching this ABI, used for sizeof and
// offsetof computation during codegen.
func (a ABI) Target() types.Target {
	switch a {
	case Win64:
		return types.Target{IsWindows: true}
	case DOS16:
		return types.Target{Is32Bit: true}
	default:
		return types.Target{}
	}
}

// Syntax selects the text-assembly dialect (spec.md 4.4 "Emission modes").
type Syntax int

const (
	ATT Syntax = iota
	Intel
)
