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
	"testing"

	"github.com/cc64/cc64/internal/ast"
	"github.com/cc64/cc64/internal/types"
)

func TestObjCompile_ReturnConstantEncodesMovEaxImm32(t *testing.T) {
	g := NewObjGen(SysV)
	out, err := g.Compile(returnMain(42))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(out.funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(out.funcs))
	}
	fn := out.funcs[0]
	// prologue: push rbp; mov rbp, rsp -- then mov rax, imm32 (48 C7 C0 2A 00 00 00).
	want := []byte{0x48, 0xC7, 0xC0, 0x2A, 0x00, 0x00, 0x00}
	if !containsBytes(fn.data, want) {
		t.Errorf("expected mov rax, 42 encoding in %x", fn.data)
	}
}

func TestObjCompile_BinaryArithmeticEncodesAdd(t *testing.T) {
	lhs := &ast.Node{Kind: ast.INTEGER, IntValue: 3, Type: types.NewInt()}
	rhs := &ast.Node{Kind: ast.INTEGER, IntValue: 4, Type: types.NewInt()}
	add := &ast.Node{Kind: ast.BINARY_EXPR, Op: "+", Type: types.NewInt(), Children: []*ast.Node{lhs, rhs}}
	ret := ast.New(ast.RETURN, add)
	body := ast.New(ast.BLOCK, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "main"
	fn.Type = types.NewFunction(types.NewInt(), nil, false)
	prog := ast.New(ast.PROGRAM, fn)

	g := NewObjGen(SysV)
	out, err := g.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// add rax, r10 (4C 01 D0).
	want := []byte{0x4C, 0x01, 0xD0}
	if !containsBytes(out.funcs[0].data, want) {
		t.Errorf("expected add rax, r10 encoding in %x", out.funcs[0].data)
	}
}

func TestObjCompile_LocalVariableSpillUsesNegativeFrameOffset(t *testing.T) {
	intType := types.NewInt()
	param := ast.Param{Name: "x", Type: intType}
	ident := &ast.Node{Kind: ast.IDENTIFIER, Name: "x", Type: intType}
	ret := ast.New(ast.RETURN, ident)
	body := ast.New(ast.BLOCK, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "f"
	fn.Params = []ast.Param{param}
	fn.Type = types.NewFunction(intType, []*types.Type{intType}, false)
	prog := ast.New(ast.PROGRAM, fn)

	g := NewObjGen(SysV)
	out, err := g.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	data := out.funcs[0].data
	// Parameter x is the only local, placed at rbp-4 (int, 4-byte aligned).
	// movFrameFromReg(-4, rdi): 48 89 BD FC FF FF FF.
	spill := []byte{0x48, 0x89, 0xBD, 0xFC, 0xFF, 0xFF, 0xFF}
	if !containsBytes(data, spill) {
		t.Errorf("expected param spill to [rbp-4] in %x", data)
	}
	// movRegFromFrame(rax, -4): 48 8B 85 FC FF FF FF.
	load := []byte{0x48, 0x8B, 0x85, 0xFC, 0xFF, 0xFF, 0xFF}
	if !containsBytes(data, load) {
		t.Errorf("expected reload from [rbp-4] in %x", data)
	}
}

func TestObjCompile_ToCOFFProducesTextSectionAndSymbol(t *testing.T) {
	g := NewObjGen(Win64)
	out, err := g.Compile(returnMain(1))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	obj := out.ToCOFF()
	if len(obj.Sections) != 1 || obj.Sections[0].Name != ".text" {
		t.Fatalf("expected a single .text section, got %+v", obj.Sections)
	}
	found := false
	for _, s := range obj.Symbols {
		if s.Name == "main" && s.Global {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a global main symbol, got %+v", obj.Symbols)
	}
}

func TestObjCompile_ToELFRecordsCallRelocation(t *testing.T) {
	callee := &ast.Node{Kind: ast.IDENTIFIER, Name: "helper", Type: types.NewFunction(types.NewInt(), nil, false)}
	call := &ast.Node{Kind: ast.CALL, Name: "helper", Type: types.NewInt(), Children: []*ast.Node{callee}}
	ret := ast.New(ast.RETURN, call)
	body := ast.New(ast.BLOCK, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "main"
	fn.Type = types.NewFunction(types.NewInt(), nil, false)
	prog := ast.New(ast.PROGRAM, fn)

	g := NewObjGen(SysV)
	out, err := g.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	obj := out.ToELF()
	if len(obj.Sections[0].Relocs) == 0 {
		t.Fatalf("expected a call relocation against helper")
	}
	r := obj.Sections[0].Relocs[0]
	sym := obj.Symbols[r.Symbol]
	if sym.Name != "helper" || sym.Section != 0 {
		t.Errorf("expected an undefined helper symbol, got %+v", sym)
	}
}

func containsBytes(haystack, needle []byte) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
