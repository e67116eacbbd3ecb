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
	"strings"
	"testing"

	"github.com/cc64/cc64/internal/ast"
	"github.com/cc64/cc64/internal/types"
)

// returnMain builds the AST for "int main(void) { return N; }".
func returnMain(n int64) *ast.Node {
	ret := ast.New(ast.RETURN, &ast.Node{Kind: ast.INTEGER, IntValue: n, Type: types.NewInt()})
	body := ast.New(ast.BLOCK, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "main"
	fn.Type = types.NewFunction(types.NewInt(), nil, false)
	return ast.New(ast.PROGRAM, fn)
}

func TestCompile_ReturnConstant(t *testing.T) {
	g := NewGen("t.c", SysV, ATT)
	out, err := g.Compile(returnMain(42))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out, "main:") {
		t.Errorf("output missing main label:\n%s", out)
	}
	if !strings.Contains(out, "$42") {
		t.Errorf("output missing immediate 42:\n%s", out)
	}
}

func TestCompile_IntelSyntaxOperandOrder(t *testing.T) {
	g := NewGen("t.c", SysV, Intel)
	out, err := g.Compile(returnMain(7))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// Intel syntax is dst, src -- "mov eax, 7" not "mov 7, eax".
	if !strings.Contains(out, "mov eax, 7") && !strings.Contains(out, "mov rax, 7") {
		t.Errorf("expected dst-first Intel operand order, got:\n%s", out)
	}
}

func TestCompile_BinaryArithmetic(t *testing.T) {
	lhs := &ast.Node{Kind: ast.INTEGER, IntValue: 3, Type: types.NewInt()}
	rhs := &ast.Node{Kind: ast.INTEGER, IntValue: 4, Type: types.NewInt()}
	add := &ast.Node{Kind: ast.BINARY_EXPR, Op: "+", Type: types.NewInt(), Children: []*ast.Node{lhs, rhs}}
	ret := ast.New(ast.RETURN, add)
	body := ast.New(ast.BLOCK, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "main"
	fn.Type = types.NewFunction(types.NewInt(), nil, false)
	prog := ast.New(ast.PROGRAM, fn)

	g := NewGen("t.c", SysV, ATT)
	out, err := g.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out, "add") {
		t.Errorf("expected an add instruction, got:\n%s", out)
	}
}

func TestCompile_Win64ShadowSpaceOnCall(t *testing.T) {
	callee := &ast.Node{Kind: ast.IDENTIFIER, Name: "puts", Type: types.NewFunction(types.NewInt(), []*types.Type{types.NewPtr(types.Target{}, types.NewChar())}, false)}
	arg := &ast.Node{Kind: ast.STRING, StrValue: "hi", Type: types.NewPtr(types.Target{}, types.NewChar())}
	call := &ast.Node{Kind: ast.CALL, Name: "puts", Type: types.NewInt(), Children: []*ast.Node{callee, arg}}
	ret := ast.New(ast.RETURN, &ast.Node{Kind: ast.INTEGER, IntValue: 0, Type: types.NewInt()})
	body := ast.New(ast.BLOCK, call, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "main"
	fn.Type = types.NewFunction(types.NewInt(), nil, false)
	prog := ast.New(ast.PROGRAM, fn)

	g := NewGen("t.c", Win64, ATT)
	out, err := g.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out, "sub") || !strings.Contains(out, "32") {
		t.Errorf("expected 32-byte Win64 shadow space reservation, got:\n%s", out)
	}
	if !strings.Contains(out, "call puts") {
		t.Errorf("expected call to puts, got:\n%s", out)
	}
}

func TestCompile_CallWithDoubleArgumentUsesFloatRegister(t *testing.T) {
	callee := &ast.Node{Kind: ast.IDENTIFIER, Name: "sink", Type: types.NewFunction(types.NewVoid(), []*types.Type{types.NewDouble()}, false)}
	arg := &ast.Node{Kind: ast.FLOATLIT, FloatValue: 1.5, Type: types.NewDouble()}
	call := &ast.Node{Kind: ast.CALL, Name: "sink", Type: types.NewVoid(), Children: []*ast.Node{callee, arg}}
	ret := ast.New(ast.RETURN, &ast.Node{Kind: ast.INTEGER, IntValue: 0, Type: types.NewInt()})
	body := ast.New(ast.BLOCK, call, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "main"
	fn.Type = types.NewFunction(types.NewInt(), nil, false)
	prog := ast.New(ast.PROGRAM, fn)

	g := NewGen("t.c", SysV, ATT)
	out, err := g.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out, "movsd") || !strings.Contains(out, "xmm0") {
		t.Errorf("expected a movsd into xmm0 for the double argument, got:\n%s", out)
	}
	if strings.Contains(out, "rdi") {
		t.Errorf("double argument must not be moved into the integer argument register rdi:\n%s", out)
	}
}

func TestCompile_Win64VariadicFloatDuplicatedIntoGPR(t *testing.T) {
	fnType := types.NewFunction(types.NewInt(), []*types.Type{types.NewPtr(types.Target{}, types.NewChar())}, true)
	callee := &ast.Node{Kind: ast.IDENTIFIER, Name: "printf", Type: fnType}
	fmtArg := &ast.Node{Kind: ast.STRING, StrValue: "%f", Type: types.NewPtr(types.Target{}, types.NewChar())}
	floatArg := &ast.Node{Kind: ast.FLOATLIT, FloatValue: 2.5, Type: types.NewDouble()}
	call := &ast.Node{Kind: ast.CALL, Name: "printf", Type: types.NewInt(), Children: []*ast.Node{callee, fmtArg, floatArg}}
	ret := ast.New(ast.RETURN, &ast.Node{Kind: ast.INTEGER, IntValue: 0, Type: types.NewInt()})
	body := ast.New(ast.BLOCK, call, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "main"
	fn.Type = types.NewFunction(types.NewInt(), nil, false)
	prog := ast.New(ast.PROGRAM, fn)

	g := NewGen("t.c", Win64, ATT)
	out, err := g.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out, "xmm1") {
		t.Errorf("expected the second argument in xmm1 (Win64 is positional), got:\n%s", out)
	}
	if !strings.Contains(out, "rdx") {
		t.Errorf("expected the float argument duplicated into rdx for the Win64 variadic callee, got:\n%s", out)
	}
}

func TestCompile_PointerArithmeticScalesBySize(t *testing.T) {
	intPtr := types.NewPtr(types.Target{}, types.NewInt())
	p := &ast.Node{Kind: ast.IDENTIFIER, Name: "p", Type: intPtr}
	one := &ast.Node{Kind: ast.INTEGER, IntValue: 1, Type: types.NewInt()}
	add := &ast.Node{Kind: ast.BINARY_EXPR, Op: "+", Type: intPtr, Children: []*ast.Node{p, one}}
	ret := ast.New(ast.RETURN, &ast.Node{Kind: ast.CAST, Type: types.NewInt(), Children: []*ast.Node{add}})

	param := ast.Param{Name: "p", Type: intPtr}
	local := ast.New(ast.VAR_DECL)
	local.Name = "p"
	local.Type = intPtr

	body := ast.New(ast.BLOCK, ret)
	fn := ast.New(ast.FUNCTION, body)
	fn.Name = "f"
	fn.Params = []ast.Param{param}
	fn.Type = types.NewFunction(types.NewInt(), []*types.Type{intPtr}, false)
	prog := ast.New(ast.PROGRAM, fn)
	_ = local

	g := NewGen("t.c", SysV, ATT)
	out, err := g.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out, "imul") {
		t.Errorf("expected scaled pointer arithmetic (imul by element size), got:\n%s", out)
	}
}
