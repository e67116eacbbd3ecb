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
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/asmfmt"
	"github.com/samber/lo"

	"github.com/cc64/cc64/internal/ast"
	"github.com/cc64/cc64/internal/diag"
	"github.com/cc64/cc64/internal/types"
)

// loopLabels is pushed at every loop/switch entry so break/continue can find
// their targets without threading extra parameters through every emit call
// (spec.md 4.4 "Control flow").
type loopLabels struct {
	breakTo    string
	continueTo string
}

// Gen walks a typed AST and emits x86-64 assembly text. One Gen is used per
// translation unit; nothing about it is package-level state (spec.md 9
// "Global singletons in the source" - replaced by this explicit context).
type Gen struct {
	ABI    ABI
	Syntax Syntax
	tg     types.Target

	text strings.Builder
	data strings.Builder
	bss  strings.Builder
	rod  strings.Builder

	labelN   int
	constN   int
	fr       *frame
	loops    []loopLabels
	file     string
	strLits  map[string]string // literal text -> .rodata label
	strOrder []string
}

// NewGen constructs a code generator for the given ABI/syntax pair.
func NewGen(file string, abi ABI, syntax Syntax) *Gen {
	return &Gen{
		ABI: abi, Syntax: syntax, tg: abi.Target(),
		file: file, strLits: map[string]string{},
	}
}

// Compile walks prog (a PROGRAM node) and returns the rendered assembly
// text, formatted with asmfmt when the target syntax is AT&T (spec.md 4.4
// "Emission modes", SPEC_FULL.md 1).
func (g *Gen) Compile(prog *ast.Node) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	g.emitProgram(prog)
	asm := g.render()
	if g.Syntax == ATT {
		if formatted, ferr := asmfmt.Format(strings.NewReader(asm)); ferr == nil {
			return string(formatted), nil
		}
		// asmfmt targets Go's Plan9 assembler dialect; our output is GNU
		// AT&T syntax for `as`, so a dialect mismatch is expected on some
		// inputs and is not a compilation failure - fall back to the raw
		// text.
	}
	return asm, nil
}

func (g *Gen) fatalf(line int, format string, args ...any) {
	panic(diag.CodegenErrorf(g.file, line, format, args...))
}

func (g *Gen) render() string {
	var b strings.Builder
	b.WriteString(g.directive(".text") + "\n")
	b.WriteString(g.text.String())
	if g.data.Len() > 0 {
		b.WriteString(g.directive(".data") + "\n")
		b.WriteString(g.data.String())
	}
	if g.bss.Len() > 0 {
		b.WriteString(g.directive(".bss") + "\n")
		b.WriteString(g.bss.String())
	}
	if g.rod.Len() > 0 {
		b.WriteString(g.directive(".section .rodata") + "\n")
		b.WriteString(g.rod.String())
	}
	return b.String()
}

func (g *Gen) directive(s string) string { return s }

func (g *Gen) emitln(format string, args ...any) {
	fmt.Fprintf(&g.text, "\t%s\n", fmt.Sprintf(format, args...))
}

func (g *Gen) label(name string) { fmt.Fprintf(&g.text, "%s:\n", name) }

func (g *Gen) newLabel(prefix string) string {
	g.labelN++
	return fmt.Sprintf(".L%s%d", prefix, g.labelN)
}

// emitProgram walks top-level declarations: function definitions and global
// variables, routed to .data/.bss per spec.md 4.4.
func (g *Gen) emitProgram(prog *ast.Node) {
	for _, n := range prog.Children {
		if n == nil {
			continue
		}
		switch n.Kind {
		case ast.FUNCTION:
			g.emitFunction(n)
		case ast.VAR_DECL:
			g.emitGlobal(n)
		case ast.BLOCK:
			// Comma-separated top-level declarators are wrapped in a BLOCK
			// by the parser (toplevel.go); recurse over its children.
			for _, c := range n.Children {
				if c != nil && c.Kind == ast.VAR_DECL {
					g.emitGlobal(c)
				}
			}
		}
	}
}

func (o operand) render(s Syntax) string {
	if s == Intel {
		return o.intel()
	}
	return o.att()
}

// twoOp emits one two-operand instruction, reordering src/dst per syntax
// (operand.go documents operands in Intel logical order: dst, src).
func (g *Gen) twoOp(mnemonic string, dst, src operand) {
	if g.Syntax == Intel {
		g.emitln("%s %s, %s", mnemonic, dst.render(g.Syntax), src.render(g.Syntax))
	} else {
		g.emitln("%s %s, %s", mnemonic, src.render(g.Syntax), dst.render(g.Syntax))
	}
}

func (g *Gen) oneOp(mnemonic string, o operand) {
	g.emitln("%s %s", mnemonic, o.render(g.Syntax))
}

// internedString returns the .rodata label for a string literal, creating
// one the first time the literal is seen.
func (g *Gen) internedString(s string) string {
	if l, ok := g.strLits[s]; ok {
		return l
	}
	l := fmt.Sprintf(".LC%d", len(g.strLits))
	g.strLits[s] = l
	g.strOrder = append(g.strOrder, s)
	fmt.Fprintf(&g.rod, "%s:\n\t.string %q\n", l, s)
	return l
}

// emitGlobal routes a global VAR_DECL to .data (has initializer) or .bss
// (uninitialized), per spec.md 4.4 "Global variables".
func (g *Gen) emitGlobal(n *ast.Node) {
	if n.StorageExtern {
		return
	}
	g.emitDataSymbol(n.Name, n.Type, n.Children)
}

// emitDataSymbol emits one .data/.bss entry for label, shared by true
// globals and by a function-local `static` (a local static keeps one program-lifetime slot instead of a stack
// slot, so it is emitted exactly like a global under its own unique label).
func (g *Gen) emitDataSymbol(label string, t *types.Type, initChildren []*ast.Node) {
	if len(initChildren) == 0 {
		sz := t.Size
		if sz == 0 {
			sz = 1
		}
		fmt.Fprintf(&g.bss, "%s: .zero %d\n", label, sz)
		return
	}
	var buf bytes.Buffer
	g.emitInitBytes(&buf, t, initChildren[0])
	fmt.Fprintf(&g.data, "%s:\n%s", label, buf.String())
}

// emitInitBytes lowers a global initializer to assembler data directives.
// Scalar initializers must be constant expressions; initializer lists fill
// array/struct members positionally and zero any uninitialized tail (spec.md
// 4.4 "Initializer lists").
func (g *Gen) emitInitBytes(buf *bytes.Buffer, t *types.Type, n *ast.Node) {
	switch {
	case t.Variant == types.ARRAY && n.Kind == ast.INIT_LIST:
		for i := 0; i < t.Length; i++ {
			if i < len(n.Children) {
				g.emitInitBytes(buf, t.Elem, n.Children[i])
			} else {
				fmt.Fprintf(buf, "\t.zero %d\n", t.Elem.Size)
			}
		}
	case (t.Variant == types.STRUCT) && n.Kind == ast.INIT_LIST:
		for i, m := range t.Members {
			if i < len(n.Children) {
				g.emitInitBytes(buf, m.Type, n.Children[i])
			} else {
				fmt.Fprintf(buf, "\t.zero %d\n", m.Type.Size)
			}
		}
	case t.Variant == types.PTR && t.Pointee != nil && t.Pointee.Variant == types.CHAR && n.Kind == ast.STRING:
		label := g.internedString(n.StrValue)
		fmt.Fprintf(buf, "\t.quad %s\n", label)
	case n.Kind == ast.INTEGER:
		fmt.Fprintf(buf, "\t%s %d\n", dataDirective(t.Size), n.IntValue)
	case n.Kind == ast.FLOATLIT:
		fmt.Fprintf(buf, "\t.quad %d\n", int64(n.FloatValue)) // best-effort constant encoding
	default:
		fmt.Fprintf(buf, "\t.zero %d\n", t.Size)
	}
}

func dataDirective(size int) string {
	switch size {
	case 1:
		return ".byte"
	case 2:
		return ".value"
	case 4:
		return ".long"
	default:
		return ".quad"
	}
}

// emitFunction lays out the stack frame (spec.md 4.4 "Stack frame layout"),
// spills parameters from their ABI registers, and walks the body.
func (g *Gen) emitFunction(n *ast.Node) {
	g.fr = buildFrame(n)
	for _, sn := range g.fr.staticDecls {
		g.emitDataSymbol(sn.StaticLabel, sn.Type, sn.Children)
	}
	if !n.StorageStatic {
		fmt.Fprintf(&g.text, ".globl %s\n", n.Name)
	}
	g.label(n.Name)
	g.emitln("push %s", reg("rbp").render(g.Syntax))
	g.twoOp("mov", reg("rbp"), reg("rsp"))
	if g.fr.size > 0 {
		g.twoOp("sub", reg("rsp"), imm(int64(g.fr.size)))
	}

	info := g.ABI.info()
	intRegs, floatRegs := 0, 0
	for _, p := range n.Params {
		off, _ := g.fr.offsetOf(p.Name)
		if p.Type != nil && p.Type.IsFloating() {
			if floatRegs < len(info.FloatArgRegs) {
				g.twoOp(sizedMov(p.Type.Size, true), mem("rbp", off), reg(info.FloatArgRegs[floatRegs]))
				floatRegs++
			}
			continue
		}
		if intRegs < len(info.IntArgRegs) {
			g.twoOp(sizedMov(p.Type.Size, false), mem("rbp", off), reg(info.IntArgRegs[intRegs]))
			intRegs++
		}
	}

	for _, stmt := range n.Children {
		g.emitStmt(stmt)
	}

	// Fallthrough return for a function whose body does not end in an
	// explicit return (C allows this for a non-void function; the result is
	// whatever happened to be in rax, matching the teacher's permissive
	// posture toward undefined behaviour, spec.md 9).
	g.emitln("leave")
	g.emitln("ret")
}

func sizedMov(size int, float bool) string {
	if float {
		if size == 4 {
			return "movss"
		}
		return "movsd"
	}
	switch size {
	case 1:
		return "movb"
	case 2:
		return "movw"
	case 4:
		return "movl"
	default:
		return "movq"
	}
}

func (g *Gen) emitStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.BLOCK:
		for _, c := range n.Children {
			g.emitStmt(c)
		}
	case ast.VAR_DECL:
		g.emitLocalDecl(n)
	case ast.RETURN:
		if len(n.Children) > 0 {
			g.emitValue(n.Children[0])
		}
		g.emitln("leave")
		g.emitln("ret")
	case ast.IF:
		g.emitIf(n)
	case ast.WHILE:
		g.emitWhile(n)
	case ast.FOR:
		g.emitFor(n)
	case ast.SWITCH:
		g.emitSwitch(n)
	case ast.CASE:
		g.label(n.Name)
		g.emitStmt(n.Children[0])
	case ast.DEFAULT:
		g.label(n.Name)
		g.emitStmt(n.Children[0])
	case ast.BREAK:
		if len(g.loops) == 0 {
			g.fatalf(n.Line, "break outside loop or switch")
		}
		g.emitln("jmp %s", g.loops[len(g.loops)-1].breakTo)
	case ast.CONTINUE:
		if len(g.loops) == 0 {
			g.fatalf(n.Line, "continue outside loop")
		}
		g.emitln("jmp %s", g.loops[len(g.loops)-1].continueTo)
	default:
		// expression statement
		g.emitValue(n)
	}
}

func (g *Gen) emitLocalDecl(n *ast.Node) {
	if n.StorageStatic {
		// Already lowered to a .data/.bss symbol and initialized once at
		// load time by emitFunction; reaching the declaration statement at
		// runtime must not re-run the initializer or touch the stack.
		return
	}
	if len(n.Children) == 0 {
		return
	}
	off, _ := g.fr.offsetOf(n.Name)
	init := n.Children[0]
	if init.Kind == ast.INIT_LIST {
		g.emitLocalInitList(n.Type, off, init)
		return
	}
	if n.Type.IsFloating() {
		g.emitFloat(init)
		g.twoOp(sizedMov(n.Type.Size, true), mem("rbp", off), reg(floatResultReg))
		return
	}
	g.emitValue(init)
	g.twoOp(sizedMov(n.Type.Size, false), mem("rbp", off), reg("rax"))
}

// emitLocalInitList stores each element/member at its frame offset,
// zeroing any uninitialized tail (spec.md 4.4).
func (g *Gen) emitLocalInitList(t *types.Type, base int, list *ast.Node) {
	switch t.Variant {
	case types.ARRAY:
		for i := 0; i < t.Length; i++ {
			elemOff := base + i*t.Elem.Size
			if i < len(list.Children) {
				g.storeScalarAt(t.Elem, elemOff, list.Children[i])
			} else {
				g.zeroAt(elemOff, t.Elem.Size)
			}
		}
	case types.STRUCT:
		for i, m := range t.Members {
			memberOff := base + m.Offset
			if i < len(list.Children) {
				g.storeScalarAt(m.Type, memberOff, list.Children[i])
			} else {
				g.zeroAt(memberOff, m.Type.Size)
			}
		}
	default:
		if len(list.Children) > 0 {
			g.storeScalarAt(t, base, list.Children[0])
		}
	}
}

func (g *Gen) storeScalarAt(t *types.Type, off int, n *ast.Node) {
	if n.Kind == ast.INIT_LIST {
		g.emitLocalInitList(t, off, n)
		return
	}
	if t.IsFloating() {
		g.emitFloat(n)
		g.twoOp(sizedMov(t.Size, true), mem("rbp", off), reg(floatResultReg))
		return
	}
	g.emitValue(n)
	g.twoOp(sizedMov(t.Size, false), mem("rbp", off), reg("rax"))
}

func (g *Gen) zeroAt(off, size int) {
	g.twoOp(sizedMov(size, false), mem("rbp", off), imm(0))
}

func (g *Gen) emitIf(n *ast.Node) {
	cond, then := n.Children[0], n.Children[1]
	elseLabel := g.newLabel("else")
	endLabel := elseLabel
	g.emitCondJumpFalse(cond, elseLabel)
	g.emitStmt(then)
	if len(n.Children) > 2 {
		endLabel = g.newLabel("endif")
		g.emitln("jmp %s", endLabel)
		g.label(elseLabel)
		g.emitStmt(n.Children[2])
	}
	g.label(endLabel)
}

func (g *Gen) emitWhile(n *ast.Node) {
	cond, body := n.Children[0], n.Children[1]
	start := g.newLabel("wstart")
	end := g.newLabel("wend")
	g.loops = append(g.loops, loopLabels{breakTo: end, continueTo: start})
	g.label(start)
	g.emitCondJumpFalse(cond, end)
	g.emitStmt(body)
	g.emitln("jmp %s", start)
	g.label(end)
	g.loops = g.loops[:len(g.loops)-1]
}

func (g *Gen) emitFor(n *ast.Node) {
	init, cond, post, body := n.Children[0], n.Children[1], n.Children[2], n.Children[3]
	g.emitStmt(init)
	start := g.newLabel("fstart")
	contLabel := g.newLabel("fcont")
	end := g.newLabel("fend")
	g.loops = append(g.loops, loopLabels{breakTo: end, continueTo: contLabel})
	g.label(start)
	if cond.Kind != ast.BLOCK || len(cond.Children) > 0 {
		g.emitCondJumpFalse(cond, end)
	}
	g.emitStmt(body)
	g.label(contLabel)
	g.emitStmt(post)
	g.emitln("jmp %s", start)
	g.label(end)
	g.loops = g.loops[:len(g.loops)-1]
}

// emitSwitch lowers to a cascade of comparisons and conditional jumps (no
// jump table), per spec.md 4.4. Case/default labels are assigned up front
// by scanning the body's direct CASE/DEFAULT children (their IntValue).
func (g *Gen) emitSwitch(n *ast.Node) {
	cond, body := n.Children[0], n.Children[1]
	end := g.newLabel("swend")
	g.loops = append(g.loops, loopLabels{breakTo: end})

	g.emitValue(cond)
	g.twoOp("mov", reg("r11"), reg("rax"))

	var defaultLabel string
	for _, c := range body.Children {
		switch c.Kind {
		case ast.CASE:
			lbl := g.newLabel("case")
			c.Name = lbl
			g.twoOp("cmp", reg("r11"), imm(c.IntValue))
			g.emitln("je %s", lbl)
		case ast.DEFAULT:
			lbl := g.newLabel("default")
			c.Name = lbl
			defaultLabel = lbl
		}
	}
	if defaultLabel != "" {
		g.emitln("jmp %s", defaultLabel)
	} else {
		g.emitln("jmp %s", end)
	}
	for _, c := range body.Children {
		g.emitStmt(c)
	}
	g.label(end)
	g.loops = g.loops[:len(g.loops)-1]
}

// emitCondJumpFalse evaluates cond and jumps to falseLabel when it is zero.
func (g *Gen) emitCondJumpFalse(cond *ast.Node, falseLabel string) {
	g.emitValue(cond)
	g.twoOp("cmp", reg("rax"), imm(0))
	g.emitln("je %s", falseLabel)
}

const floatResultReg = "xmm0"

// emitValue evaluates an integer/pointer-valued expression, leaving the
// result in rax.
func (g *Gen) emitValue(n *ast.Node) {
	if n == nil {
		return
	}
	if n.Type != nil && n.Type.IsFloating() {
		g.emitFloat(n)
		// Integer context consuming a float (e.g. return of a float fn body
		// reached as a statement) - leave as-is, xmm0 already holds it.
		return
	}
	switch n.Kind {
	case ast.INTEGER:
		g.twoOp("mov", reg("rax"), imm(n.IntValue))
	case ast.STRING:
		label := g.internedString(n.StrValue)
		g.twoOp("lea", reg("rax"), ripLabel(label))
	case ast.IDENTIFIER:
		g.loadVar(n)
	case ast.ASSIGN:
		g.emitAssign(n)
	case ast.COMPOUND_ASSIGN:
		g.emitCompoundAssign(n)
	case ast.BINARY_EXPR:
		g.emitBinary(n)
	case ast.NEG:
		g.emitValue(n.Children[0])
		g.oneOp("neg", reg("rax"))
	case ast.NOT:
		g.emitValue(n.Children[0])
		g.twoOp("cmp", reg("rax"), imm(0))
		g.oneOp("sete", reg("al"))
		g.twoOp("movzbq", reg("rax"), reg("al"))
	case ast.BITNOT:
		g.emitValue(n.Children[0])
		g.oneOp("not", reg("rax"))
	case ast.DEREF:
		g.emitAddress(n)
		g.twoOp(sizedMov(sizeOf(n.Type), false), reg("rax"), mem("rax", 0))
	case ast.ADDR_OF:
		g.emitAddress(n.Children[0])
	case ast.MEMBER_ACCESS, ast.ARRAY_ACCESS:
		g.emitAddress(n)
		g.twoOp(sizedMov(sizeOf(n.Type), false), reg("rax"), mem("rax", 0))
	case ast.PRE_INC, ast.PRE_DEC, ast.POST_INC, ast.POST_DEC:
		g.emitIncDec(n)
	case ast.CALL:
		g.emitCall(n)
	case ast.CAST:
		g.emitCast(n)
	case ast.IF: // ternary
		g.emitTernary(n)
	default:
		g.fatalf(n.Line, "codegen: unsupported expression node")
	}
}

func sizeOf(t *types.Type) int {
	if t == nil {
		return 8
	}
	return t.Size
}

// emitFloat evaluates a floating-point expression into xmm0.
func (g *Gen) emitFloat(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.FLOATLIT:
		label := g.internConst(n.FloatValue)
		g.twoOp("movsd", reg(floatResultReg), ripLabel(label))
	case ast.IDENTIFIER:
		g.loadVarFloat(n)
	case ast.CAST:
		if n.Children[0].Type != nil && n.Children[0].Type.IsFloating() {
			g.emitFloat(n.Children[0])
		} else {
			g.emitValue(n.Children[0])
			g.twoOp("cvtsi2sd", reg(floatResultReg), reg("rax"))
		}
	case ast.BINARY_EXPR:
		g.emitFloat(n.Children[0])
		g.twoOp("movsd", reg("xmm1"), reg(floatResultReg)) // stash lhs
		g.emitFloat(n.Children[1])
		g.twoOp("movsd", reg("xmm2"), reg(floatResultReg)) // stash rhs
		g.twoOp("movsd", reg(floatResultReg), reg("xmm1")) // restore lhs
		mnemonic := map[string]string{"+": "addsd", "-": "subsd", "*": "mulsd", "/": "divsd"}[n.Op]
		if mnemonic == "" {
			g.fatalf(n.Line, "unsupported floating operator %q", n.Op)
		}
		g.twoOp(mnemonic, reg(floatResultReg), reg("xmm2"))
	default:
		g.fatalf(n.Line, "codegen: unsupported floating expression node")
	}
}

func (g *Gen) internConst(v float64) string {
	label := fmt.Sprintf(".LCD%d", g.constN)
	g.constN++
	fmt.Fprintf(&g.rod, "%s:\n\t.double %v\n", label, v)
	return label
}

// varLabel returns the assembler symbol backing a variable reference that
// isn't a frame local: a `static` local resolves to its unique per-
// declaration label, anything else is assumed to already be a global
// symbol named for the identifier itself.
func (g *Gen) varLabel(name string) string {
	if l, ok := g.fr.staticLabel(name); ok {
		return l
	}
	return name
}

func (g *Gen) loadVar(n *ast.Node) {
	if off, ok := g.fr.offsetOf(n.Name); ok {
		g.twoOp(sizedMov(sizeOf(n.Type), false), reg("rax"), mem("rbp", off))
		return
	}
	g.twoOp("lea", reg("rax"), ripLabel(g.varLabel(n.Name)))
	g.twoOp(sizedMov(sizeOf(n.Type), false), reg("rax"), mem("rax", 0))
}

func (g *Gen) loadVarFloat(n *ast.Node) {
	if off, ok := g.fr.offsetOf(n.Name); ok {
		g.twoOp(sizedMov(sizeOf(n.Type), true), reg(floatResultReg), mem("rbp", off))
		return
	}
	g.twoOp("movsd", reg(floatResultReg), ripLabel(g.varLabel(n.Name)))
}

// emitAddress computes an lvalue's address into rax.
func (g *Gen) emitAddress(n *ast.Node) {
	switch n.Kind {
	case ast.IDENTIFIER:
		if off, ok := g.fr.offsetOf(n.Name); ok {
			g.twoOp("lea", reg("rax"), mem("rbp", off))
			return
		}
		g.twoOp("lea", reg("rax"), ripLabel(g.varLabel(n.Name)))
	case ast.DEREF:
		g.emitValue(n.Children[0])
	case ast.ARRAY_ACCESS:
		base, idx := n.Children[0], n.Children[1]
		elemSize := sizeOf(n.Type)
		g.emitAddress(base)
		g.emitln("push %s", reg("rax").render(g.Syntax))
		g.emitValue(idx)
		g.twoOp("imul", reg("rax"), imm(int64(elemSize)))
		g.emitln("pop %s", reg("r10").render(g.Syntax))
		g.twoOp("add", reg("rax"), reg("r10"))
	case ast.MEMBER_ACCESS:
		base := n.Children[0]
		if n.IsArrow {
			g.emitValue(base)
		} else {
			g.emitAddress(base)
		}
		off := memberOffset(base.Type, n.IsArrow, n.Name)
		if off != 0 {
			g.twoOp("add", reg("rax"), imm(int64(off)))
		}
	default:
		g.fatalf(n.Line, "codegen: not an lvalue")
	}
}

func memberOffset(t *types.Type, isArrow bool, name string) int {
	if t == nil {
		return 0
	}
	if isArrow {
		t = t.Pointee
	}
	if t == nil {
		return 0
	}
	m, ok := lo.Find(t.Members, func(m types.Member) bool { return m.Name == name })
	if !ok {
		return 0
	}
	return m.Offset
}

func (g *Gen) emitAssign(n *ast.Node) {
	lhs, rhs := n.Children[0], n.Children[1]
	if lhs.Type != nil && lhs.Type.IsFloating() {
		g.emitFloat(rhs)
		g.emitAddress(lhs)
		g.twoOp(sizedMov(sizeOf(lhs.Type), true), mem("rax", 0), reg(floatResultReg))
		return
	}
	if lhs.Kind == ast.IDENTIFIER {
		g.emitValue(rhs)
		if off, ok := g.fr.offsetOf(lhs.Name); ok {
			g.twoOp(sizedMov(sizeOf(lhs.Type), false), mem("rbp", off), reg("rax"))
			return
		}
		g.emitln("push %s", reg("rax").render(g.Syntax))
		g.twoOp("lea", reg("r10"), ripLabel(g.varLabel(lhs.Name)))
		g.emitln("pop %s", reg("rax").render(g.Syntax))
		g.twoOp(sizedMov(sizeOf(lhs.Type), false), mem("r10", 0), reg("rax"))
		return
	}
	g.emitAddress(lhs)
	g.emitln("push %s", reg("rax").render(g.Syntax))
	g.emitValue(rhs)
	g.emitln("pop %s", reg("r10").render(g.Syntax))
	g.twoOp(sizedMov(sizeOf(lhs.Type), false), mem("r10", 0), reg("rax"))
}

// emitCompoundAssign lowers `lhs OP= rhs` as `lhs = lhs OP rhs` without
// cloning the LHS subtree (spec.md 9, option (b)).
func (g *Gen) emitCompoundAssign(n *ast.Node) {
	lhs, rhs := n.Children[0], n.Children[1]
	synthBinary := ast.New(ast.BINARY_EXPR, lhs, rhs)
	synthBinary.Op = n.Op
	synthBinary.Type = n.Type
	synthAssign := ast.New(ast.ASSIGN, lhs, synthBinary)
	synthAssign.Type = n.Type
	g.emitAssign(synthAssign)
}

// emitIncDec lowers ++/-- for both prefix and postfix forms. The address is
// computed once, the current value loaded into r10, mutated in place, and
// either the new (prefix) or old (postfix) value left in rax.
func (g *Gen) emitIncDec(n *ast.Node) {
	target := n.Children[0]
	isPost := n.Kind == ast.POST_INC || n.Kind == ast.POST_DEC
	delta := int64(1)
	if target.Type != nil && target.Type.Variant == types.PTR {
		delta = int64(target.Type.Pointee.Size)
	}
	if n.Kind == ast.PRE_DEC || n.Kind == ast.POST_DEC {
		delta = -delta
	}

	g.emitAddress(target)
	g.emitln("push %s", reg("rax").render(g.Syntax))
	g.twoOp(sizedMov(sizeOf(target.Type), false), reg("r10"), mem("rax", 0))
	if isPost {
		g.twoOp("mov", reg("r11"), reg("r10"))
	}
	g.twoOp("add", reg("r10"), imm(delta))
	g.emitln("pop %s", reg("rax").render(g.Syntax))
	g.twoOp(sizedMov(sizeOf(target.Type), false), mem("rax", 0), reg("r10"))
	if isPost {
		g.twoOp("mov", reg("rax"), reg("r11"))
	} else {
		g.twoOp("mov", reg("rax"), reg("r10"))
	}
}

// emitBinary lowers integer/pointer binary operators using the fixed
// rax/r10 temporary pair (spec.md 4.4 "trivial stack-discipline allocator").
func (g *Gen) emitBinary(n *ast.Node) {
	lhs, rhs := n.Children[0], n.Children[1]
	if n.Op == "&&" || n.Op == "||" {
		g.emitShortCircuit(n)
		return
	}
	scale := pointerScale(lhs.Type, rhs.Type, n.Op)

	g.emitValue(lhs)
	g.emitln("push %s", reg("rax").render(g.Syntax))
	g.emitValue(rhs)
	if scale > 1 {
		g.twoOp("imul", reg("rax"), imm(int64(scale)))
	}
	g.twoOp("mov", reg("r10"), reg("rax"))
	g.emitln("pop %s", reg("rax").render(g.Syntax))

	switch n.Op {
	case "+":
		g.twoOp("add", reg("rax"), reg("r10"))
	case "-":
		g.twoOp("sub", reg("rax"), reg("r10"))
		if isPointerDiff(lhs.Type, rhs.Type) {
			g.twoOp("mov", reg("rcx"), imm(int64(lhs.Type.Pointee.Size)))
			g.emitln("cqo")
			g.oneOp("idiv", reg("rcx"))
		}
	case "*":
		g.twoOp("imul", reg("rax"), reg("r10"))
	case "/", "%":
		g.emitln("cqo")
		g.oneOp("idiv", reg("r10"))
		if n.Op == "%" {
			g.twoOp("mov", reg("rax"), reg("rdx"))
		}
	case "&":
		g.twoOp("and", reg("rax"), reg("r10"))
	case "|":
		g.twoOp("or", reg("rax"), reg("r10"))
	case "^":
		g.twoOp("xor", reg("rax"), reg("r10"))
	case "<<":
		g.twoOp("mov", reg("rcx"), reg("r10"))
		g.twoOp("sal", reg("rax"), reg("cl"))
	case ">>":
		g.twoOp("mov", reg("rcx"), reg("r10"))
		g.twoOp("sar", reg("rax"), reg("cl"))
	case "==", "!=", "<", ">", "<=", ">=":
		g.twoOp("cmp", reg("rax"), reg("r10"))
		g.oneOp(setcc(n.Op), reg("al"))
		g.twoOp("movzbq", reg("rax"), reg("al"))
	default:
		g.fatalf(n.Line, "unsupported operator %q", n.Op)
	}
}

func setcc(op string) string {
	switch op {
	case "==":
		return "sete"
	case "!=":
		return "setne"
	case "<":
		return "setl"
	case ">":
		return "setg"
	case "<=":
		return "setle"
	case ">=":
		return "setge"
	}
	return "sete"
}

// pointerScale returns the element size to scale the integer operand by for
// pointer + int / int + pointer (spec.md 4.4 "pointer arithmetic scales the
// integer operand").
func pointerScale(lt, rt *types.Type, op string) int {
	if op != "+" && op != "-" {
		return 1
	}
	if lt != nil && (lt.Variant == types.PTR) && rt != nil && rt.Variant != types.PTR {
		return lt.Pointee.Size
	}
	if rt != nil && rt.Variant == types.PTR && lt != nil && lt.Variant != types.PTR {
		return rt.Pointee.Size
	}
	return 1
}

func isPointerDiff(lt, rt *types.Type) bool {
	return lt != nil && rt != nil && lt.Variant == types.PTR && rt.Variant == types.PTR
}

// emitShortCircuit lowers && and || with lazy evaluation of the RHS.
func (g *Gen) emitShortCircuit(n *ast.Node) {
	lhs, rhs := n.Children[0], n.Children[1]
	shortLabel := g.newLabel("sc")
	end := g.newLabel("scend")
	g.emitValue(lhs)
	g.twoOp("cmp", reg("rax"), imm(0))
	if n.Op == "&&" {
		g.emitln("je %s", shortLabel)
	} else {
		g.emitln("jne %s", shortLabel)
	}
	g.emitValue(rhs)
	g.twoOp("cmp", reg("rax"), imm(0))
	g.oneOp("setne", reg("al"))
	g.twoOp("movzbq", reg("rax"), reg("al"))
	g.emitln("jmp %s", end)
	g.label(shortLabel)
	if n.Op == "&&" {
		g.twoOp("mov", reg("rax"), imm(0))
	} else {
		g.twoOp("mov", reg("rax"), imm(1))
	}
	g.label(end)
}

func (g *Gen) emitTernary(n *ast.Node) {
	cond, then, els := n.Children[0], n.Children[1], n.Children[2]
	elseLabel := g.newLabel("tern")
	end := g.newLabel("ternend")
	g.emitCondJumpFalse(cond, elseLabel)
	if n.Type != nil && n.Type.IsFloating() {
		g.emitFloat(then)
	} else {
		g.emitValue(then)
	}
	g.emitln("jmp %s", end)
	g.label(elseLabel)
	if n.Type != nil && n.Type.IsFloating() {
		g.emitFloat(els)
	} else {
		g.emitValue(els)
	}
	g.label(end)
}

func (g *Gen) emitCast(n *ast.Node) {
	src := n.Children[0]
	if n.Type.IsFloating() {
		g.emitFloat(n)
		return
	}
	if src.Type != nil && src.Type.IsFloating() {
		g.emitFloat(src)
		g.twoOp("cvttsd2si", reg("rax"), reg(floatResultReg))
		return
	}
	g.emitValue(src)
	truncateTo(g, n.Type.Size)
}

// truncateTo narrows rax to a smaller integer width by masking through a
// sub-register move and zero/sign extension back, matching the "char -> int
// on any use" promotion model of spec.md 4.4.
func truncateTo(g *Gen, size int) {
	switch size {
	case 1:
		g.twoOp("movzbq", reg("rax"), reg("al"))
	case 2:
		g.twoOp("movzwq", reg("rax"), reg("ax"))
	case 4:
		g.twoOp("mov", reg("eax"), reg("eax"))
	}
}

// argSlot records where one call argument ends up: a register of its own
// class (reg >= 0) or the outgoing stack area (reg == -1).
type argSlot struct {
	isFloat bool
	reg     int
}

// classifyArgs assigns each argument to an ABI register or the stack, per
// spec.md 4.4 "Calls". SysV gives integer and floating
// arguments independent register pools (an 8th integer argument can still
// reach a GPR after 7 floats); Win64 has no such independence - argument
// position N always claims the Nth slot of whichever pool (rcx/xmm0,
// rdx/xmm1, ...), so a single shared counter selects both the reg index and
// which pool it names.
func classifyArgs(abi ABI, info abiInfo, args []*ast.Node) []argSlot {
	slots := make([]argSlot, len(args))
	intSlot, floatSlot, sharedSlot := 0, 0, 0
	for i, a := range args {
		isFloat := a.Type != nil && a.Type.IsFloating()
		if abi == Win64 {
			pool := len(info.IntArgRegs)
			if isFloat {
				pool = len(info.FloatArgRegs)
			}
			s := argSlot{isFloat: isFloat, reg: -1}
			if sharedSlot < pool {
				s.reg = sharedSlot
			}
			sharedSlot++
			slots[i] = s
			continue
		}
		if isFloat {
			s := argSlot{isFloat: true, reg: -1}
			if floatSlot < len(info.FloatArgRegs) {
				s.reg = floatSlot
				floatSlot++
			}
			slots[i] = s
		} else {
			s := argSlot{reg: -1}
			if intSlot < len(info.IntArgRegs) {
				s.reg = intSlot
				intSlot++
			}
			slots[i] = s
		}
	}
	return slots
}

// emitCall evaluates arguments, places them into ABI slots, restores
// 16-byte alignment, and issues the call (spec.md 4.4 "Calls").
//
// Every argument is evaluated exactly once, left to right in source order,
// into a scratch temporary before any of it is placed into a register or
// the outgoing stack frame (spec.md 4.4) - so a side-effecting argument past the ABI's
// register count still fires in source order rather than in push order.
func (g *Gen) emitCall(n *ast.Node) {
	callee := n.Children[0]
	args := n.Children[1:]
	info := g.ABI.info()
	variadic := callee.Type != nil && callee.Type.Variant == types.FUNCTION && callee.Type.Variadic

	slots := classifyArgs(g.ABI, info, args)
	var stackArgs []int
	usedFloatRegs := 0
	for i, s := range slots {
		if s.reg == -1 {
			stackArgs = append(stackArgs, i)
		} else if s.isFloat && g.ABI != Win64 {
			usedFloatRegs++
		}
	}

	tempBytes := len(args) * 8
	if tempBytes > 0 {
		g.twoOp("sub", reg("rsp"), imm(int64(tempBytes)))
	}
	shift := 0
	tempSlot := func(i int) operand { return mem("rsp", i*8+shift) }

	for i, a := range args {
		if a.Type != nil && a.Type.IsFloating() {
			g.emitFloat(a)
			g.twoOp("movsd", tempSlot(i), reg(floatResultReg))
		} else {
			g.emitValue(a)
			g.twoOp("mov", tempSlot(i), reg("rax"))
		}
	}

	// Total stack movement before the call must stay 16-byte aligned: the
	// temp block and the outgoing stack-argument area each contribute 8
	// bytes per odd count, so padding is needed exactly when their
	// parities differ.
	padded := (len(args)%2 != 0) != (len(stackArgs)%2 != 0)
	if padded {
		g.twoOp("sub", reg("rsp"), imm(8))
		shift += 8
	}
	for i := len(stackArgs) - 1; i >= 0; i-- {
		idx := stackArgs[i]
		g.twoOp("mov", reg("rax"), tempSlot(idx))
		g.emitln("push %s", reg("rax").render(g.Syntax))
		shift += 8
	}
	if info.ShadowSpace > 0 {
		g.twoOp("sub", reg("rsp"), imm(int64(info.ShadowSpace)))
		shift += info.ShadowSpace
	}
	for i, s := range slots {
		if s.reg == -1 {
			continue
		}
		if s.isFloat {
			g.twoOp("movsd", reg(info.FloatArgRegs[s.reg]), tempSlot(i))
			if g.ABI == Win64 && variadic && s.reg < len(info.IntArgRegs) {
				// Win64 variadic callees read floats out of the
				// general-purpose slot, so the value is duplicated
				// into both (spec.md 4.4).
				g.twoOp("movq", reg(info.IntArgRegs[s.reg]), tempSlot(i))
			}
		} else {
			g.twoOp("mov", reg(info.IntArgRegs[s.reg]), tempSlot(i))
		}
	}
	if g.ABI == SysV && variadic {
		g.twoOp("mov", reg("al"), imm(int64(usedFloatRegs)))
	}
	g.emitln("call %s", callee.Name)
	cleanup := tempBytes + len(stackArgs)*8 + info.ShadowSpace
	if padded {
		cleanup += 8
	}
	if cleanup > 0 {
		g.twoOp("add", reg("rsp"), imm(int64(cleanup)))
	}
}
