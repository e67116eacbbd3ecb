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

package parser

import (
	"github.com/cc64/cc64/internal/ast"
	"github.com/cc64/cc64/internal/token"
	"github.com/cc64/cc64/internal/types"
)

// compoundOps maps a compound-assignment token to the underlying binary
// operator text it desugars from (spec.md 4.3, 9).
var compoundOps = map[token.Kind]string{
	token.PLUS_EQ: "+", token.MINUS_EQ: "-", token.STAR_EQ: "*", token.SLASH_EQ: "/",
	token.PCT_EQ: "%", token.SHL_EQ: "<<", token.SHR_EQ: ">>",
	token.AMP_EQ: "&", token.PIPE_EQ: "|", token.CARET_EQ: "^",
}

func (p *Parser) parseExpr() *ast.Node { return p.parseAssignExpr() }

// parseAssignExpr implements the lowest (right-associative) rung: plain and
// compound assignment. Compound assignment is a first-class AST node
// (COMPOUND_ASSIGN) rather than a clone of the LHS, per the recommended
// option (b) of spec.md 9.
func (p *Parser) parseAssignExpr() *ast.Node {
	lhs := p.parseConditional()
	if p.at(token.ASSIGN) {
		p.advance()
		rhs := p.parseAssignExpr()
		n := ast.New(ast.ASSIGN, lhs, rhs)
		n.Type = lhs.Type
		return n
	}
	if op, ok := compoundOps[p.tok.Kind]; ok {
		p.advance()
		rhs := p.parseAssignExpr()
		n := ast.New(ast.COMPOUND_ASSIGN, lhs, rhs)
		n.Op = op
		n.Type = lhs.Type
		return n
	}
	return lhs
}

func (p *Parser) parseConditional() *ast.Node {
	cond := p.parseLogicalOr()
	if p.accept(token.QUESTION) {
		then := p.parseExpr()
		p.expect(token.COLON)
		els := p.parseConditional()
		n := ast.New(ast.IF, cond, then, els)
		n.Type = commonType(then.Type, els.Type)
		return n
	}
	return cond
}

func (p *Parser) binLevel(next func() *ast.Node, ops map[token.Kind]string) *ast.Node {
	lhs := next()
	for {
		op, ok := ops[p.tok.Kind]
		if !ok {
			return lhs
		}
		p.advance()
		rhs := next()
		n := ast.New(ast.BINARY_EXPR, lhs, rhs)
		n.Op = op
		n.Type = binaryResultType(p.tg, op, lhs.Type, rhs.Type)
		lhs = n
	}
}

func (p *Parser) parseLogicalOr() *ast.Node {
	return p.binLevel(p.parseLogicalAnd, map[token.Kind]string{token.OROR: "||"})
}
func (p *Parser) parseLogicalAnd() *ast.Node {
	return p.binLevel(p.parseBitOr, map[token.Kind]string{token.ANDAND: "&&"})
}
func (p *Parser) parseBitOr() *ast.Node {
	return p.binLevel(p.parseBitXor, map[token.Kind]string{token.PIPE: "|"})
}
func (p *Parser) parseBitXor() *ast.Node {
	return p.binLevel(p.parseBitAnd, map[token.Kind]string{token.CARET: "^"})
}
func (p *Parser) parseBitAnd() *ast.Node {
	return p.binLevel(p.parseEquality, map[token.Kind]string{token.AMP: "&"})
}
func (p *Parser) parseEquality() *ast.Node {
	return p.binLevel(p.parseRelational, map[token.Kind]string{token.EQ: "==", token.NE: "!="})
}
func (p *Parser) parseRelational() *ast.Node {
	return p.binLevel(p.parseShift, map[token.Kind]string{
		token.LT: "<", token.GT: ">", token.LE: "<=", token.GE: ">=",
	})
}
func (p *Parser) parseShift() *ast.Node {
	return p.binLevel(p.parseAdditive, map[token.Kind]string{token.SHL: "<<", token.SHR: ">>"})
}
func (p *Parser) parseAdditive() *ast.Node {
	return p.binLevel(p.parseMultiplicative, map[token.Kind]string{token.PLUS: "+", token.MINUS: "-"})
}
func (p *Parser) parseMultiplicative() *ast.Node {
	return p.binLevel(p.parseCast, map[token.Kind]string{
		token.STAR: "*", token.SLASH: "/", token.PERCENT: "%",
	})
}

// parseCast disambiguates "(T) expr" from a parenthesised expression by
// peeking the token after '(' (spec.md 4.3 "Casts").
func (p *Parser) parseCast() *ast.Node {
	if p.at(token.LPAREN) && p.startsType(p.next) {
		p.advance()
		t := p.parseTypeName()
		p.expect(token.RPAREN)
		operand := p.parseCast()
		n := ast.New(ast.CAST, operand)
		n.Type = t
		return n
	}
	return p.parseUnary()
}

// startsType reports whether tok can begin a type-name, used for the cast
// vs parenthesised-expression and sizeof(T) vs sizeof(expr) disambiguation.
func (p *Parser) startsType(tok token.Token) bool {
	switch tok.Kind {
	case token.KW_INT, token.KW_CHAR, token.KW_SHORT, token.KW_LONG, token.KW_FLOAT,
		token.KW_DOUBLE, token.KW_VOID, token.KW_STRUCT, token.KW_UNION, token.KW_ENUM,
		token.KW_CONST, token.KW_UNSIGNED, token.KW_SIGNED:
		return true
	case token.IDENT:
		_, ok := p.typedefs[tok.Text()]
		return ok
	}
	return false
}

// parseTypeName parses an abstract declarator: declaration specifiers
// followed by optional '*'/'[]' suffixes with no name.
func (p *Parser) parseTypeName() *types.Type {
	spec := p.parseDeclSpecifiers()
	t := spec.base
	for p.accept(token.STAR) {
		t = types.NewPtr(p.tg, t)
	}
	for p.at(token.LBRACKET) {
		p.advance()
		length := 0
		if !p.at(token.RBRACKET) {
			length = int(p.parseConstIntExpr())
		}
		p.expect(token.RBRACKET)
		t = types.NewArray(t, length)
	}
	return t
}

func (p *Parser) parseUnary() *ast.Node {
	line := p.tok.Line
	switch p.tok.Kind {
	case token.STAR:
		p.advance()
		operand := p.parseCast()
		n := ast.New(ast.DEREF, operand)
		n.Line = line
		if operand.Type != nil && operand.Type.Variant == types.PTR {
			n.Type = operand.Type.Pointee
		}
		return n
	case token.AMP:
		p.advance()
		operand := p.parseCast()
		n := ast.New(ast.ADDR_OF, operand)
		n.Line = line
		n.Type = types.NewPtr(p.tg, operand.Type)
		return n
	case token.MINUS:
		p.advance()
		operand := p.parseCast()
		n := ast.New(ast.NEG, operand)
		n.Type = operand.Type
		return n
	case token.BANG:
		p.advance()
		operand := p.parseCast()
		n := ast.New(ast.NOT, operand)
		n.Type = types.NewInt()
		return n
	case token.TILDE:
		p.advance()
		operand := p.parseCast()
		n := ast.New(ast.BITNOT, operand)
		n.Type = operand.Type
		return n
	case token.INC:
		p.advance()
		operand := p.parseUnary()
		n := ast.New(ast.PRE_INC, operand)
		n.Type = operand.Type
		return n
	case token.DEC:
		p.advance()
		operand := p.parseUnary()
		n := ast.New(ast.PRE_DEC, operand)
		n.Type = operand.Type
		return n
	case token.KW_SIZEOF:
		p.advance()
		return p.parseSizeof()
	}
	return p.parsePostfix()
}

// parseSizeof accepts either a parenthesised type name or a unary
// expression, producing a compile-time integer (spec.md 4.3 "sizeof").
func (p *Parser) parseSizeof() *ast.Node {
	if p.at(token.LPAREN) && p.startsType(p.next) {
		p.advance()
		t := p.parseTypeName()
		p.expect(token.RPAREN)
		n := ast.New(ast.INTEGER)
		n.IntValue = int64(t.Size)
		n.Type = types.NewLong(p.tg)
		return n
	}
	operand := p.parseUnary()
	n := ast.New(ast.INTEGER)
	if operand.Type != nil {
		n.IntValue = int64(operand.Type.Size)
	}
	n.Type = types.NewLong(p.tg)
	return n
}

func (p *Parser) parsePostfix() *ast.Node {
	n := p.parsePrimary()
	for {
		switch p.tok.Kind {
		case token.LBRACKET:
			p.advance()
			idx := p.parseExpr()
			p.expect(token.RBRACKET)
			access := ast.New(ast.ARRAY_ACCESS, n, idx)
			if n.Type != nil {
				elemType := n.Type.Elem
				if elemType == nil && n.Type.Variant == types.PTR {
					elemType = n.Type.Pointee
				}
				access.Type = elemType
			}
			n = access
		case token.DOT, token.ARROW:
			isArrow := p.tok.Kind == token.ARROW
			p.advance()
			name := p.expect(token.IDENT).Text()
			access := ast.New(ast.MEMBER_ACCESS, n)
			access.Name = name
			access.IsArrow = isArrow
			access.Type = memberType(n.Type, isArrow, name)
			n = access
		case token.LPAREN:
			p.advance()
			call := ast.New(ast.CALL, n)
			for !p.at(token.RPAREN) {
				call.Add(p.parseAssignExpr())
				if !p.accept(token.COMMA) {
					break
				}
			}
			p.expect(token.RPAREN)
			call.Name = n.Name
			if n.Type != nil && n.Type.Variant == types.FUNCTION {
				call.Type = n.Type.Return
			} else {
				call.Type = types.NewInt()
			}
			n = call
		case token.INC:
			p.advance()
			post := ast.New(ast.POST_INC, n)
			post.Type = n.Type
			n = post
		case token.DEC:
			p.advance()
			post := ast.New(ast.POST_DEC, n)
			post.Type = n.Type
			n = post
		default:
			return n
		}
	}
}

func memberType(t *types.Type, isArrow bool, name string) *types.Type {
	if t == nil {
		return nil
	}
	if isArrow {
		if t.Variant != types.PTR {
			return nil
		}
		t = t.Pointee
	}
	if t == nil || (t.Variant != types.STRUCT && t.Variant != types.UNION) {
		return nil
	}
	for _, m := range t.Members {
		if m.Name == name {
			return m.Type
		}
	}
	return nil
}

func (p *Parser) parsePrimary() *ast.Node {
	switch p.tok.Kind {
	case token.INT_LIT:
		n := ast.New(ast.INTEGER)
		n.IntValue = parseIntLiteralText(p.tok.Text())
		n.Type = intLitType(p.tg, p.tok.IntSuffix)
		p.advance()
		return n
	case token.FLOAT_LIT:
		n := ast.New(ast.FLOATLIT)
		n.FloatValue = parseFloatLiteralText(p.tok.Text())
		n.Type = types.NewDouble()
		p.advance()
		return n
	case token.STRING_LIT:
		n := ast.New(ast.STRING)
		n.StrValue = unescapeString(p.tok.Text())
		n.Type = types.NewPtr(p.tg, types.NewChar())
		p.advance()
		return n
	case token.CHAR_LIT:
		n := ast.New(ast.INTEGER)
		n.IntValue = int64(unescapeChar(p.tok.Text()))
		n.Type = types.NewChar()
		p.advance()
		return n
	case token.IDENT:
		name := p.tok.Text()
		line := p.tok.Line
		p.advance()
		if v, ok := p.enums[name]; ok {
			n := ast.New(ast.INTEGER)
			n.IntValue = v
			n.Type = types.NewInt()
			return n
		}
		n := ast.New(ast.IDENTIFIER)
		n.Name = name
		n.Line = line
		n.Type = p.lookupVarType(name)
		return n
	case token.LPAREN:
		p.advance()
		n := p.parseExpr()
		p.expect(token.RPAREN)
		return n
	case token.LBRACE:
		return p.parseInitList()
	}
	p.fatalf("unexpected token %s in expression", p.tok.Kind)
	return nil
}

func (p *Parser) lookupVarType(name string) *types.Type {
	if decl, ok := p.locals[name]; ok {
		return decl.Type
	}
	if t, ok := p.globals[name]; ok {
		return t
	}
	return nil
}

func intLitType(tg types.Target, suffix string) *types.Type {
	hasL := false
	for _, c := range suffix {
		if c == 'l' || c == 'L' {
			hasL = true
		}
	}
	if hasL {
		return types.NewLong(tg)
	}
	return types.NewInt()
}

func commonType(a, b *types.Type) *types.Type {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.IsFloating() || b.IsFloating() {
		if a.Variant == types.DOUBLE || b.Variant == types.DOUBLE {
			return types.NewDouble()
		}
		return types.NewFloat()
	}
	if a.Size >= b.Size {
		return a
	}
	return b
}

// binaryResultType applies the compressed "usual arithmetic conversions" of
// spec.md 4.4: char promotes to int on any use; float/double widens; pointer
// +/- int keeps the pointer type; pointer - pointer yields a long (element
// count).
func binaryResultType(tg types.Target, op string, a, b *types.Type) *types.Type {
	if a == nil || b == nil {
		return a
	}
	switch op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return types.NewInt()
	case "+", "-":
		if a.Variant == types.PTR || a.Variant == types.ARRAY {
			if op == "-" && (b.Variant == types.PTR || b.Variant == types.ARRAY) {
				return types.NewLong(tg)
			}
			return types.Decay(tg, a)
		}
		if b.Variant == types.PTR || b.Variant == types.ARRAY {
			return types.Decay(tg, b)
		}
	}
	return commonType(promote(a), promote(b))
}

// promote implements "char -> int on any use" (spec.md 4.4).
func promote(t *types.Type) *types.Type {
	if t.Variant == types.CHAR || t.Variant == types.SHORT {
		return types.NewInt()
	}
	return t
}

func unescapeChar(lit string) byte {
	inner := lit[1 : len(lit)-1]
	s := unescapeString(`"` + inner + `"`)
	if len(s) == 0 {
		return 0
	}
	return s[0]
}
