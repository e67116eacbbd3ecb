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

// isTypeStart reports whether the current token can begin a declaration
// (spec.md 4.3, "Declaration vs expression disambiguation").
func (p *Parser) isTypeStart() bool {
	switch p.tok.Kind {
	case token.KW_INT, token.KW_CHAR, token.KW_SHORT, token.KW_LONG, token.KW_FLOAT,
		token.KW_DOUBLE, token.KW_VOID, token.KW_STRUCT, token.KW_UNION, token.KW_ENUM,
		token.KW_CONST, token.KW_STATIC, token.KW_EXTERN, token.KW_UNSIGNED, token.KW_SIGNED,
		token.KW_TYPEDEF:
		return true
	case token.IDENT:
		_, ok := p.typedefs[p.tok.Text()]
		return ok
	}
	return false
}

// declSpec is the result of parsing declaration specifiers: a base type
// plus storage-class flags.
type declSpec struct {
	base     *types.Type
	isTypedef, isStatic, isExtern bool
}

func (p *Parser) parseDeclSpecifiers() declSpec {
	var spec declSpec
	var unsignedSeen, signedSeen, longCount bool
	var sawChar, sawInt, sawShort, sawFloat, sawDouble, sawVoid bool
	for {
		switch p.tok.Kind {
		case token.KW_TYPEDEF:
			spec.isTypedef = true
			p.advance()
		case token.KW_STATIC:
			spec.isStatic = true
			p.advance()
		case token.KW_EXTERN:
			spec.isExtern = true
			p.advance()
		case token.KW_CONST:
			p.advance()
		case token.KW_UNSIGNED:
			unsignedSeen = true
			p.advance()
		case token.KW_SIGNED:
			signedSeen = true
			p.advance()
		case token.KW_CHAR:
			sawChar = true
			p.advance()
		case token.KW_INT:
			sawInt = true
			p.advance()
		case token.KW_SHORT:
			sawShort = true
			p.advance()
		case token.KW_LONG:
			longCount = true
			p.advance()
			if p.at(token.KW_LONG) {
				spec.base = types.NewLongLong()
				p.advance()
			}
		case token.KW_FLOAT:
			sawFloat = true
			p.advance()
		case token.KW_DOUBLE:
			sawDouble = true
			p.advance()
		case token.KW_VOID:
			sawVoid = true
			p.advance()
		case token.KW_STRUCT, token.KW_UNION:
			spec.base = p.parseStructOrUnion()
			goto done
		case token.KW_ENUM:
			spec.base = p.parseEnum()
			goto done
		case token.IDENT:
			if t, ok := p.typedefs[p.tok.Text()]; ok && spec.base == nil {
				spec.base = t
				p.advance()
				goto done
			}
			goto done
		default:
			goto done
		}
	}
done:
	if spec.base != nil {
		return spec
	}
	switch {
	case sawVoid:
		spec.base = types.NewVoid()
	case sawDouble:
		spec.base = types.NewDouble()
	case sawFloat:
		spec.base = types.NewFloat()
	case sawChar:
		spec.base = types.NewChar()
	case sawShort:
		spec.base = types.NewShort()
	case longCount:
		spec.base = types.NewLong(p.tg)
	case sawInt, signedSeen, unsignedSeen:
		spec.base = types.NewInt()
	default:
		p.fatalf("expected a type, got %s", p.tok.Kind)
	}
	if unsignedSeen {
		spec.base.Unsigned = true
	}
	return spec
}

// parseDeclarator parses the pointer/array/function suffixes wrapped around
// base, returning the full type and the declared name (may be empty for
// abstract declarators used by sizeof/casts).
func (p *Parser) parseDeclarator(base *types.Type) (*types.Type, string) {
	t := base
	for p.accept(token.STAR) {
		t = types.NewPtr(p.tg, t)
	}
	name := ""
	if p.at(token.IDENT) {
		name = p.tok.Text()
		p.advance()
	} else if p.accept(token.LPAREN) {
		// Parenthesised declarator, e.g. int (*fp)(int) -- not required by
		// the spec's supported subset; treat the contents as a nested
		// declarator around the same base for simple cases.
		t, name = p.parseDeclarator(t)
		p.expect(token.RPAREN)
	}
	for {
		switch {
		case p.at(token.LBRACKET):
			p.advance()
			length := 0
			if !p.at(token.RBRACKET) {
				length = int(p.parseConstIntExpr())
			}
			p.expect(token.RBRACKET)
			t = types.NewArray(t, length)
		case p.at(token.LPAREN):
			p.advance()
			params, variadic := p.parseParamList()
			p.expect(token.RPAREN)
			paramTypes := make([]*types.Type, len(params))
			paramNames := make([]string, len(params))
			for i, pr := range params {
				paramTypes[i] = pr.Type
				paramNames[i] = pr.Name
			}
			t = types.NewFunction(t, paramTypes, variadic)
			t.ParamNames = paramNames
		default:
			return t, name
		}
	}
}

func (p *Parser) parseParamList() ([]ast.Param, bool) {
	var params []ast.Param
	variadic := false
	if p.at(token.KW_VOID) && p.next.Kind == token.RPAREN {
		p.advance() // "(void)" means no parameters
		return nil, false
	}
	for !p.at(token.RPAREN) {
		if p.accept(token.ELLIPSIS) {
			variadic = true
			break
		}
		spec := p.parseDeclSpecifiers()
		t, name := p.parseDeclarator(spec.base)
		t = types.Decay(p.tg, t)
		params = append(params, ast.Param{Name: name, Type: t})
		if !p.accept(token.COMMA) {
			break
		}
	}
	return params, variadic
}

// parseStructOrUnion parses a struct/union specifier: a tag, a body, or
// both. Forward declarations register an incomplete tag type that later
// fills in by identity (spec.md 3.2 invariant c, 9 "Recursive types").
func (p *Parser) parseStructOrUnion() *types.Type {
	isUnion := p.tok.Kind == token.KW_UNION
	p.advance()
	variant := types.STRUCT
	if isUnion {
		variant = types.UNION
	}

	tag := ""
	if p.at(token.IDENT) {
		tag = p.tok.Text()
		p.advance()
	}

	var t *types.Type
	if tag != "" {
		if existing, ok := p.tags[tag]; ok {
			t = existing
		} else {
			t = types.NewForwardTag(variant, tag)
			p.tags[tag] = t
		}
	} else {
		t = types.NewForwardTag(variant, "")
	}

	if p.accept(token.LBRACE) {
		var members []types.Member
		for !p.at(token.RBRACE) {
			mspec := p.parseDeclSpecifiers()
			for {
				mt, mname := p.parseDeclarator(mspec.base)
				members = append(members, types.Member{Name: mname, Type: mt})
				if !p.accept(token.COMMA) {
					break
				}
			}
			p.expect(token.SEMI)
		}
		p.expect(token.RBRACE)
		p.syncPack()
		t.CompleteStruct(members, p.pack.Current())
	}
	return t
}

func (p *Parser) parseEnum() *types.Type {
	p.advance() // enum
	tag := ""
	if p.at(token.IDENT) {
		tag = p.tok.Text()
		p.advance()
	}
	var t *types.Type
	if tag != "" {
		if existing, ok := p.tags[tag]; ok {
			t = existing
		} else {
			t = types.NewEnum(tag)
			p.tags[tag] = t
		}
	} else {
		t = types.NewEnum("")
	}
	if p.accept(token.LBRACE) {
		next := int64(0)
		for !p.at(token.RBRACE) {
			name := p.expect(token.IDENT).Text()
			if p.accept(token.ASSIGN) {
				next = p.parseConstIntExpr()
			}
			p.enums[name] = next
			next++
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RBRACE)
	}
	return t
}

// parseConstIntExpr evaluates a compile-time integer expression supporting
// `+ - * / % << >>` and integer literals over previously-seen enum
// constants (spec.md 4.3 "Array declarator").
func (p *Parser) parseConstIntExpr() int64 {
	return p.parseConstShift()
}

func (p *Parser) parseConstAdditive() int64 {
	v := p.parseConstMultiplicative()
	for {
		switch p.tok.Kind {
		case token.PLUS:
			p.advance()
			v += p.parseConstMultiplicative()
		case token.MINUS:
			p.advance()
			v -= p.parseConstMultiplicative()
		default:
			return v
		}
	}
}

func (p *Parser) parseConstMultiplicative() int64 {
	v := p.parseConstPrimary()
	for {
		switch p.tok.Kind {
		case token.STAR:
			p.advance()
			v *= p.parseConstPrimary()
		case token.SLASH:
			p.advance()
			r := p.parseConstPrimary()
			if r != 0 {
				v /= r
			}
		case token.PERCENT:
			p.advance()
			r := p.parseConstPrimary()
			if r != 0 {
				v %= r
			}
		default:
			return v
		}
	}
}

func (p *Parser) parseConstShift() int64 {
	v := p.parseConstAdditive()
	for {
		switch p.tok.Kind {
		case token.SHL:
			p.advance()
			v <<= uint(p.parseConstAdditive())
		case token.SHR:
			p.advance()
			v >>= uint(p.parseConstAdditive())
		default:
			return v
		}
	}
}

func (p *Parser) parseConstPrimary() int64 {
	switch p.tok.Kind {
	case token.MINUS:
		p.advance()
		return -p.parseConstPrimary()
	case token.LPAREN:
		p.advance()
		v := p.parseConstIntExpr()
		p.expect(token.RPAREN)
		return v
	case token.INT_LIT:
		v := parseIntLiteralText(p.tok.Text())
		p.advance()
		return v
	case token.IDENT:
		if v, ok := p.enums[p.tok.Text()]; ok {
			p.advance()
			return v
		}
		p.fatalf("undeclared identifier %q in constant expression", p.tok.Text())
	}
	p.fatalf("expected constant expression, got %s", p.tok.Kind)
	return 0
}
