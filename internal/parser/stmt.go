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
)

func (p *Parser) parseBlock() *ast.Node {
	p.expect(token.LBRACE)
	block := ast.New(ast.BLOCK)
	for !p.at(token.RBRACE) {
		block.Add(p.parseStatement())
	}
	p.expect(token.RBRACE)
	return block
}

func (p *Parser) parseStatement() *ast.Node {
	p.syncPack()
	switch {
	case p.at(token.LBRACE):
		return p.parseBlock()
	case p.at(token.KW_RETURN):
		line := p.tok.Line
		p.advance()
		n := ast.New(ast.RETURN)
		n.Line = line
		if !p.at(token.SEMI) {
			n.Add(p.parseExpr())
		}
		p.expect(token.SEMI)
		return n
	case p.at(token.KW_IF):
		return p.parseIf()
	case p.at(token.KW_WHILE):
		return p.parseWhile()
	case p.at(token.KW_FOR):
		return p.parseFor()
	case p.at(token.KW_SWITCH):
		return p.parseSwitch()
	case p.at(token.KW_CASE):
		p.advance()
		val := p.parseConstIntExpr()
		p.expect(token.COLON)
		n := ast.New(ast.CASE)
		n.IntValue = val
		n.Add(p.parseStatement())
		return n
	case p.at(token.KW_DEFAULT):
		p.advance()
		p.expect(token.COLON)
		n := ast.New(ast.DEFAULT)
		n.Add(p.parseStatement())
		return n
	case p.at(token.KW_BREAK):
		p.advance()
		p.expect(token.SEMI)
		return ast.New(ast.BREAK)
	case p.at(token.KW_CONTINUE):
		p.advance()
		p.expect(token.SEMI)
		return ast.New(ast.CONTINUE)
	case p.at(token.SEMI):
		p.advance()
		return ast.New(ast.BLOCK) // empty statement
	case p.isTypeStart():
		return p.parseLocalDecl()
	default:
		n := p.parseExpr()
		p.expect(token.SEMI)
		return n
	}
}

func (p *Parser) parseIf() *ast.Node {
	p.advance()
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	then := p.parseStatement()
	n := ast.New(ast.IF, cond, then)
	if p.accept(token.KW_ELSE) {
		n.Add(p.parseStatement())
	}
	return n
}

func (p *Parser) parseWhile() *ast.Node {
	p.advance()
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseStatement()
	return ast.New(ast.WHILE, cond, body)
}

func (p *Parser) parseFor() *ast.Node {
	p.advance()
	p.expect(token.LPAREN)
	var init, cond, post *ast.Node
	if p.isTypeStart() {
		init = p.parseLocalDecl()
	} else if !p.at(token.SEMI) {
		init = p.parseExpr()
		p.expect(token.SEMI)
	} else {
		p.expect(token.SEMI)
	}
	if !p.at(token.SEMI) {
		cond = p.parseExpr()
	}
	p.expect(token.SEMI)
	if !p.at(token.RPAREN) {
		post = p.parseExpr()
	}
	p.expect(token.RPAREN)
	body := p.parseStatement()

	n := ast.New(ast.FOR)
	n.Children = []*ast.Node{nilToBlock(init), nilToBlock(cond), nilToBlock(post), body}
	return n
}

func nilToBlock(n *ast.Node) *ast.Node {
	if n == nil {
		return ast.New(ast.BLOCK)
	}
	return n
}

func (p *Parser) parseSwitch() *ast.Node {
	p.advance()
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseBlock()
	n := ast.New(ast.SWITCH, cond, body)
	// Pre-pass over the block's direct children to collect case values, per
	// spec.md 4.4 ("case values are stored per the enclosing switch's child
	// list during a pre-pass over the block").
	for _, child := range body.Children {
		if child.Kind == ast.CASE {
			n.CaseValues = append(n.CaseValues, child.IntValue)
		}
	}
	return n
}

func (p *Parser) parseLocalDecl() *ast.Node {
	spec := p.parseDeclSpecifiers()
	block := ast.New(ast.BLOCK)
	for {
		t, name := p.parseDeclarator(spec.base)
		if spec.isTypedef {
			p.typedefs[name] = t
		} else {
			decl := ast.New(ast.VAR_DECL)
			decl.Name = name
			decl.Type = t
			decl.StorageStatic = spec.isStatic
			p.locals[name] = decl
			if p.accept(token.ASSIGN) {
				decl.Add(p.parseInitializer())
			}
			block.Add(decl)
		}
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.SEMI)
	if len(block.Children) == 1 {
		return block.Children[0]
	}
	return block
}

// parseInitializer parses either a braced initializer list or a plain
// assignment-expression initializer (spec.md 4.3 "Initializer lists").
func (p *Parser) parseInitializer() *ast.Node {
	if p.at(token.LBRACE) {
		return p.parseInitList()
	}
	return p.parseAssignExpr()
}

func (p *Parser) parseInitList() *ast.Node {
	p.expect(token.LBRACE)
	n := ast.New(ast.INIT_LIST)
	for !p.at(token.RBRACE) {
		n.Add(p.parseInitializer())
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RBRACE)
	return n
}
