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

// parseExternalDecl parses one top-level declaration: a typedef, an extern
// or tentative variable declaration, or a function definition (spec.md
// 4.3 "Function definitions").
func (p *Parser) parseExternalDecl() *ast.Node {
	p.syncPack()
	spec := p.parseDeclSpecifiers()

	// A bare "struct S { ... };" or "enum E { ... };" with no declarator.
	if p.at(token.SEMI) {
		p.advance()
		return ast.New(ast.STRUCT_DEF)
	}

	t, name := p.parseDeclarator(spec.base)

	if spec.isTypedef {
		p.typedefs[name] = t
		p.expect(token.SEMI)
		return nil
	}

	if t.Variant == types.FUNCTION {
		p.globals[name] = t
		if p.at(token.LBRACE) {
			fn := p.parseFunctionBody(name, t)
			fn.StorageStatic = spec.isStatic
			return fn
		}
		p.expect(token.SEMI)
		return nil
	}

	decl := ast.New(ast.VAR_DECL)
	decl.Name = name
	decl.Type = t
	decl.Global = true
	decl.StorageExtern = spec.isExtern
	decl.StorageStatic = spec.isStatic
	p.globals[name] = t
	if p.accept(token.ASSIGN) {
		decl.Add(p.parseInitializer())
	}
	for p.accept(token.COMMA) {
		// Additional comma-separated declarators at file scope; each
		// becomes its own sibling VAR_DECL wrapped in a BLOCK so
		// parseExternalDecl still returns a single node.
		nt, nname := p.parseDeclarator(spec.base)
		extra := ast.New(ast.VAR_DECL)
		extra.Name = nname
		extra.Type = nt
		extra.Global = true
		p.globals[nname] = nt
		if p.accept(token.ASSIGN) {
			extra.Add(p.parseInitializer())
		}
		if decl.Kind != ast.BLOCK {
			decl = ast.New(ast.BLOCK, decl)
		}
		decl.Add(extra)
	}
	p.expect(token.SEMI)
	return decl
}

func (p *Parser) parseFunctionBody(name string, fn *types.Type) *ast.Node {
	prevLocals := p.locals
	p.locals = map[string]*ast.Node{}
	defer func() { p.locals = prevLocals }()

	node := ast.New(ast.FUNCTION)
	node.Name = name
	node.Type = fn
	node.Variadic = fn.Variadic
	for i, pt := range fn.Params {
		pname := ""
		if i < len(fn.ParamNames) {
			pname = fn.ParamNames[i]
		}
		node.Params = append(node.Params, ast.Param{Name: pname, Type: pt})
		local := ast.New(ast.VAR_DECL)
		local.Name = pname
		local.Type = pt
		p.locals[pname] = local
	}
	node.Add(p.parseBlock())
	return node
}
