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

// Package parser implements the recursive-descent parser of spec.md 4.3: it
// walks the preprocessed token stream and produces a typed AST, maintaining
// the typedef, enum-constant, struct/union tag, and symbol tables described
// in spec.md 3.4.
package parser

import (
	"github.com/cc64/cc64/internal/ast"
	"github.com/cc64/cc64/internal/diag"
	"github.com/cc64/cc64/internal/lexer"
	"github.com/cc64/cc64/internal/preprocess"
	"github.com/cc64/cc64/internal/token"
	"github.com/cc64/cc64/internal/types"
)

// Parser is a single instance over one translation unit (spec.md 3.4).
// Typedef, enum-constant, and tag tables are program-global for the
// lifetime of the instance; the local-symbol table resets at each function
// boundary.
type Parser struct {
	lex  *lexer.Lexer
	file string
	tg   types.Target

	tok  token.Token // current token (already consumed from the lexer)
	next token.Token // one-token lookahead

	typedefs map[string]*types.Type
	enums    map[string]int64
	tags     map[string]*types.Type // struct/union/enum share one table (spec.md 9)
	globals  map[string]*types.Type
	locals   map[string]*ast.Node // name -> VAR_DECL node, reset per function

	pack       types.PackStack
	packEvents []preprocess.PackEvent
	packIdx    int

	labelCounter int
}

func New(file string, src []byte, tg types.Target) *Parser {
	p := &Parser{
		lex:      lexer.New(file, src),
		file:     file,
		tg:       tg,
		typedefs: map[string]*types.Type{},
		enums:    map[string]int64{},
		tags:     map[string]*types.Type{},
		globals:  map[string]*types.Type{},
	}
	p.advance()
	p.advance()
	return p
}

// SetPackEvents supplies the #pragma pack(...) change log the preprocessor
// recorded, keyed by output line (SPEC_FULL.md 0, preprocess.PackEvent).
func (p *Parser) SetPackEvents(events []preprocess.PackEvent) { p.packEvents = events }

func (p *Parser) advance() {
	p.tok = p.next
	p.next = p.lex.NextToken()
}

// syncPack advances the pack stack to the value in force at the current
// token's line, consuming any pending pack-change events up to that line.
func (p *Parser) syncPack() {
	for p.packIdx < len(p.packEvents) && p.packEvents[p.packIdx].Line <= p.tok.Line {
		p.pack.Set(p.packEvents[p.packIdx].Value)
		p.packIdx++
	}
}

func (p *Parser) fatalf(format string, args ...any) {
	panic(diag.ParseErrorf(p.file, p.tok.Line, format, args...))
}

func (p *Parser) expect(k token.Kind) token.Token {
	if p.tok.Kind != k {
		p.fatalf("expected %s, got %s", k, p.tok.Kind)
	}
	t := p.tok
	p.advance()
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.tok.Kind == k }

func (p *Parser) accept(k token.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}

// ParseProgram parses the whole translation unit, returning a PROGRAM node.
// It recovers a fatal diag.Error panic raised anywhere in the recursive
// descent and returns it as a normal error, per the teacher's recover-at-
// the-entry-point convention (seen in other_examples' gosubc Assemble).
func (p *Parser) ParseProgram() (prog *ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	prog = ast.New(ast.PROGRAM)
	for !p.at(token.EOF) {
		prog.Add(p.parseExternalDecl())
	}
	return prog, nil
}

func (p *Parser) newLabel() int {
	p.labelCounter++
	return p.labelCounter
}
