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

// Package ast defines the typed syntax tree produced by the parser and
// walked by the code generator.
package ast

import "github.com/cc64/cc64/internal/types"

// Kind is the closed set of node kinds (spec.md 3.3).
type Kind int

const (
	PROGRAM Kind = iota
	FUNCTION
	BLOCK
	RETURN
	INTEGER
	FLOATLIT
	STRING
	IDENTIFIER
	BINARY_EXPR
	VAR_DECL
	ASSIGN
	COMPOUND_ASSIGN // spec.md 9: first-class node, avoids cloning the LHS
	IF
	WHILE
	FOR
	SWITCH
	CASE
	DEFAULT
	BREAK
	CONTINUE
	CALL
	DEREF
	ADDR_OF
	NEG
	NOT
	BITNOT
	PRE_INC
	PRE_DEC
	POST_INC
	POST_DEC
	MEMBER_ACCESS
	ARRAY_ACCESS
	CAST
	INIT_LIST
	STRUCT_DEF
	UNION_DEF
)

// Node is one element of the AST. Every node carries its resolved type once
// the parser has finished with it (may be nil for statement-only nodes).
type Node struct {
	Kind     Kind
	Type     *types.Type
	Children []*Node
	Line     int

	// Variant payload, one or more fields populated depending on Kind.
	IntValue    int64
	FloatValue  float64
	StrValue    string
	Name        string
	Op          string // operator text for BINARY_EXPR/COMPOUND_ASSIGN/unary kinds
	IsArrow     bool   // MEMBER_ACCESS: s.m vs p->m
	Global      bool   // VAR_DECL
	StorageExtern bool
	StorageStatic bool
	Variadic    bool // FUNCTION
	Params      []Param
	FrameOffset int    // VAR_DECL/param: resolved stack offset, filled by codegen
	StaticLabel string // VAR_DECL: unique .data/.bss symbol for a local static, filled by codegen
	CaseValues  []int64 // SWITCH: pre-pass list, parallel to Children's CASE nodes
}

// Param is a function parameter declaration.
type Param struct {
	Name string
	Type *types.Type
}

func New(kind Kind, children ...*Node) *Node {
	return &Node{Kind: kind, Children: children}
}

func (n *Node) Add(child *Node) { n.Children = append(n.Children, child) }
