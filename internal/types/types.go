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

// Package types models C types and the active target ABI: sizes, struct
// member offsets, and the pointer/long widths that vary by target.
package types

import "fmt"

// Variant is the closed set of type shapes (spec 3.2).
type Variant int

const (
	INT Variant = iota
	SHORT
	LONG
	LONG_LONG
	CHAR
	FLOAT
	DOUBLE
	VOID
	PTR
	ARRAY
	STRUCT
	UNION
	ENUM
	FUNCTION
)

// Target carries the parameters that size computation depends on. Per the
// resolved Open Question in spec.md 9, int is always 4 bytes; only long and
// pointer width vary between LP64 (Linux SysV), LLP64 (Win64), and the DOS16
// secondary target.
type Target struct {
	IsWindows bool
	Is32Bit   bool // true only for the DOS16 secondary target
}

func (t Target) LongSize() int {
	if t.Is32Bit {
		return 2
	}
	if t.IsWindows {
		return 4
	}
	return 8
}

func (t Target) PointerSize() int {
	if t.Is32Bit {
		return 2
	}
	return 8
}

// Member is one field of a STRUCT or UNION type.
type Member struct {
	Name   string
	Type   *Type
	Offset int
}

// Type is a heap-owned, tagged record. Once struct-body parsing for a STRUCT
// or UNION completes, a Type is immutable (spec 3.2 invariant a). Forward
// declarations may, however, transition from an empty body to a filled one
// in place so that self-referential members (Type.ptr_to) keep working
// across the declaration — every holder shares the same *Type by identity.
type Type struct {
	Variant Variant
	Size    int

	// PTR
	Pointee *Type

	// ARRAY
	Elem   *Type
	Length int

	// STRUCT / UNION
	Tag       string
	Members   []Member
	Complete  bool // false for a forward-declared, not-yet-filled-in tag

	// ENUM
	EnumTag string

	// FUNCTION
	Return     *Type
	Params     []*Type
	ParamNames []string
	Variadic   bool

	Unsigned bool
	Const    bool
}

func basic(v Variant, size int) *Type { return &Type{Variant: v, Size: size, Complete: true} }

// Basic type constructors for a given target. Int, char, float, double are
// target-independent per spec.md 3.2/9.
func NewInt() *Type      { return basic(INT, 4) }
func NewShort() *Type    { return basic(SHORT, 2) }
func NewChar() *Type     { return basic(CHAR, 1) }
func NewFloat() *Type    { return basic(FLOAT, 4) }
func NewDouble() *Type   { return basic(DOUBLE, 8) }
func NewVoid() *Type     { return basic(VOID, 0) }
func NewLongLong() *Type { return basic(LONG_LONG, 8) }

func NewLong(tg Target) *Type { return basic(LONG, tg.LongSize()) }

func NewPtr(tg Target, pointee *Type) *Type {
	return &Type{Variant: PTR, Size: tg.PointerSize(), Pointee: pointee, Complete: true}
}

func NewArray(elem *Type, length int) *Type {
	return &Type{Variant: ARRAY, Size: elem.Size * length, Elem: elem, Length: length, Complete: true}
}

// NewForwardTag creates an empty, incomplete struct/union type registered
// under tag so that self-referential pointer members can resolve by
// identity before the body is parsed (spec.md 9, "Recursive types").
func NewForwardTag(variant Variant, tag string) *Type {
	return &Type{Variant: variant, Tag: tag, Complete: false}
}

// CompleteStruct fills in a previously forward-declared struct/union type in
// place, computing member offsets under the supplied packing alignment. pack
// of 0 means natural alignment.
func (t *Type) CompleteStruct(members []Member, pack int) {
	if t.Variant != STRUCT && t.Variant != UNION {
		panic("CompleteStruct on non-aggregate type")
	}
	offset := 0
	maxAlign := 1
	maxSize := 0
	for i := range members {
		m := &members[i]
		align := alignOf(m.Type)
		if pack > 0 && align > pack {
			align = pack
		}
		if t.Variant == STRUCT {
			offset = alignUp(offset, align)
			m.Offset = offset
			offset += m.Type.Size
		} else {
			m.Offset = 0
			if m.Type.Size > maxSize {
				maxSize = m.Type.Size
			}
		}
		if align > maxAlign {
			maxAlign = align
		}
	}
	t.Members = members
	if t.Variant == STRUCT {
		t.Size = alignUp(offset, maxAlign)
	} else {
		t.Size = maxSize
	}
	t.Complete = true
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// alignOf returns the natural alignment of a type: its size for scalars,
// capped at 8 for aggregates (x86-64 never needs wider natural alignment for
// the types this compiler supports).
func alignOf(t *Type) int {
	switch t.Variant {
	case ARRAY:
		return alignOf(t.Elem)
	case STRUCT, UNION:
		max := 1
		for _, m := range t.Members {
			if a := alignOf(m.Type); a > max {
				max = a
			}
		}
		return max
	default:
		if t.Size > 8 {
			return 8
		}
		if t.Size == 0 {
			return 1
		}
		return t.Size
	}
}

// NewEnum returns the 4-byte integer representation used for all enums
// (spec.md 3.2).
func NewEnum(tag string) *Type {
	return &Type{Variant: ENUM, Size: 4, EnumTag: tag, Complete: true}
}

func NewFunction(ret *Type, params []*Type, variadic bool) *Type {
	return &Type{Variant: FUNCTION, Return: ret, Params: params, Variadic: variadic, Complete: true}
}

// IsInteger reports whether t participates in integer arithmetic/promotion.
func (t *Type) IsInteger() bool {
	switch t.Variant {
	case INT, SHORT, LONG, LONG_LONG, CHAR, ENUM:
		return true
	}
	return false
}

func (t *Type) IsFloating() bool {
	return t.Variant == FLOAT || t.Variant == DOUBLE
}

func (t *Type) IsArithmetic() bool { return t.IsInteger() || t.IsFloating() }

func (t *Type) IsPointer() bool { return t.Variant == PTR }

// Decay returns the type used when t appears in an expression context: array
// types decay to pointer-to-element.
func Decay(tg Target, t *Type) *Type {
	if t.Variant == ARRAY {
		return NewPtr(tg, t.Elem)
	}
	return t
}

// Equal reports structural equality. The parser does not call it: a
// redeclaration of a name is not checked against its earlier type.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if t.Variant != o.Variant || t.Size != o.Size {
		return false
	}
	switch t.Variant {
	case PTR:
		return t.Pointee.Equal(o.Pointee)
	case ARRAY:
		return t.Length == o.Length && t.Elem.Equal(o.Elem)
	case STRUCT, UNION, ENUM:
		return t.Tag == o.Tag
	case FUNCTION:
		if !t.Return.Equal(o.Return) || t.Variadic != o.Variadic || len(t.Params) != len(o.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t *Type) String() string {
	switch t.Variant {
	case PTR:
		return fmt.Sprintf("%s*", t.Pointee)
	case ARRAY:
		return fmt.Sprintf("%s[%d]", t.Elem, t.Length)
	case STRUCT:
		return fmt.Sprintf("struct %s", t.Tag)
	case UNION:
		return fmt.Sprintf("union %s", t.Tag)
	case ENUM:
		return fmt.Sprintf("enum %s", t.EnumTag)
	default:
		return variantNames[t.Variant]
	}
}

var variantNames = map[Variant]string{
	INT: "int", SHORT: "short", LONG: "long", LONG_LONG: "long long",
	CHAR: "char", FLOAT: "float", DOUBLE: "double", VOID: "void",
	FUNCTION: "function",
}

// PackStack implements the #pragma pack(push,n)/pack(pop)/pack(n) stack
// (spec.md 3.2, 4.2). Current() returns 0 to mean natural alignment.
type PackStack struct {
	stack []int
	cur   int
}

func (p *PackStack) Current() int { return p.cur }

func (p *PackStack) Push(n int) {
	p.stack = append(p.stack, p.cur)
	p.cur = n
}

func (p *PackStack) Pop() {
	if len(p.stack) == 0 {
		p.cur = 0
		return
	}
	p.cur = p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
}

func (p *PackStack) Set(n int) { p.cur = n }
