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

// Package token defines the closed set of lexical token kinds produced by
// the lexer and consumed by the preprocessor and parser.
package token

import "fmt"

// Kind identifies the category of a lexed token.
type Kind int

const (
	EOF Kind = iota // sentinel: end of input

	// Literals and names.
	IDENT
	INT_LIT
	FLOAT_LIT
	STRING_LIT
	CHAR_LIT

	// Keywords.
	KW_INT
	KW_CHAR
	KW_SHORT
	KW_LONG
	KW_FLOAT
	KW_DOUBLE
	KW_VOID
	KW_STRUCT
	KW_UNION
	KW_ENUM
	KW_TYPEDEF
	KW_IF
	KW_ELSE
	KW_WHILE
	KW_FOR
	KW_SWITCH
	KW_CASE
	KW_DEFAULT
	KW_BREAK
	KW_CONTINUE
	KW_RETURN
	KW_SIZEOF
	KW_CONST
	KW_STATIC
	KW_EXTERN
	KW_UNSIGNED
	KW_SIGNED

	// Punctuators.
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	COMMA    // ,
	SEMI     // ;
	COLON    // :
	QUESTION // ?
	ELLIPSIS // ...
	DOT      // .
	ARROW    // ->

	// Operators.
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	SHL      // <<
	SHR      // >>
	LT       // <
	GT       // >
	LE       // <=
	GE       // >=
	EQ       // ==
	NE       // !=
	AMP      // &
	PIPE     // |
	CARET    // ^
	TILDE    // ~
	BANG     // !
	ANDAND   // &&
	OROR     // ||
	ASSIGN   // =
	PLUS_EQ  // +=
	MINUS_EQ // -=
	STAR_EQ  // *=
	SLASH_EQ // /=
	PCT_EQ   // %=
	SHL_EQ   // <<=
	SHR_EQ   // >>=
	AMP_EQ   // &=
	PIPE_EQ  // |=
	CARET_EQ // ^=
	INC      // ++
	DEC      // --
)

var keywords = map[string]Kind{
	"int":      KW_INT,
	"char":     KW_CHAR,
	"short":    KW_SHORT,
	"long":     KW_LONG,
	"float":    KW_FLOAT,
	"double":   KW_DOUBLE,
	"void":     KW_VOID,
	"struct":   KW_STRUCT,
	"union":    KW_UNION,
	"enum":     KW_ENUM,
	"typedef":  KW_TYPEDEF,
	"if":       KW_IF,
	"else":     KW_ELSE,
	"while":    KW_WHILE,
	"for":      KW_FOR,
	"switch":   KW_SWITCH,
	"case":     KW_CASE,
	"default":  KW_DEFAULT,
	"break":    KW_BREAK,
	"continue": KW_CONTINUE,
	"return":   KW_RETURN,
	"sizeof":   KW_SIZEOF,
	"const":    KW_CONST,
	"static":   KW_STATIC,
	"extern":   KW_EXTERN,
	"unsigned": KW_UNSIGNED,
	"signed":   KW_SIGNED,
}

// Lookup returns the keyword Kind for name, or (IDENT, false) if name is not
// a reserved word.
func Lookup(name string) (Kind, bool) {
	k, ok := keywords[name]
	if !ok {
		return IDENT, false
	}
	return k, true
}

// Token carries a lexed unit: its kind, a view into the source buffer, and
// the 1-based line it started on. Tokens never copy source text; Text
// re-slices the original buffer on demand.
type Token struct {
	Kind   Kind
	Src    []byte // the full source buffer this token was lexed from
	Start  int    // byte offset of the first character
	Length int
	Line   int

	// IntSuffix records any L/LL/U suffix seen on an integer literal; it does
	// not change Kind (spec 3.1).
	IntSuffix string
}

// Text returns the token's literal source text.
func (t Token) Text() string {
	return string(t.Src[t.Start : t.Start+t.Length])
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text(), t.Line)
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var kindNames = map[Kind]string{
	EOF:        "EOF",
	IDENT:      "IDENT",
	INT_LIT:    "INT_LIT",
	FLOAT_LIT:  "FLOAT_LIT",
	STRING_LIT: "STRING_LIT",
	CHAR_LIT:   "CHAR_LIT",
	LPAREN:     "(", RPAREN: ")", LBRACE: "{", RBRACE: "}",
	LBRACKET: "[", RBRACKET: "]", COMMA: ",", SEMI: ";",
	COLON: ":", QUESTION: "?", ELLIPSIS: "...", DOT: ".", ARROW: "->",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	SHL: "<<", SHR: ">>", LT: "<", GT: ">", LE: "<=", GE: ">=",
	EQ: "==", NE: "!=", AMP: "&", PIPE: "|", CARET: "^", TILDE: "~",
	BANG: "!", ANDAND: "&&", OROR: "||", ASSIGN: "=",
	PLUS_EQ: "+=", MINUS_EQ: "-=", STAR_EQ: "*=", SLASH_EQ: "/=",
	PCT_EQ: "%=", SHL_EQ: "<<=", SHR_EQ: ">>=", AMP_EQ: "&=",
	PIPE_EQ: "|=", CARET_EQ: "^=", INC: "++", DEC: "--",
}
