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

// Package lexer converts preprocessed C source text into a token stream
// with one-token lookahead (spec.md 4.1).
package lexer

import (
	"strings"

	"github.com/cc64/cc64/internal/diag"
	"github.com/cc64/cc64/internal/token"
)

// Lexer scans a single in-memory source buffer. It never copies source
// bytes; tokens re-slice the buffer.
type Lexer struct {
	file   string
	src    []byte
	pos    int
	line   int
	peeked *token.Token
}

func New(file string, src []byte) *Lexer {
	return &Lexer{file: file, src: src, line: 1}
}

// PeekToken returns the next token without consuming it.
func (l *Lexer) PeekToken() token.Token {
	if l.peeked == nil {
		t := l.scan()
		l.peeked = &t
	}
	return *l.peeked
}

// NextToken consumes and returns the next token. At end of input it returns
// the EOF kind indefinitely (spec.md 4.1).
func (l *Lexer) NextToken() token.Token {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t
	}
	return l.scan()
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool { return isIdentStart(b) || (b >= '0' && b <= '9') }
func isDigit(b byte) bool     { return b >= '0' && b <= '9' }

func (l *Lexer) fatalf(format string, args ...any) {
	panic(diag.LexErrorf(l.file, l.line, format, args...))
}

func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		b := l.src[l.pos]
		switch {
		case b == '\n':
			l.line++
			l.pos++
		case b == ' ' || b == '\t' || b == '\r' || b == '\v' || b == '\f':
			l.pos++
		case b == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case b == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			start := l.line
			l.pos += 2
			closed := false
			for l.pos+1 < len(l.src) {
				if l.src[l.pos] == '*' && l.src[l.pos+1] == '/' {
					l.pos += 2
					closed = true
					break
				}
				if l.src[l.pos] == '\n' {
					l.line++
				}
				l.pos++
			}
			if !closed {
				l.line = start
				l.fatalf("unterminated block comment")
			}
		default:
			return
		}
	}
}

func (l *Lexer) scan() token.Token {
	l.skipTrivia()
	if l.pos >= len(l.src) {
		return token.Token{Kind: token.EOF, Src: l.src, Start: l.pos, Line: l.line}
	}
	start := l.pos
	line := l.line
	b := l.src[l.pos]

	switch {
	case isIdentStart(b):
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		text := string(l.src[start:l.pos])
		kind := token.IDENT
		if kw, ok := token.Lookup(text); ok {
			kind = kw
		}
		return l.tok(kind, start, line)

	case isDigit(b):
		return l.scanNumber(start, line)

	case b == '"':
		return l.scanString(start, line)

	case b == '\'':
		return l.scanChar(start, line)
	}

	return l.scanPunct(start, line)
}

func (l *Lexer) tok(kind token.Kind, start, line int) token.Token {
	return token.Token{Kind: kind, Src: l.src, Start: start, Length: l.pos - start, Line: line}
}

func (l *Lexer) scanNumber(start, line int) token.Token {
	isFloat := false
	if l.src[l.pos] == '0' && l.pos+1 < len(l.src) && (l.src[l.pos+1] == 'x' || l.src[l.pos+1] == 'X') {
		l.pos += 2
		for l.pos < len(l.src) && isHex(l.src[l.pos]) {
			l.pos++
		}
	} else {
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		if l.pos < len(l.src) && l.src[l.pos] == '.' {
			isFloat = true
			l.pos++
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
			isFloat = true
			l.pos++
			if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
				l.pos++
			}
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
	numEnd := l.pos
	suffixStart := l.pos
	for l.pos < len(l.src) && strings.ContainsRune("lLuU", rune(l.src[l.pos])) {
		l.pos++
	}
	suffix := string(l.src[suffixStart:l.pos])
	kind := token.INT_LIT
	if isFloat {
		kind = token.FLOAT_LIT
	}
	t := token.Token{Kind: kind, Src: l.src, Start: start, Length: numEnd - start, Line: line, IntSuffix: suffix}
	return t
}

func isHex(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

var escapeSet = map[byte]bool{'n': true, 't': true, 'r': true, '\\': true, '"': true, '\'': true, '0': true, 'x': true}

func (l *Lexer) scanEscape() {
	// l.pos is at the backslash.
	l.pos++
	if l.pos >= len(l.src) {
		l.fatalf("invalid escape at end of file")
	}
	e := l.src[l.pos]
	if !escapeSet[e] {
		l.fatalf("invalid escape sequence '\\%c'", e)
	}
	l.pos++
	if e == 'x' {
		n := 0
		for l.pos < len(l.src) && isHex(l.src[l.pos]) {
			l.pos++
			n++
		}
		if n == 0 {
			l.fatalf("invalid \\x escape: no hex digits")
		}
	}
}

func (l *Lexer) scanString(start, line int) token.Token {
	l.pos++ // opening quote
	for {
		if l.pos >= len(l.src) {
			l.fatalf("unterminated string literal")
		}
		b := l.src[l.pos]
		if b == '"' {
			l.pos++
			break
		}
		if b == '\n' {
			l.fatalf("unterminated string literal")
		}
		if b == '\\' {
			l.scanEscape()
			continue
		}
		l.pos++
	}
	return l.tok(token.STRING_LIT, start, line)
}

func (l *Lexer) scanChar(start, line int) token.Token {
	l.pos++ // opening quote
	if l.pos >= len(l.src) {
		l.fatalf("unterminated character literal")
	}
	if l.src[l.pos] == '\\' {
		l.scanEscape()
	} else if l.src[l.pos] == '\'' {
		l.fatalf("empty character literal")
	} else {
		l.pos++
	}
	if l.pos >= len(l.src) || l.src[l.pos] != '\'' {
		l.fatalf("unterminated character literal")
	}
	l.pos++
	return l.tok(token.CHAR_LIT, start, line)
}

type punctRule struct {
	text string
	kind token.Kind
}

// Longest-match-first punctuator table.
var punctRules = []punctRule{
	{"...", token.ELLIPSIS},
	{"<<=", token.SHL_EQ}, {">>=", token.SHR_EQ},
	{"<<", token.SHL}, {">>", token.SHR},
	{"<=", token.LE}, {">=", token.GE},
	{"==", token.EQ}, {"!=", token.NE},
	{"&&", token.ANDAND}, {"||", token.OROR},
	{"+=", token.PLUS_EQ}, {"-=", token.MINUS_EQ},
	{"*=", token.STAR_EQ}, {"/=", token.SLASH_EQ}, {"%=", token.PCT_EQ},
	{"&=", token.AMP_EQ}, {"|=", token.PIPE_EQ}, {"^=", token.CARET_EQ},
	{"++", token.INC}, {"--", token.DEC},
	{"->", token.ARROW},
	{"(", token.LPAREN}, {")", token.RPAREN},
	{"{", token.LBRACE}, {"}", token.RBRACE},
	{"[", token.LBRACKET}, {"]", token.RBRACKET},
	{",", token.COMMA}, {";", token.SEMI}, {":", token.COLON}, {"?", token.QUESTION},
	{".", token.DOT},
	{"+", token.PLUS}, {"-", token.MINUS}, {"*", token.STAR}, {"/", token.SLASH}, {"%", token.PERCENT},
	{"<", token.LT}, {">", token.GT},
	{"&", token.AMP}, {"|", token.PIPE}, {"^", token.CARET}, {"~", token.TILDE}, {"!", token.BANG},
	{"=", token.ASSIGN},
}

func (l *Lexer) scanPunct(start, line int) token.Token {
	rest := l.src[l.pos:]
	for _, r := range punctRules {
		if len(rest) >= len(r.text) && string(rest[:len(r.text)]) == r.text {
			l.pos += len(r.text)
			return l.tok(r.kind, start, line)
		}
	}
	l.fatalf("stray character %q", string(rune(l.src[l.pos])))
	panic("unreachable")
}

// Line returns the lexer's current line, used by the preprocessor to track
// __LINE__ across macro expansion.
func (l *Lexer) Line() int { return l.line }
