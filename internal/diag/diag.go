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

// Package diag formats the single-line, file:line fatal errors spec.md 7
// requires for lexer, parse/type, and codegen/link failures. Internal
// invariant violations use panic instead, per spec.md 7 ("treated as bugs,
// not user errors").
package diag

import "fmt"

// Kind distinguishes the three fatal-error categories of spec.md 7.
type Kind int

const (
	Lexer Kind = iota
	Parse
	Codegen
)

// Error is a fatal, single-line, file:line compiler diagnostic.
type Error struct {
	Kind Kind
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func Errorf(kind Kind, file string, line int, format string, args ...any) error {
	return &Error{Kind: kind, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func LexErrorf(file string, line int, format string, args ...any) error {
	return Errorf(Lexer, file, line, format, args...)
}

func ParseErrorf(file string, line int, format string, args ...any) error {
	return Errorf(Parse, file, line, format, args...)
}

func CodegenErrorf(file string, line int, format string, args ...any) error {
	return Errorf(Codegen, file, line, format, args...)
}
