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

package codegen

import "fmt"

// operand is a syntax-neutral instruction operand. Instructions are built
// in Intel logical order (dst, src, ...) and rendered per-syntax: Intel
// output keeps that order; AT&T output reverses two-operand forms and adds
// '%'/'$' sigils (spec.md 4.4 "Emission modes").
type operand struct {
	kind  string // "reg", "imm", "mem", "label", "riplabel"
	reg   string
	imm   int64
	base  string
	disp  int
	label string
}

func reg(name string) operand  { return operand{kind: "reg", reg: name} }
func imm(v int64) operand      { return operand{kind: "imm", imm: v} }
func label(name string) operand { return operand{kind: "label", label: name} }
func ripLabel(name string) operand { return operand{kind: "riplabel", label: name} }

// mem is a [base+disp] memory operand, e.g. mem("rbp", -8).
func mem(base string, disp int) operand { return operand{kind: "mem", base: base, disp: disp} }

func (o operand) att() string {
	switch o.kind {
	case "reg":
		return "%" + o.reg
	case "imm":
		return fmt.Sprintf("$%d", o.imm)
	case "mem":
		if o.disp == 0 {
			return fmt.Sprintf("(%%%s)", o.base)
		}
		return fmt.Sprintf("%d(%%%s)", o.disp, o.base)
	case "label":
		return o.label
	case "riplabel":
		return fmt.Sprintf("%s(%%rip)", o.label)
	}
	return "?"
}

func (o operand) intel() string {
	switch o.kind {
	case "reg":
		return o.reg
	case "imm":
		return fmt.Sprintf("%d", o.imm)
	case "mem":
		if o.disp == 0 {
			return fmt.Sprintf("[%s]", o.base)
		}
		sign := "+"
		d := o.disp
		if d < 0 {
			sign = "-"
			d = -d
		}
		return fmt.Sprintf("[%s %s %d]", o.base, sign, d)
	case "label":
		return o.label
	case "riplabel":
		return fmt.Sprintf("%s[rip]", o.label)
	}
	return "?"
}
