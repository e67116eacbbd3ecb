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

// Package com writes a flat DOS16 .COM image (spec.md 1 "legacy 16-bit DOS
// support as a secondary target", SPEC_FULL.md 4). A .COM file has no
// container format at all: code and initialized data are simply
// concatenated (BSS is zero-filled after them) and loaded at CS:0x100, with every reference an
// absolute 16-bit near offset from that origin. This mirrors
// gmofishsauce-wut4's lang/yld Linker.relocate phase (merge sections, patch
// fixed-width absolute addresses) with the PE/ELF container stripped away,
// since DOS16 needs none of their section/symbol-table machinery.
package com

import (
	"encoding/binary"
	"fmt"
)

const origin = 0x100

// SectionKind distinguishes code from data; both land in the same flat
// image, code first, so no relocation ever needs to cross a 64KiB segment
// in the small-model subset this target supports.
type SectionKind int

const (
	Code SectionKind = iota
	Data
	BSS
)

type Reloc struct {
	Offset uint32 // offset into this section's data
	Symbol int
	Type   RelType
}

// RelType is the one relocation kind DOS16 needs: an absolute 16-bit near
// offset, patched after the image's final layout is known.
type RelType int

const Abs16 RelType = 0

type Section struct {
	Name   string
	Data   []byte
	Kind   SectionKind
	Relocs []Reloc
}

type Symbol struct {
	Name    string
	Value   uint32
	Section int // 1-based, 0 == undefined
	Global  bool
}

type Object struct {
	Sections []Section
	Symbols  []Symbol
}

func (o *Object) AddSymbol(sym Symbol) int {
	o.Symbols = append(o.Symbols, sym)
	return len(o.Symbols) - 1
}

// Link merges every object's sections into one flat image (code, then
// data; BSS becomes zero-filled tail bytes) and applies all Abs16
// relocations, returning the final .COM image.
func Link(objs []*Object, entry string) ([]byte, error) {
	var code, data, bss []byte
	type placement struct {
		region *[]byte
		base   int
	}
	placements := make([][]placement, len(objs))
	for oi, obj := range objs {
		placements[oi] = make([]placement, len(obj.Sections))
		for si, s := range obj.Sections {
			switch s.Kind {
			case Code:
				placements[oi][si] = placement{&code, len(code)}
				code = append(code, s.Data...)
			case Data:
				placements[oi][si] = placement{&data, len(data)}
				data = append(data, s.Data...)
			case BSS:
				placements[oi][si] = placement{&bss, len(bss)}
				bss = append(bss, make([]byte, len(s.Data))...)
			}
		}
	}

	dataBase := len(code)
	bssBase := dataBase + len(data)

	regionBase := func(region *[]byte) int {
		switch region {
		case &code:
			return 0
		case &data:
			return dataBase
		default:
			return bssBase
		}
	}

	globals := map[string]int{} // name -> absolute offset from origin
	for oi, obj := range objs {
		for _, sym := range obj.Symbols {
			if sym.Section == 0 || !sym.Global {
				continue
			}
			p := placements[oi][sym.Section-1]
			globals[sym.Name] = regionBase(p.region) + p.base + int(sym.Value)
		}
	}

	image := append(append(append([]byte{}, code...), data...), bss...)

	for oi, obj := range objs {
		for si, s := range obj.Sections {
			if len(s.Relocs) == 0 {
				continue
			}
			p := placements[oi][si]
			patchBase := regionBase(p.region) + p.base
			for _, r := range s.Relocs {
				sym := obj.Symbols[r.Symbol]
				var target int
				if sym.Section != 0 {
					sp := placements[oi][sym.Section-1]
					target = regionBase(sp.region) + sp.base + int(sym.Value)
				} else {
					addr, ok := globals[sym.Name]
					if !ok {
						return nil, fmt.Errorf("com: undefined symbol %q", sym.Name)
					}
					target = addr
				}
				patchOff := patchBase + int(r.Offset)
				if patchOff+2 > len(image) {
					return nil, fmt.Errorf("com: relocation at %#x out of bounds", patchOff)
				}
				binary.LittleEndian.PutUint16(image[patchOff:], uint16(origin+target))
			}
		}
	}

	if _, ok := globals[entry]; !ok {
		return nil, fmt.Errorf("com: entry point %q not defined", entry)
	}
	// DOS always begins execution at CS:0x100, i.e. the first byte of the
	// image. The entry symbol is validated here but not used: no jump to
	// it is placed at the image start, so execution begins at whatever
	// code comes first in the image.
	return image, nil
}
