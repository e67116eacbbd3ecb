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

// Package coff writes Microsoft COFF relocatable object files (spec.md 4.5,
// SPEC_FULL.md 0): the x86-64 object container internal/link/pe consumes to
// build a Windows executable. Field names and layout follow the COFF header
// conventions documented in other_examples' Go-zh-go.old ld/pe.go and
// tinyrange-rtg pe32.go writers, generalized from "write one fixed PE image"
// to "write one relocatable .obj, let the linker do layout".
package coff

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Relocation types for IMAGE_FILE_MACHINE_AMD64 (winnt.h IMAGE_REL_AMD64_*).
const (
	RelAddr64  uint16 = 0x0001 // 64-bit absolute VA
	RelAddr32  uint16 = 0x0002 // 32-bit absolute VA
	RelAddr32NB uint16 = 0x0003 // 32-bit address without image base (RVA)
	RelRel32   uint16 = 0x0004 // 32-bit relative to the next instruction
)

const (
	machineAMD64 uint16 = 0x8664

	characteristicsCode = 0x60000020 // CNT_CODE | MEM_EXECUTE | MEM_READ
	characteristicsData = 0xC0000040 // CNT_INITIALIZED_DATA | MEM_READ | MEM_WRITE
	characteristicsBSS  = 0xC0000080 // CNT_UNINITIALIZED_DATA | MEM_READ | MEM_WRITE
	characteristicsRO   = 0x40000040 // CNT_INITIALIZED_DATA | MEM_READ

	symClassExternal = 2
	symClassStatic   = 3
	symClassUndef    = 0

	sectionHeaderSize   = 40
	relocationEntrySize = 10
	symbolEntrySize     = 18
)

// Reloc is one relocation entry against a section's raw data.
type Reloc struct {
	Offset uint32 // offset into the section's data
	Symbol int    // index into Object.Symbols
	Type   uint16
}

// Section is one named chunk of object code or data.
type Section struct {
	Name       string
	Data       []byte
	Kind       SectionKind
	Relocs     []Reloc
	Alignment  uint32 // bytes; 0 means the default (16)
}

type SectionKind int

const (
	Code SectionKind = iota
	Data
	BSS // Data is the zero-fill length only; len(Data) gives that size
	ReadOnly
)

// Symbol is one entry of the COFF symbol table.
type Symbol struct {
	Name    string
	Value   uint32 // offset within its section, ignored when Section < 0
	Section int    // 1-based index into Object.Sections, 0 for undefined
	Global  bool
}

// Object is the in-memory model of one .obj file, built by the code
// generator's direct-object-emission mode (spec.md 4.4 "Direct object
// mode") and consumed by internal/link/pe.
type Object struct {
	Sections []Section
	Symbols  []Symbol
}

// AddSymbol appends sym and returns its table index, for use as Reloc.Symbol.
func (o *Object) AddSymbol(sym Symbol) int {
	o.Symbols = append(o.Symbols, sym)
	return len(o.Symbols) - 1
}

// Write serializes obj as a COFF object file: file header, section table,
// section data, relocation tables, symbol table, and string table, in that
// order (the layout Microsoft's linker and link.exe-compatible tools expect
// of a plain .obj).
func (o *Object) Write() ([]byte, error) {
	// Build the string table up front so every section/symbol name encoding
	// is fixed before any file offset is computed (a >8-byte name buys a
	// stable 4-byte string-table offset in bytes [4:8] of its 8-byte slot,
	// with bytes [0:4] zero per the COFF "long name" convention).
	var strtab bytes.Buffer
	binary.Write(&strtab, binary.LittleEndian, uint32(0)) // patched once final size is known

	encodeName := func(name string) (buf [8]byte) {
		if len(name) <= 8 {
			copy(buf[:], name)
			return buf
		}
		off := uint32(strtab.Len())
		strtab.WriteString(name)
		strtab.WriteByte(0)
		binary.LittleEndian.PutUint32(buf[4:], off)
		return buf
	}

	sectionNames := make([][8]byte, len(o.Sections))
	for i, s := range o.Sections {
		sectionNames[i] = encodeName(s.Name)
	}
	symbolNames := make([][8]byte, len(o.Symbols))
	for i, sym := range o.Symbols {
		symbolNames[i] = encodeName(sym.Name)
	}
	strBytes := strtab.Bytes()
	binary.LittleEndian.PutUint32(strBytes[0:4], uint32(len(strBytes)))

	headerSize := 20
	sectionTableOff := headerSize
	dataOff := sectionTableOff + len(o.Sections)*sectionHeaderSize

	type placed struct {
		dataFileOff, relocFileOff uint32
		relocCount                uint16
	}
	places := make([]placed, len(o.Sections))

	cur := dataOff
	for i, s := range o.Sections {
		if s.Kind != BSS {
			places[i].dataFileOff = uint32(cur)
			cur += len(s.Data)
		}
	}
	for i, s := range o.Sections {
		if len(s.Relocs) > 0 {
			places[i].relocFileOff = uint32(cur)
			places[i].relocCount = uint16(len(s.Relocs))
			cur += len(s.Relocs) * relocationEntrySize
		}
	}
	symtabOff := cur
	cur += len(o.Symbols) * symbolEntrySize
	strtabOff := cur

	var buf bytes.Buffer
	// COFF file header.
	binary.Write(&buf, binary.LittleEndian, machineAMD64)
	binary.Write(&buf, binary.LittleEndian, uint16(len(o.Sections)))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // TimeDateStamp
	binary.Write(&buf, binary.LittleEndian, uint32(symtabOff))
	binary.Write(&buf, binary.LittleEndian, uint32(len(o.Symbols)))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // SizeOfOptionalHeader
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // Characteristics

	for i, s := range o.Sections {
		buf.Write(sectionNames[i][:])
		var virtSize, rawSize uint32
		if s.Kind == BSS {
			virtSize = uint32(len(s.Data))
		} else {
			virtSize = uint32(len(s.Data))
			rawSize = uint32(len(s.Data))
		}
		binary.Write(&buf, binary.LittleEndian, virtSize) // PhysicalAddress/VirtualSize (unused in .obj)
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // VirtualAddress
		binary.Write(&buf, binary.LittleEndian, rawSize)
		binary.Write(&buf, binary.LittleEndian, places[i].dataFileOff)
		binary.Write(&buf, binary.LittleEndian, places[i].relocFileOff)
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // PointerToLinenumbers
		binary.Write(&buf, binary.LittleEndian, places[i].relocCount)
		binary.Write(&buf, binary.LittleEndian, uint16(0)) // NumberOfLinenumbers
		binary.Write(&buf, binary.LittleEndian, uint32(sectionCharacteristics(s.Kind)))
	}

	for i, s := range o.Sections {
		if s.Kind != BSS {
			if int(places[i].dataFileOff) != buf.Len() {
				return nil, fmt.Errorf("coff: internal layout mismatch for section %q", s.Name)
			}
			buf.Write(s.Data)
		}
	}
	for _, s := range o.Sections {
		if len(s.Relocs) == 0 {
			continue
		}
		for _, r := range s.Relocs {
			binary.Write(&buf, binary.LittleEndian, r.Offset)
			binary.Write(&buf, binary.LittleEndian, uint32(r.Symbol))
			binary.Write(&buf, binary.LittleEndian, r.Type)
		}
	}

	for i, sym := range o.Symbols {
		buf.Write(symbolNames[i][:])
		binary.Write(&buf, binary.LittleEndian, sym.Value)
		binary.Write(&buf, binary.LittleEndian, int16(sym.Section))
		binary.Write(&buf, binary.LittleEndian, uint16(0x20)) // Type: DT_FCN-ish function/object, simplified
		class := byte(symClassStatic)
		if sym.Section == 0 {
			class = symClassUndef
		} else if sym.Global {
			class = symClassExternal
		}
		buf.WriteByte(class)
		buf.WriteByte(0) // NumberOfAuxSymbols
	}

	buf.Write(strBytes)

	if buf.Len() != strtabOff+len(strBytes) {
		return nil, fmt.Errorf("coff: internal layout mismatch (string table at %d, expected %d)", strtabOff, buf.Len()-len(strBytes))
	}
	return buf.Bytes(), nil
}

func sectionCharacteristics(k SectionKind) uint32 {
	switch k {
	case Code:
		return characteristicsCode
	case Data:
		return characteristicsData
	case BSS:
		return characteristicsBSS
	case ReadOnly:
		return characteristicsRO
	}
	return characteristicsData
}
