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

package coff

import (
	"encoding/binary"
	"testing"
)

func TestWrite_HeaderFields(t *testing.T) {
	obj := &Object{
		Sections: []Section{
			{Name: ".text", Data: []byte{0xC3}, Kind: Code},
		},
	}
	obj.AddSymbol(Symbol{Name: "main", Section: 1, Global: true})

	out, err := obj.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(out) < 20 {
		t.Fatalf("output too short: %d bytes", len(out))
	}
	machine := binary.LittleEndian.Uint16(out[0:2])
	if machine != machineAMD64 {
		t.Errorf("machine = %#x, want %#x", machine, machineAMD64)
	}
	numSections := binary.LittleEndian.Uint16(out[2:4])
	if numSections != 1 {
		t.Errorf("NumberOfSections = %d, want 1", numSections)
	}
	numSyms := binary.LittleEndian.Uint32(out[12:16])
	if numSyms != 1 {
		t.Errorf("NumberOfSymbols = %d, want 1", numSyms)
	}
}

func TestWrite_LongNameUsesStringTable(t *testing.T) {
	longName := "this_is_a_very_long_symbol_name_over_eight_bytes"
	obj := &Object{
		Sections: []Section{{Name: ".text", Data: []byte{0x90}, Kind: Code}},
	}
	obj.AddSymbol(Symbol{Name: longName, Section: 1, Global: true})

	out, err := obj.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	found := false
	for i := 0; i+len(longName) <= len(out); i++ {
		if string(out[i:i+len(longName)]) == longName {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("long symbol name not found verbatim in string table")
	}
}

func TestWrite_RelocationEntriesRoundTrip(t *testing.T) {
	obj := &Object{
		Sections: []Section{
			{
				Name: ".text",
				Data: []byte{0xE8, 0, 0, 0, 0}, // call rel32
				Kind: Code,
				Relocs: []Reloc{
					{Offset: 1, Symbol: 0, Type: RelRel32},
				},
			},
		},
	}
	obj.AddSymbol(Symbol{Name: "callee", Section: 0})

	out, err := obj.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}
	// Section 1's header follows the 20-byte file header; read back its one
	// 10-byte relocation entry.
	sh := out[20:]
	if n := binary.LittleEndian.Uint16(sh[32:34]); n != 1 {
		t.Fatalf("NumberOfRelocations = %d, want 1", n)
	}
	rel := out[binary.LittleEndian.Uint32(sh[24:28]):]
	if off := binary.LittleEndian.Uint32(rel[0:4]); off != 1 {
		t.Errorf("relocation VirtualAddress = %d, want 1", off)
	}
	if sym := binary.LittleEndian.Uint32(rel[4:8]); sym != 0 {
		t.Errorf("relocation SymbolTableIndex = %d, want 0", sym)
	}
	if typ := binary.LittleEndian.Uint16(rel[8:10]); typ != RelRel32 {
		t.Errorf("relocation Type = %#x, want %#x (IMAGE_REL_AMD64_REL32)", typ, RelRel32)
	}
}

func TestWrite_BSSSectionHasNoRawData(t *testing.T) {
	obj := &Object{
		Sections: []Section{
			{Name: ".bss", Data: make([]byte, 64), Kind: BSS},
		},
	}
	out, err := obj.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	// A BSS-only object should be much smaller than header+64 raw bytes,
	// since BSS contributes no file content.
	if len(out) > 20+sectionHeaderSize+32 {
		t.Errorf("BSS section unexpectedly wrote raw data, output is %d bytes", len(out))
	}
}
