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

package elf

import (
	"encoding/binary"
	"testing"
)

func TestWrite_MagicAndMachine(t *testing.T) {
	obj := &Object{
		Sections: []Section{{Name: ".text", Data: []byte{0xC3}, Kind: Code}},
	}
	obj.AddSymbol(Symbol{Name: "main", Section: 1, Global: true})

	out, err := obj.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if string(out[0:4]) != "\x7fELF" {
		t.Fatalf("bad magic: %x", out[0:4])
	}
	if out[4] != 2 {
		t.Errorf("EI_CLASS = %d, want 2 (ELFCLASS64)", out[4])
	}
	machine := binary.LittleEndian.Uint16(out[18:20])
	if machine != 0x3e {
		t.Errorf("e_machine = %#x, want 0x3e (EM_X86_64)", machine)
	}
	etype := binary.LittleEndian.Uint16(out[16:18])
	if etype != 1 {
		t.Errorf("e_type = %d, want 1 (ET_REL)", etype)
	}
}

func TestWrite_SectionHeaderOffsetWithinFile(t *testing.T) {
	obj := &Object{
		Sections: []Section{
			{Name: ".text", Data: []byte{0x90, 0x90, 0xC3}, Kind: Code},
			{Name: ".data", Data: []byte{1, 2, 3, 4}, Kind: Data},
		},
	}
	out, err := obj.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	shoff := binary.LittleEndian.Uint64(out[40:48])
	if shoff == 0 || shoff > uint64(len(out)) {
		t.Errorf("e_shoff = %d out of bounds for %d-byte file", shoff, len(out))
	}
}

func TestWrite_RelocationsEncodeSymbolAndType(t *testing.T) {
	obj := &Object{
		Sections: []Section{
			{
				Name: ".text",
				Data: []byte{0xE8, 0, 0, 0, 0},
				Kind: Code,
				Relocs: []Reloc{
					{Offset: 1, Symbol: 0, Type: RelPLT32, Addend: -4},
				},
			},
		},
	}
	obj.AddSymbol(Symbol{Name: "callee", Section: 0, Global: true})

	out, err := obj.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}
	rela := sectionOfType(t, out, 4) // SHT_RELA
	info := binary.LittleEndian.Uint64(out[rela.offset+8 : rela.offset+16])
	if sym := info >> 32; sym != 1 {
		t.Errorf("r_info symbol = %d, want 1 (callee, after the null symbol)", sym)
	}
	if typ := uint32(info); typ != RelPLT32 {
		t.Errorf("r_info type = %d, want %d (R_X86_64_PLT32)", typ, RelPLT32)
	}
}

type shdr struct {
	offset uint64
	info   uint32
}

// sectionOfType returns the first section header of type shType in out.
func sectionOfType(t *testing.T, out []byte, shType uint32) shdr {
	t.Helper()
	shoff := binary.LittleEndian.Uint64(out[40:48])
	shnum := int(binary.LittleEndian.Uint16(out[60:62]))
	for i := 0; i < shnum; i++ {
		sh := out[shoff+uint64(i)*64:]
		if binary.LittleEndian.Uint32(sh[4:8]) == shType {
			return shdr{offset: binary.LittleEndian.Uint64(sh[24:32]), info: binary.LittleEndian.Uint32(sh[44:48])}
		}
	}
	t.Fatalf("no section of type %d", shType)
	return shdr{}
}

func TestWrite_LocalSymbolsPrecedeGlobalsInSymtab(t *testing.T) {
	obj := &Object{
		Sections: []Section{{Name: ".text", Data: []byte{0x90}, Kind: Code}},
	}
	obj.AddSymbol(Symbol{Name: "extern_fn", Section: 0, Global: true})
	obj.AddSymbol(Symbol{Name: "static_helper", Section: 1, Global: false})

	// Write should not error even when Symbols isn't already partitioned by
	// binding -- Write partitions locals-before-globals itself.
	out, err := obj.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	symtab := sectionOfType(t, out, 2) // SHT_SYMTAB
	if symtab.info != 2 {
		t.Errorf(".symtab sh_info = %d, want 2 (first global after null + one local)", symtab.info)
	}
	for i, wantBind := range []byte{1: 0, 2: 1} {
		if i == 0 {
			continue
		}
		if bind := out[symtab.offset+uint64(i)*24+4] >> 4; bind != wantBind {
			t.Errorf("symtab[%d] binding = %d, want %d", i, bind, wantBind)
		}
	}
}
