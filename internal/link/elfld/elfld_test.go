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

package elfld

import (
	"encoding/binary"
	"testing"

	"github.com/cc64/cc64/internal/object/elf"
)

func TestLink_ProducesExecutableELFMagic(t *testing.T) {
	obj := &elf.Object{
		Sections: []elf.Section{
			{Name: ".text", Data: []byte{0xB8, 0x2A, 0, 0, 0, 0xC3}, Kind: elf.Code},
		},
	}
	obj.AddSymbol(elf.Symbol{Name: "_start", Section: 1, Global: true})

	out, err := Link([]*elf.Object{obj}, "_start")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if string(out[0:4]) != "\x7fELF" {
		t.Fatalf("bad magic: %x", out[0:4])
	}
	etype := binary.LittleEndian.Uint16(out[16:18])
	if etype != 2 {
		t.Errorf("e_type = %d, want 2 (ET_EXEC)", etype)
	}
	entry := binary.LittleEndian.Uint64(out[24:32])
	if entry < loadBase {
		t.Errorf("entry point %#x below load base %#x", entry, loadBase)
	}
}

func TestLink_BSSSegmentMemsizeExceedsFilesize(t *testing.T) {
	obj := &elf.Object{
		Sections: []elf.Section{
			{Name: ".text", Data: []byte{0xC3}, Kind: elf.Code},
			{Name: ".bss", Data: make([]byte, 256), Kind: elf.BSS},
		},
	}
	obj.AddSymbol(elf.Symbol{Name: "_start", Section: 1, Global: true})

	out, err := Link([]*elf.Object{obj}, "_start")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	phoff := binary.LittleEndian.Uint64(out[32:40])
	phnum := binary.LittleEndian.Uint16(out[56:58])
	found := false
	for i := 0; i < int(phnum); i++ {
		ph := out[phoff+uint64(i*phSize):]
		filesz := binary.LittleEndian.Uint64(ph[32:40])
		memsz := binary.LittleEndian.Uint64(ph[40:48])
		if memsz > filesz {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a segment with memsz > filesz for the .bss section")
	}
}
