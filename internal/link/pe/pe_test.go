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

package pe

import (
	"encoding/binary"
	"testing"

	"github.com/cc64/cc64/internal/object/coff"
)

func TestLink_ProducesMZAndPESignatures(t *testing.T) {
	obj := &coff.Object{
		Sections: []coff.Section{
			{Name: ".text", Data: []byte{0xB8, 0x2A, 0, 0, 0, 0xC3}, Kind: coff.Code}, // mov eax,42; ret
		},
	}
	obj.AddSymbol(coff.Symbol{Name: "main", Section: 1, Global: true})

	out, err := Link([]*coff.Object{obj}, "main")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if out[0] != 'M' || out[1] != 'Z' {
		t.Fatalf("missing MZ signature")
	}
	lfanew := binary.LittleEndian.Uint32(out[0x3c:])
	if out[lfanew] != 'P' || out[lfanew+1] != 'E' {
		t.Errorf("missing PE signature at e_lfanew=%d", lfanew)
	}
}

func TestLink_UndefinedEntrySymbolErrors(t *testing.T) {
	obj := &coff.Object{
		Sections: []coff.Section{{Name: ".text", Data: []byte{0xC3}, Kind: coff.Code}},
	}
	if _, err := Link([]*coff.Object{obj}, "missing"); err == nil {
		t.Fatal("expected an error for an undefined entry symbol")
	}
}

func TestLink_Rel32RelocationPatchesCallDisplacement(t *testing.T) {
	callerObj := &coff.Object{
		Sections: []coff.Section{
			{
				Name: ".text",
				Data: []byte{0xE8, 0, 0, 0, 0, 0xC3}, // call rel32; ret
				Kind: coff.Code,
				Relocs: []coff.Reloc{
					{Offset: 1, Symbol: 0, Type: coff.RelRel32},
				},
			},
		},
	}
	callerObj.AddSymbol(coff.Symbol{Name: "callee"})
	callerObj.Symbols[0].Section = 0 // external reference

	calleeObj := &coff.Object{
		Sections: []coff.Section{
			{Name: ".text", Data: []byte{0xC3}, Kind: coff.Code},
		},
	}
	calleeObj.AddSymbol(coff.Symbol{Name: "callee", Section: 1, Global: true})
	calleeObj.AddSymbol(coff.Symbol{Name: "main", Section: 1, Global: true})

	out, err := Link([]*coff.Object{callerObj, calleeObj}, "main")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty image")
	}
	// callee's ret sits right after the caller's 6-byte .text, so the call's
	// displacement from the end of its rel32 field (offset 5) is 1.
	lfanew := binary.LittleEndian.Uint32(out[0x3c:])
	optSize := uint32(binary.LittleEndian.Uint16(out[lfanew+20:]))
	textHdr := out[lfanew+24+optSize:]
	raw := binary.LittleEndian.Uint32(textHdr[20:24]) // PointerToRawData
	if disp := int32(binary.LittleEndian.Uint32(out[raw+1:])); disp != 1 {
		t.Errorf("call displacement = %d, want 1", disp)
	}
}
