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

package com

import "testing"

func TestLink_FlatImageConcatenatesCodeThenData(t *testing.T) {
	obj := &Object{
		Sections: []Section{
			{Name: "code", Data: []byte{0xB8, 0x00, 0x4C, 0xCD, 0x21}, Kind: Code},
			{Name: "data", Data: []byte{'h', 'i'}, Kind: Data},
		},
	}
	obj.AddSymbol(Symbol{Name: "_start", Section: 1, Global: true})

	out, err := Link([]*Object{obj}, "_start")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(out) != 7 {
		t.Fatalf("image length = %d, want 7", len(out))
	}
	if out[5] != 'h' || out[6] != 'i' {
		t.Errorf("data not appended after code: %v", out)
	}
}

func TestLink_UndefinedEntryErrors(t *testing.T) {
	obj := &Object{Sections: []Section{{Name: "code", Data: []byte{0xC3}, Kind: Code}}}
	if _, err := Link([]*Object{obj}, "missing"); err == nil {
		t.Fatal("expected error for undefined entry")
	}
}

func TestLink_Abs16RelocationAddsOrigin(t *testing.T) {
	obj := &Object{
		Sections: []Section{
			{
				Name: "code",
				Data: []byte{0xB8, 0, 0, 0xCD, 0x21},
				Kind: Code,
				Relocs: []Reloc{
					{Offset: 1, Symbol: 0, Type: Abs16},
				},
			},
		},
	}
	obj.AddSymbol(Symbol{Name: "msg", Section: 1, Value: 3, Global: true})

	out, err := Link([]*Object{obj}, "msg")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	got := uint16(out[1]) | uint16(out[2])<<8
	want := uint16(origin + 3)
	if got != want {
		t.Errorf("patched address = %#x, want %#x", got, want)
	}
}
