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

// Package elfld links one or more ELF64 relocatable objects
// (internal/object/elf) into a static ET_EXEC executable for the SysV
// Linux ABI (spec.md 4.6). It mirrors internal/link/pe's four-phase
// structure (resolve, layout, relocate, serialize), following the same
// gmofishsauce-wut4 lang/yld model, adapted to ELF program headers instead
// of a PE section table.
package elfld

import (
	"encoding/binary"
	"fmt"

	"github.com/cc64/cc64/internal/object/elf"
)

const (
	loadBase = uint64(0x400000)
	pageSize = 0x1000
	ehSize   = 64
	phSize   = 56
)

type mergedSection struct {
	name  string
	exec  bool
	write bool
	isBSS bool
	data  []byte
	addr  uint64
	size  uint64
}

type placement struct {
	section *mergedSection
	offset  uint64
}

// Link resolves symbols across objs, merges their .text/.rodata/.data/.bss
// sections, applies every relocation, and serializes a runnable static
// ELF64 executable whose entry point is the function named entry.
func Link(objs []*elf.Object, entry string) ([]byte, error) {
	sections := map[elf.SectionKind]*mergedSection{
		elf.Code:     {name: ".text", exec: true},
		elf.ReadOnly: {name: ".rodata"},
		elf.Data:     {name: ".data", write: true},
		elf.BSS:      {name: ".bss", write: true, isBSS: true},
	}
	order := []elf.SectionKind{elf.Code, elf.ReadOnly, elf.Data, elf.BSS}

	placements := make([][]placement, len(objs))
	for oi, obj := range objs {
		placements[oi] = make([]placement, len(obj.Sections))
		for si, s := range obj.Sections {
			m := sections[s.Kind]
			placements[oi][si] = placement{section: m, offset: uint64(len(m.data))}
			if m.isBSS {
				m.data = append(m.data, make([]byte, len(s.Data))...)
			} else {
				m.data = append(m.data, s.Data...)
			}
		}
	}

	type resolved struct {
		section *mergedSection
		offset  uint64
	}
	globals := map[string]resolved{}
	for oi, obj := range objs {
		for _, sym := range obj.Symbols {
			if sym.Section == 0 || !sym.Global {
				continue
			}
			p := placements[oi][sym.Section-1]
			globals[sym.Name] = resolved{section: p.section, offset: p.offset + sym.Value}
		}
	}

	// Headers occupy one page; sections start on the next page boundary.
	addr := loadBase + pageSize
	var used []*mergedSection
	for _, k := range order {
		m := sections[k]
		if len(m.data) == 0 {
			continue
		}
		m.addr = addr
		m.size = uint64(len(m.data))
		addr = alignUp(addr+m.size, pageSize)
		used = append(used, m)
	}

	resolve := func(obj *elf.Object, oi int, symIdx int) (resolved, error) {
		if symIdx < 0 || symIdx >= len(obj.Symbols) {
			return resolved{}, fmt.Errorf("elfld: relocation symbol index %d out of range", symIdx)
		}
		sym := obj.Symbols[symIdx]
		if sym.Section != 0 {
			p := placements[oi][sym.Section-1]
			return resolved{section: p.section, offset: p.offset + sym.Value}, nil
		}
		r, ok := globals[sym.Name]
		if !ok {
			return resolved{}, fmt.Errorf("elfld: undefined symbol %q", sym.Name)
		}
		return r, nil
	}

	for oi, obj := range objs {
		for si, s := range obj.Sections {
			if len(s.Relocs) == 0 {
				continue
			}
			p := placements[oi][si]
			for _, r := range s.Relocs {
				target, err := resolve(obj, oi, r.Symbol)
				if err != nil {
					return nil, err
				}
				patchOff := int(p.offset + r.Offset)
				targetAddr := int64(target.section.addr+target.offset) + r.Addend
				switch r.Type {
				case elf.Rel64:
					binary.LittleEndian.PutUint64(p.section.data[patchOff:], uint64(targetAddr))
				case elf.Rel32S:
					binary.LittleEndian.PutUint32(p.section.data[patchOff:], uint32(targetAddr))
				case elf.RelPC32, elf.RelPLT32:
					instrAddr := int64(p.section.addr + p.offset + r.Offset)
					binary.LittleEndian.PutUint32(p.section.data[patchOff:], uint32(targetAddr-instrAddr))
				default:
					return nil, fmt.Errorf("elfld: unsupported relocation type %d", r.Type)
				}
			}
		}
	}

	entrySym, ok := globals[entry]
	if !ok {
		return nil, fmt.Errorf("elfld: entry point %q not defined", entry)
	}
	return serialize(used, entrySym.section.addr+entrySym.offset)
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}

// serialize writes the ELF header, one PT_LOAD program header per merged
// section, and the section contents, each file-offset matching its
// virtual address modulo pageSize (the simplest layout readelf and the
// Linux loader both accept for a statically linked binary).
func serialize(secs []*mergedSection, entry uint64) ([]byte, error) {
	n := len(secs)
	headerSize := uint64(ehSize + n*phSize)
	headerSize = alignUp(headerSize, pageSize)

	fileOffs := make([]uint64, n)
	cur := headerSize
	for i, s := range secs {
		if s.isBSS {
			continue
		}
		cur = alignUp(cur, pageSize)
		fileOffs[i] = cur
		cur += s.size
	}
	total := cur

	out := make([]byte, total)
	out[0], out[1], out[2], out[3] = 0x7f, 'E', 'L', 'F'
	out[4] = 2 // ELFCLASS64
	out[5] = 1 // ELFDATA2LSB
	out[6] = 1 // EV_CURRENT
	putU16(out[16:], 2)    // e_type = ET_EXEC
	putU16(out[18:], 0x3e) // e_machine = EM_X86_64
	putU32(out[20:], 1)    // e_version
	putU64(out[24:], entry)
	putU64(out[32:], ehSize) // e_phoff
	putU64(out[40:], 0)      // e_shoff
	putU32(out[48:], 0)      // e_flags
	putU16(out[52:], ehSize)
	putU16(out[54:], phSize)
	putU16(out[56:], uint16(n))
	putU16(out[58:], 0) // e_shentsize
	putU16(out[60:], 0) // e_shnum
	putU16(out[62:], 0) // e_shstrndx

	for i, s := range secs {
		ph := out[ehSize+i*phSize:]
		putU32(ph[0:], 1) // PT_LOAD
		flags := uint32(4)
		if s.write {
			flags |= 2
		}
		if s.exec {
			flags |= 1
		}
		putU32(ph[4:], flags)
		fileSize := s.size
		if s.isBSS {
			fileSize = 0
		}
		putU64(ph[8:], fileOffs[i])
		putU64(ph[16:], s.addr)
		putU64(ph[24:], s.addr) // p_paddr
		putU64(ph[32:], fileSize)
		putU64(ph[40:], s.size) // p_memsz, larger than p_filesz for .bss
		putU64(ph[48:], pageSize)

		if !s.isBSS {
			copy(out[fileOffs[i]:], s.data)
		}
	}

	return out, nil
}

func putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putU64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
