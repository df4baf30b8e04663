// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package symtest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"
)

// An ELFSymbol is a symbol table entry written by FakeELF.
type ELFSymbol struct {
	Name      string
	Value     uint64
	Type      elf.SymType
	Undefined bool // section index SHN_UNDEF instead of .text
}

type strtab struct {
	data []byte
}

// write appends a null-terminated string and returns its starting index.
func (b *strtab) write(s string) uint32 {
	res := uint32(len(b.data))
	b.data = append(b.data, s...)
	b.data = append(b.data, '\x00')
	return res
}

// FakeELF generates a minimal valid 64-bit ELF executable with a .text
// section of textSize zero bytes at textAddr, a symbol table holding syms
// and, if buildID is not empty, a GNU build ID note.
func FakeELF(t testing.TB, textAddr, textSize uint64, syms []ELFSymbol, buildID []byte) []byte {
	t.Helper()
	var (
		sizeHeader64  = binary.Size(elf.Header64{})
		sizeProg64    = binary.Size(elf.Prog64{})
		sizeSection64 = binary.Size(elf.Section64{})
	)

	// Generate magic to identify as an ELF file.
	var ident [16]uint8
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	ident[elf.EI_OSABI] = uint8(elf.ELFOSABI_NONE)

	var note []byte
	if len(buildID) > 0 {
		note = binary.LittleEndian.AppendUint32(note, 4)
		note = binary.LittleEndian.AppendUint32(note, uint32(len(buildID)))
		note = binary.LittleEndian.AppendUint32(note, 3) // NT_GNU_BUILD_ID
		note = append(note, "GNU\x00"...)
		note = append(note, buildID...)
		for len(note)%4 != 0 {
			note = append(note, 0)
		}
	}

	symNames := strtab{}
	symtab := []elf.Sym64{{}} // first symbol empty by convention
	for _, s := range syms {
		shndx := uint16(1) // .text
		if s.Undefined {
			shndx = uint16(elf.SHN_UNDEF)
		}
		symtab = append(symtab, elf.Sym64{
			Name:  symNames.write(s.Name),
			Info:  elf.ST_INFO(elf.STB_GLOBAL, s.Type),
			Shndx: shndx,
			Value: s.Value,
		})
	}

	const numSections = 6
	// Offset of section contents in the byte stream: after header, program
	// headers, and section headers.
	textOff := uint64(sizeHeader64 + sizeProg64 + numSections*sizeSection64)
	noteOff := textOff + textSize
	symOff := noteOff + uint64(len(note))
	strOff := symOff + uint64(len(symtab)*elf.Sym64Size)

	progs := []elf.Prog64{{
		Type: uint32(elf.PT_LOAD), Flags: uint32(elf.PF_R | elf.PF_X), Off: textOff, Vaddr: textAddr, Paddr: textAddr, Filesz: textSize, Memsz: textSize, Align: 0x1000}}

	secNames := strtab{}
	sections := [numSections]elf.Section64{
		{Name: secNames.write(""), Type: uint32(elf.SHT_NULL)},
		{Name: secNames.write(".text"), Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR), Addr: textAddr, Off: textOff, Size: textSize, Addralign: 16},
		{Name: secNames.write(".note.gnu.build-id"), Type: uint32(elf.SHT_NOTE), Flags: uint64(elf.SHF_ALLOC), Off: noteOff, Size: uint64(len(note)), Addralign: 4},
		{Name: secNames.write(".symtab"), Type: uint32(elf.SHT_SYMTAB), Off: symOff, Size: uint64(len(symtab) * elf.Sym64Size), Link: 4 /*index of .strtab*/, Info: 1, Addralign: 8, Entsize: elf.Sym64Size},
		{Name: secNames.write(".strtab"), Type: uint32(elf.SHT_STRTAB), Off: strOff, Size: uint64(len(symNames.data)), Addralign: 1},
		{},
	}
	shstrName := secNames.write(".shstrtab")
	sections[5] = elf.Section64{Name: shstrName, Type: uint32(elf.SHT_STRTAB), Off: strOff + uint64(len(symNames.data)), Size: uint64(len(secNames.data)), Addralign: 1}

	hdr := elf.Header64{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     textAddr,
		Phoff:     uint64(sizeHeader64),
		Shoff:     uint64(sizeHeader64 + sizeProg64),
		Ehsize:    uint16(sizeHeader64),
		Phentsize: uint16(sizeProg64),
		Phnum:     uint16(len(progs)),
		Shentsize: uint16(sizeSection64),
		Shnum:     numSections,
		Shstrndx:  5, // index of .shstrtab
	}

	// Serialize all headers and sections into a single binary stream.
	var data bytes.Buffer
	for i, b := range []interface{}{hdr, progs, sections, make([]byte, textSize), note, symtab, symNames.data, secNames.data} {
		if err := binary.Write(&data, binary.LittleEndian, b); err != nil {
			t.Fatalf("Write(%v) got err %v, want nil", i, err)
		}
	}
	return data.Bytes()
}
