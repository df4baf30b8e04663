// Copyright 2014 Google Inc. All Rights Reserved.
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

// Package binutils provides access to the symbol tables of ELF, Mach-O
// and PE object files.
package binutils

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"sort"

	"github.com/google/symtree/internal/elfexec"
	"github.com/google/symtree/internal/plugin"
)

// A Binutils implements plugin.ObjTool by reading object files directly.
type Binutils struct{}

var (
	elfOpen   = elf.Open
	machoOpen = macho.Open
	peOpen    = pe.Open
)

// Open satisfies the plugin.ObjTool interface.
func (bu *Binutils) Open(name string) (plugin.ObjFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %v", name, err)
	}
	defer f.Close()

	var header [4]byte
	if _, err = io.ReadFull(f, header[:]); err != nil {
		return nil, fmt.Errorf("error reading magic number from %s: %v", name, err)
	}

	elfMagic := string(header[:])

	// Match against supported file types.
	if elfMagic == elf.ELFMAG {
		f, err := openELF(name)
		if err != nil {
			return nil, fmt.Errorf("error reading ELF file %s: %v", name, err)
		}
		return f, nil
	}

	// Mach-O magic numbers can be big or little endian.
	machoMagicLittle := binary.LittleEndian.Uint32(header[:])
	machoMagicBig := binary.BigEndian.Uint32(header[:])

	if machoMagicLittle == macho.Magic32 || machoMagicLittle == macho.Magic64 ||
		machoMagicBig == macho.Magic32 || machoMagicBig == macho.Magic64 {
		f, err := openMachO(name)
		if err != nil {
			return nil, fmt.Errorf("error reading Mach-O file %s: %v", name, err)
		}
		return f, nil
	}
	if machoMagicLittle == macho.MagicFat || machoMagicBig == macho.MagicFat {
		f, err := openFatMachO(name)
		if err != nil {
			return nil, fmt.Errorf("error reading fat Mach-O file %s: %v", name, err)
		}
		return f, nil
	}

	peMagic := string(header[:2])
	if peMagic == "MZ" {
		f, err := openPE(name)
		if err != nil {
			return nil, fmt.Errorf("error reading PE file %s: %v", name, err)
		}
		return f, nil
	}

	return nil, fmt.Errorf("unrecognized binary format: %s", name)
}

// entry is a named address in a section's symbol table.
type entry struct {
	addr uint64
	name string
}

// file holds what is common to all object file formats.
type file struct {
	name    string
	buildID string
	closer  io.Closer
}

func (f *file) Name() string {
	return f.name
}

func (f *file) BuildID() string {
	return f.buildID
}

func (f *file) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// sizeSymbols groups entries by address and sizes each group by the
// distance to the next address, or to end for the last group. Groups
// with no name matching r are dropped after sizing, so that filtering
// does not change the size of the remaining symbols.
func sizeSymbols(file, section string, end uint64, entries []entry, r *regexp.Regexp) []*plugin.Sym {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].addr < entries[j].addr
	})

	var syms []*plugin.Sym
	for i := 0; i < len(entries); {
		addr := entries[i].addr
		var names []string
		j := i
		for ; j < len(entries) && entries[j].addr == addr; j++ {
			if !contains(names, entries[j].name) {
				names = append(names, entries[j].name)
			}
		}
		next := end
		if j < len(entries) {
			next = entries[j].addr
		}
		i = j

		if next <= addr || !matches(r, names) {
			continue
		}
		syms = append(syms, &plugin.Sym{
			Name:    names,
			File:    file,
			Section: section,
			Start:   addr,
			End:     next - 1,
		})
	}
	return syms
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func matches(r *regexp.Regexp, names []string) bool {
	if r == nil {
		return true
	}
	for _, n := range names {
		if r.MatchString(n) {
			return true
		}
	}
	return false
}

type elfFile struct {
	file
	ef *elf.File
}

func openELF(name string) (*elfFile, error) {
	ef, err := elfOpen(name)
	if err != nil {
		return nil, err
	}
	f := &elfFile{file: file{name: name, closer: ef}, ef: ef}
	if id, err := elfexec.BuildID(ef); err == nil && len(id) > 0 {
		f.buildID = hex.EncodeToString(id)
	}
	return f, nil
}

func (f *elfFile) Symbols(section string, r *regexp.Regexp) ([]*plugin.Sym, error) {
	sec, err := elfexec.FindSection(f.ef, section)
	if err != nil {
		return nil, fmt.Errorf("%s: %v (executable sections: %v)", f.name, err, elfexec.ExecutableSections(f.ef))
	}
	syms, err := f.ef.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		syms, err = f.ef.DynamicSymbols()
	}
	if err != nil {
		return nil, fmt.Errorf("no symbol table in %s: %v", f.name, err)
	}

	end := sec.Addr + sec.Size
	var entries []entry
	for _, s := range syms {
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_SECTION, elf.STT_FILE, elf.STT_TLS:
			continue
		}
		if s.Name == "" || s.Section == elf.SHN_UNDEF || s.Value < sec.Addr || s.Value >= end {
			continue
		}
		entries = append(entries, entry{s.Value, s.Name})
	}
	return sizeSymbols(f.name, sec.Name, end, entries, r), nil
}

type machoFile struct {
	file
	mf *macho.File
}

func openMachO(name string) (*machoFile, error) {
	mf, err := machoOpen(name)
	if err != nil {
		return nil, err
	}
	return newMachOFile(name, mf, mf), nil
}

// openFatMachO opens the architecture of a universal binary that matches
// the running program, or the first one if none does.
func openFatMachO(name string) (*machoFile, error) {
	ff, err := macho.OpenFat(name)
	if err != nil {
		return nil, err
	}
	if len(ff.Arches) == 0 {
		ff.Close()
		return nil, fmt.Errorf("no architectures in %s", name)
	}
	arch := ff.Arches[0]
	want := map[string]macho.Cpu{
		"386":   macho.Cpu386,
		"amd64": macho.CpuAmd64,
		"arm":   macho.CpuArm,
		"arm64": macho.CpuArm64,
	}[runtime.GOARCH]
	for _, a := range ff.Arches {
		if a.Cpu == want {
			arch = a
			break
		}
	}
	return newMachOFile(name, arch.File, ff), nil
}

// lcUUID is the Mach-O load command carrying the binary's UUID.
const lcUUID = 0x1b

func newMachOFile(name string, mf *macho.File, closer io.Closer) *machoFile {
	f := &machoFile{file: file{name: name, closer: closer}, mf: mf}
	for _, l := range mf.Loads {
		raw := l.Raw()
		if len(raw) >= 24 && mf.ByteOrder.Uint32(raw) == lcUUID {
			f.buildID = hex.EncodeToString(raw[8:24])
			break
		}
	}
	return f
}

func (f *machoFile) Symbols(section string, r *regexp.Regexp) ([]*plugin.Sym, error) {
	if section == "" {
		section = "__text"
	}
	sec := f.mf.Section(section)
	if sec == nil {
		return nil, fmt.Errorf("no %s section in %s", section, f.name)
	}
	if f.mf.Symtab == nil {
		return nil, fmt.Errorf("no symbol table in %s", f.name)
	}

	end := sec.Addr + sec.Size
	var entries []entry
	for _, s := range f.mf.Symtab.Syms {
		// Skip debugging (stab) entries.
		if s.Type&0xe0 != 0 {
			continue
		}
		if s.Value < sec.Addr || s.Value >= end {
			continue
		}
		name := s.Name
		if len(name) > 1 && name[0] == '_' {
			name = name[1:]
		}
		if name == "" {
			continue
		}
		entries = append(entries, entry{s.Value, name})
	}
	return sizeSymbols(f.name, section, end, entries, r), nil
}

type peFile struct {
	file
	pf *pe.File
}

func openPE(name string) (*peFile, error) {
	pf, err := peOpen(name)
	if err != nil {
		return nil, err
	}
	return &peFile{file: file{name: name, closer: pf}, pf: pf}, nil
}

// COFF storage classes of symbols that name code.
const (
	imageSymClassExternal = 2
	imageSymClassStatic   = 3
)

func (f *peFile) Symbols(section string, r *regexp.Regexp) ([]*plugin.Sym, error) {
	if section == "" {
		section = ".text"
	}
	var sec *pe.Section
	var index int
	for i, s := range f.pf.Sections {
		if s.Name == section {
			sec, index = s, i+1
			break
		}
	}
	if sec == nil {
		return nil, fmt.Errorf("no %s section in %s", section, f.name)
	}
	if len(f.pf.Symbols) == 0 {
		return nil, fmt.Errorf("no symbol table in %s", f.name)
	}

	start := uint64(sec.VirtualAddress)
	end := start + uint64(sec.VirtualSize)
	var entries []entry
	for _, s := range f.pf.Symbols {
		if int(s.SectionNumber) != index || s.Name == "" || s.Name == section {
			continue
		}
		if s.StorageClass != imageSymClassExternal && s.StorageClass != imageSymClassStatic {
			continue
		}
		entries = append(entries, entry{start + uint64(s.Value), s.Name})
	}
	return sizeSymbols(f.name, section, end, entries, r), nil
}
