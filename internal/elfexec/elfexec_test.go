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

package elfexec

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"reflect"
	"strings"
	"testing"

	"github.com/google/symtree/internal/symtest"
)

// encodeNote encodes a single note padded to align.
func encodeNote(order binary.ByteOrder, name string, desc []byte, typ uint32, align int) []byte {
	pad := func(b []byte) []byte {
		for len(b)%align != 0 {
			b = append(b, 0)
		}
		return b
	}
	var b []byte
	for _, v := range []uint32{uint32(len(name) + 1), uint32(len(desc)), typ} {
		var w [4]byte
		order.PutUint32(w[:], v)
		b = append(b, w[:]...)
	}
	b = append(b, name...)
	b = pad(append(b, 0))
	return pad(append(b, desc...))
}

func TestParseNotes(t *testing.T) {
	id := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	for _, tc := range []struct {
		desc    string
		order   binary.ByteOrder
		align   int
		data    []byte
		want    []elfNote
		wantErr string
	}{
		{
			desc:  "little endian",
			order: binary.LittleEndian,
			align: 4,
			data:  encodeNote(binary.LittleEndian, "GNU", id, noteTypeGNUBuildID, 4),
			want:  []elfNote{{Name: "GNU", Desc: id, Type: noteTypeGNUBuildID}},
		},
		{
			desc:  "big endian, two notes",
			order: binary.BigEndian,
			align: 4,
			data: append(encodeNote(binary.BigEndian, "Go", []byte("abc"), 4, 4),
				encodeNote(binary.BigEndian, "GNU", id, noteTypeGNUBuildID, 4)...),
			want: []elfNote{
				{Name: "Go", Desc: []byte("abc"), Type: 4},
				{Name: "GNU", Desc: id, Type: noteTypeGNUBuildID},
			},
		},
		{
			desc:  "eight byte alignment",
			order: binary.LittleEndian,
			align: 8,
			data:  encodeNote(binary.LittleEndian, "GNU", id, noteTypeGNUBuildID, 8),
			want:  []elfNote{{Name: "GNU", Desc: id, Type: noteTypeGNUBuildID}},
		},
		{
			desc:  "missing final padding",
			order: binary.LittleEndian,
			align: 4,
			data:  encodeNote(binary.LittleEndian, "GNU", id, noteTypeGNUBuildID, 1),
			want:  []elfNote{{Name: "GNU", Desc: id, Type: noteTypeGNUBuildID}},
		},
		{
			desc:    "truncated desc",
			order:   binary.LittleEndian,
			align:   4,
			data:    encodeNote(binary.LittleEndian, "GNU", id, noteTypeGNUBuildID, 4)[:16],
			wantErr: "missing desc",
		},
		{
			desc:    "name too long",
			order:   binary.LittleEndian,
			align:   4,
			data:    append(binary.LittleEndian.AppendUint32(nil, maxNoteSize+1), make([]byte, 8)...),
			wantErr: "note name too long",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := parseNotes(bytes.NewReader(tc.data), tc.align, tc.order)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("parseNotes: got err %v, want error containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseNotes: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("parseNotes: got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestGetBuildID(t *testing.T) {
	id := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	syms := []symtest.ELFSymbol{{Name: "main", Value: 0x1000, Type: elf.STT_FUNC}}

	got, err := GetBuildID(bytes.NewReader(symtest.FakeELF(t, 0x1000, 0x10, syms, id)))
	if err != nil {
		t.Fatalf("GetBuildID: %v", err)
	}
	if !bytes.Equal(got, id) {
		t.Errorf("GetBuildID: got %x, want %x", got, id)
	}

	got, err = GetBuildID(bytes.NewReader(symtest.FakeELF(t, 0x1000, 0x10, syms, nil)))
	if err != nil || got != nil {
		t.Errorf("GetBuildID without note: got (%x, %v), want (nil, nil)", got, err)
	}

	if _, err := GetBuildID(bytes.NewReader([]byte("not an ELF file"))); err == nil {
		t.Errorf("GetBuildID of garbage: got nil error")
	}
}

func TestFindSection(t *testing.T) {
	data := symtest.FakeELF(t, 0x4000, 0x20, nil, []byte{1, 2, 3, 4})
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("elf.NewFile: %v", err)
	}

	for _, tc := range []struct {
		name     string
		wantName string
		wantErr  string
	}{
		{"", ".text", ""},
		{".text", ".text", ""},
		{".note.gnu.build-id", ".note.gnu.build-id", ""},
		{".symtab", "", "not loaded"},
		{".data", "", "no .data section"},
	} {
		s, err := FindSection(f, tc.name)
		if tc.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("FindSection(%q): got err %v, want error containing %q", tc.name, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("FindSection(%q): %v", tc.name, err)
			continue
		}
		if s.Name != tc.wantName {
			t.Errorf("FindSection(%q) = %s, want %s", tc.name, s.Name, tc.wantName)
		}
	}

	if got, want := ExecutableSections(f), []string{".text"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExecutableSections() = %v, want %v", got, want)
	}
}
