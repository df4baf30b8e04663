// Package is used in conjunction with github.com/dvyukov/go-fuzz/go-fuzz
// to fuzz symbol names and ELF headers

package symtree

import (
	"debug/elf"
	"testing"

	"github.com/google/symtree/internal/symtest"
)

func TestFuzzInputs(t *testing.T) {
	syms := []symtest.ELFSymbol{{Name: "main", Value: 0x1000, Type: elf.STT_FUNC}}
	elfWithID := symtest.FakeELF(t, 0x1000, 0x10, syms, []byte{0xf0, 0x0d})
	inputs := [][]byte{
		nil,
		[]byte("core::panicking::panic_nounwind::h078e837899a661cc"),
		[]byte("<<A as B>::c as D>::e"),
		[]byte("\x7fELF"),
		symtest.FakeELF(t, 0x1000, 0x10, syms, nil),
		elfWithID,
	}
	for _, in := range inputs {
		Fuzz(in)
	}
	if got := Fuzz(elfWithID); got != 1 {
		t.Errorf("Fuzz(ELF with build ID) = %d, want 1", got)
	}
}
