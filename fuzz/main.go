// Package symtree is used in conjunction with github.com/dvyukov/go-fuzz/go-fuzz
// to fuzz the symbol name splitter and the ELF build ID reader.
package symtree

import (
	"bytes"

	"github.com/google/symtree/internal/elfexec"
	"github.com/google/symtree/internal/symname"
)

// Fuzz can be used with https://github.com/dvyukov/go-fuzz to do fuzz testing
// on symbol names and ELF headers.
func Fuzz(data []byte) int {
	symname.Components(string(data))
	if _, err := elfexec.GetBuildID(bytes.NewReader(data)); err != nil {
		return 0
	}
	return 1
}
