// Package elfsym ingests STT_FUNC symbols from 32-bit little-endian ELF
// images for the function tracer, the way galago's internal/emulator
// reads ELF files with the standard library's debug/elf package rather
// than a hand-rolled parser.
package elfsym

import (
	"debug/elf"
	"fmt"
)

// maxNameLen truncates symbol names per the ELF subset fixed by the
// core spec: names longer than 127 bytes are truncated, not rejected.
const maxNameLen = 127

// Func describes one function-typed symbol's address range, or a
// single exact-match address for a non-function (trampoline) symbol.
type Func struct {
	Name       string
	Start      uint32
	End        uint32 // exclusive; End == Start for non-function symbols
	IsFunction bool
}

// Load reads every SHT_SYMTAB entry from path and returns the subset
// this tracer cares about: STT_FUNC symbols (by range) and everything
// else (by exact start address, for trampoline naming).
func Load(path string) ([]Func, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfsym: open %s: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("elfsym: %s is not a 32-bit ELF", path)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("elfsym: %s is not little-endian", path)
	}

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("elfsym: %s has no symbol table: %w", path, err)
	}

	var out []Func
	for _, s := range syms {
		name := s.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen]
		}
		isFunc := elf.ST_TYPE(s.Info) == elf.STT_FUNC
		start := uint32(s.Value)
		end := start
		if isFunc {
			end = start + uint32(s.Size)
		}
		out = append(out, Func{Name: name, Start: start, End: end, IsFunction: isFunc})
	}
	return out, nil
}
