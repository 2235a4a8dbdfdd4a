//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
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
//

// Package elfload reads firmware ELF images and loads them into core
// memory over the NOC.
package elfload

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"
	"io/ioutil"
	"sort"

	"github.com/juju/errors"
)

// Segment is a loadable program segment.
type Segment struct {
	Addr uint64
	Data []byte
	// MemSize is at least len(Data); the rest is zero-filled.
	MemSize uint64
	Exec    bool
}

type Symbol struct {
	Name string
	Addr uint64
	Size uint64
}

// LineInfo is the source position of an address.
type LineInfo struct {
	File string
	Line int
	// PC is the start of the line table row containing the address.
	PC uint64
}

func (l LineInfo) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

type File struct {
	Entry    uint64
	Segments []Segment
	symbols  map[string]Symbol
	dwarf    *dwarf.Data
}

func Open(path string) (*File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	f, err := Parse(bytes.NewReader(data))
	return f, errors.Annotatef(err, "%s", path)
}

func Parse(r io.ReaderAt) (*File, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid ELF")
	}
	defer ef.Close()
	if ef.Class != elf.ELFCLASS32 || ef.Machine != elf.EM_RISCV {
		return nil, errors.NotSupportedf("%s %s image", ef.Class, ef.Machine)
	}
	res := &File{Entry: ef.Entry, symbols: map[string]Symbol{}}
	for _, p := range ef.Progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil && err != io.EOF {
			return nil, errors.Annotatef(err, "segment at 0x%x", p.Paddr)
		}
		res.Segments = append(res.Segments, Segment{Addr: p.Paddr, Data: data, MemSize: p.Memsz, Exec: p.Flags&elf.PF_X != 0})
	}
	sort.Slice(res.Segments, func(i, j int) bool { return res.Segments[i].Addr < res.Segments[j].Addr })
	syms, err := ef.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, errors.Annotatef(err, "symbol table")
	}
	for _, s := range syms {
		if s.Name == "" || elf.ST_TYPE(s.Info) == elf.STT_SECTION || elf.ST_TYPE(s.Info) == elf.STT_FILE {
			continue
		}
		res.symbols[s.Name] = Symbol{Name: s.Name, Addr: s.Value, Size: s.Size}
	}
	// Images without debug info are fine, only line lookups need it.
	if ef.Section(".debug_info") != nil {
		if res.dwarf, err = ef.DWARF(); err != nil {
			return nil, errors.Annotatef(err, "debug info")
		}
	}
	return res, nil
}

func (f *File) Symbols() []Symbol {
	var res []Symbol
	for _, s := range f.symbols {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Addr < res[j].Addr })
	return res
}

func (f *File) SymbolAddress(name string) (uint64, error) {
	s, ok := f.symbols[name]
	if !ok {
		return 0, errors.NotFoundf("symbol %q", name)
	}
	return s.Addr, nil
}

// SymbolAt returns the closest symbol at or below addr.
func (f *File) SymbolAt(addr uint64) (Symbol, error) {
	var best *Symbol
	for _, s := range f.symbols {
		s := s
		if s.Addr <= addr && (best == nil || s.Addr > best.Addr) {
			best = &s
		}
	}
	if best == nil {
		return Symbol{}, errors.NotFoundf("symbol for 0x%x", addr)
	}
	return *best, nil
}

func (f *File) HasDebugInfo() bool {
	return f.dwarf != nil
}

// LineForPC maps pc to a source line using the DWARF line tables.
func (f *File) LineForPC(pc uint64) (LineInfo, error) {
	if f.dwarf == nil {
		return LineInfo{}, errors.NotFoundf("debug info")
	}
	r := f.dwarf.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return LineInfo{}, errors.Trace(err)
		}
		if e == nil {
			break
		}
		if e.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		lr, err := f.dwarf.LineReader(e)
		if err != nil {
			return LineInfo{}, errors.Trace(err)
		}
		if lr == nil {
			continue
		}
		var le dwarf.LineEntry
		if err := lr.SeekPC(pc, &le); err == nil {
			return LineInfo{File: le.File.Name, Line: le.Line, PC: le.Address}, nil
		} else if err != dwarf.ErrUnknownPC {
			return LineInfo{}, errors.Trace(err)
		}
	}
	return LineInfo{}, errors.NotFoundf("line for pc 0x%x", pc)
}
