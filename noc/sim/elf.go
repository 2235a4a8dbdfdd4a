package sim

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"sort"
)

// Segment is a loadable piece of an image.
type Segment struct {
	Name string
	Addr uint32
	Data []byte
	// MemSize, if larger than len(Data), is zero-filled on load.
	MemSize uint32
}

// Program is what BuildELF writes.
type Program struct {
	Entry    uint32
	Segments []Segment
	Symbols  map[string]uint32
}

// Words encodes instructions as a little-endian byte slice.
func Words(ws ...uint32) []byte {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return b
}

type strtab struct {
	buf bytes.Buffer
}

func (s *strtab) add(name string) uint32 {
	if s.buf.Len() == 0 {
		s.buf.WriteByte(0)
	}
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

// BuildELF writes a RISC-V ELF32 executable with one PT_LOAD program header
// and one section per segment, plus a symbol table.
func BuildELF(p Program) []byte {
	const (
		ehSize = 52
		phSize = 32
		shSize = 40
	)
	var shstr, str strtab
	shstr.add("")
	str.add("")

	type section struct {
		hdr  elf.Section32
		data []byte
	}
	var sections []section
	sections = append(sections, section{})

	phoff := uint32(ehSize)
	off := phoff + uint32(len(p.Segments))*phSize
	var phdrs []elf.Prog32
	for _, s := range p.Segments {
		ms := s.MemSize
		if ms < uint32(len(s.Data)) {
			ms = uint32(len(s.Data))
		}
		pflags, sflags := elf.PF_R|elf.PF_W, elf.SHF_ALLOC|elf.SHF_WRITE
		if s.Name == ".text" {
			pflags, sflags = elf.PF_R|elf.PF_X, elf.SHF_ALLOC|elf.SHF_EXECINSTR
		}
		phdrs = append(phdrs, elf.Prog32{
			Type: uint32(elf.PT_LOAD), Off: off, Vaddr: s.Addr, Paddr: s.Addr,
			Filesz: uint32(len(s.Data)), Memsz: ms,
			Flags: uint32(pflags), Align: 4,
		})
		sections = append(sections, section{
			hdr: elf.Section32{
				Name: shstr.add(s.Name), Type: uint32(elf.SHT_PROGBITS),
				Flags: uint32(sflags),
				Addr:  s.Addr, Off: off, Size: uint32(len(s.Data)), Addralign: 4,
			},
			data: s.Data,
		})
		off += uint32(len(s.Data))
		off = (off + 3) &^ 3
	}

	var names []string
	for n := range p.Symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	var symtab bytes.Buffer
	binary.Write(&symtab, binary.LittleEndian, elf.Sym32{})
	for _, n := range names {
		addr := p.Symbols[n]
		shndx := uint16(elf.SHN_ABS)
		for i, s := range p.Segments {
			if addr >= s.Addr && addr < s.Addr+uint32(len(s.Data)) {
				shndx = uint16(i + 1)
			}
		}
		binary.Write(&symtab, binary.LittleEndian, elf.Sym32{
			Name: str.add(n), Value: addr,
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_NOTYPE),
			Shndx: shndx,
		})
	}
	symName := shstr.add(".symtab")
	strName := shstr.add(".strtab")
	shstrName := shstr.add(".shstrtab")
	strIndex := uint32(len(sections) + 1)
	sections = append(sections,
		section{hdr: elf.Section32{Name: symName, Type: uint32(elf.SHT_SYMTAB), Link: strIndex, Info: 1, Entsize: 16, Addralign: 4}, data: symtab.Bytes()},
		section{hdr: elf.Section32{Name: strName, Type: uint32(elf.SHT_STRTAB), Addralign: 1}, data: str.buf.Bytes()},
		section{hdr: elf.Section32{Name: shstrName, Type: uint32(elf.SHT_STRTAB), Addralign: 1}, data: shstr.buf.Bytes()},
	)
	for i := len(sections) - 3; i < len(sections); i++ {
		sections[i].hdr.Off = off
		sections[i].hdr.Size = uint32(len(sections[i].data))
		off += uint32(len(sections[i].data))
		off = (off + 3) &^ 3
	}
	shoff := off

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr := elf.Header32{
		Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(elf.EM_RISCV),
		Version: uint32(elf.EV_CURRENT), Entry: p.Entry,
		Phoff: phoff, Shoff: shoff, Ehsize: ehSize,
		Phentsize: phSize, Phnum: uint16(len(phdrs)),
		Shentsize: shSize, Shnum: uint16(len(sections)), Shstrndx: uint16(len(sections) - 1),
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, hdr)
	for _, ph := range phdrs {
		binary.Write(&out, binary.LittleEndian, ph)
	}
	pad := func() {
		for out.Len()%4 != 0 {
			out.WriteByte(0)
		}
	}
	for _, s := range sections[1:] {
		out.Write(s.data)
		pad()
	}
	for _, s := range sections {
		binary.Write(&out, binary.LittleEndian, s.hdr)
	}
	return out.Bytes()
}
