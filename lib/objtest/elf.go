// Package objtest synthesizes small ELF and PE images for tests.
package objtest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// ElfSection is one user section of a synthesized ELF file.
type ElfSection struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Data  []byte
	// Size overrides len(Data); required for SHT_NOBITS.
	Size uint64
	// Offset, when non-zero, places the header at this file offset
	// without writing Data, producing an unreadable section.
	Offset uint64
}

// ElfSymbol is one symbol table entry. Section names a user section;
// empty means SHN_UNDEF.
type ElfSymbol struct {
	Name    string
	Type    elf.SymType
	Bind    elf.SymBind
	Section string
	Value   uint64
	Size    uint64
}

// ELF describes a little-endian ELF file.
type ELF struct {
	Class   elf.Class
	Machine elf.Machine
	Type    elf.Type
	Entry   uint64

	Sections   []ElfSection
	Symbols    []ElfSymbol
	DynSymbols []ElfSymbol

	// TruncateSymtab and TruncateDynsym drop the last byte of .symtab or
	// .dynsym so its size is no longer a whole number of entries.
	TruncateSymtab bool
	TruncateDynsym bool
}

type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	s := &strtab{}
	s.buf.WriteByte(0)
	return s
}

func (s *strtab) add(name string) uint32 {
	if name == "" {
		return 0
	}
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

type elfShdr struct {
	name      uint32
	typ       elf.SectionType
	flags     elf.SectionFlag
	addr      uint64
	off       uint64
	size      uint64
	link      uint32
	info      uint32
	addralign uint64
	entsize   uint64
	data      []byte
}

// Bytes renders the file image: header, section contents, then the
// section header table.
func (e *ELF) Bytes() []byte {
	is64 := e.Class != elf.ELFCLASS32
	ehsize, shentsize, symsize := 52, 40, 16
	if is64 {
		ehsize, shentsize, symsize = 64, 64, 24
	}

	shstr := newStrtab()
	shdrs := []*elfShdr{{}}
	index := map[string]int{}
	for _, s := range e.Sections {
		h := &elfShdr{
			name:      shstr.add(s.Name),
			typ:       s.Type,
			flags:     s.Flags,
			addr:      s.Addr,
			size:      uint64(len(s.Data)),
			addralign: 1,
			data:      s.Data,
		}
		if s.Size != 0 || s.Type == elf.SHT_NOBITS {
			h.size = s.Size
		}
		if s.Offset != 0 {
			h.off = s.Offset
			h.data = nil
		}
		if s.Name != "" {
			index[s.Name] = len(shdrs)
		}
		shdrs = append(shdrs, h)
	}

	addTable := func(symName, strName string, symType elf.SectionType, syms []ElfSymbol) {
		str := newStrtab()
		var buf bytes.Buffer
		buf.Write(make([]byte, symsize))
		for _, sym := range syms {
			name := str.add(sym.Name)
			info := elf.ST_INFO(sym.Bind, sym.Type)
			shndx := uint16(elf.SHN_UNDEF)
			if i, ok := index[sym.Section]; ok {
				shndx = uint16(i)
			}
			if is64 {
				binary.Write(&buf, binary.LittleEndian, elf.Sym64{
					Name: name, Info: info, Shndx: shndx, Value: sym.Value, Size: sym.Size,
				})
			} else {
				binary.Write(&buf, binary.LittleEndian, elf.Sym32{
					Name: name, Info: info, Shndx: shndx, Value: uint32(sym.Value), Size: uint32(sym.Size),
				})
			}
		}
		size := uint64(buf.Len())
		if (symType == elf.SHT_SYMTAB && e.TruncateSymtab) || (symType == elf.SHT_DYNSYM && e.TruncateDynsym) {
			size--
		}
		symIdx := len(shdrs)
		shdrs = append(shdrs, &elfShdr{
			name:      shstr.add(symName),
			typ:       symType,
			size:      size,
			link:      uint32(symIdx + 1),
			info:      1,
			addralign: 8,
			entsize:   uint64(symsize),
			data:      buf.Bytes(),
		})
		shdrs = append(shdrs, &elfShdr{
			name:      shstr.add(strName),
			typ:       elf.SHT_STRTAB,
			size:      uint64(str.buf.Len()),
			addralign: 1,
			data:      str.buf.Bytes(),
		})
	}
	if e.Symbols != nil {
		addTable(".symtab", ".strtab", elf.SHT_SYMTAB, e.Symbols)
	}
	if e.DynSymbols != nil {
		addTable(".dynsym", ".dynstr", elf.SHT_DYNSYM, e.DynSymbols)
	}

	shstrIdx := len(shdrs)
	shstrtab := &elfShdr{name: shstr.add(".shstrtab"), typ: elf.SHT_STRTAB, addralign: 1}
	shdrs = append(shdrs, shstrtab)
	shstrtab.data = shstr.buf.Bytes()
	shstrtab.size = uint64(len(shstrtab.data))

	var body bytes.Buffer
	body.Write(make([]byte, ehsize))
	for _, h := range shdrs[1:] {
		if h.data == nil || h.off != 0 {
			continue
		}
		for body.Len()%8 != 0 {
			body.WriteByte(0)
		}
		h.off = uint64(body.Len())
		body.Write(h.data)
	}
	for body.Len()%8 != 0 {
		body.WriteByte(0)
	}
	shoff := uint64(body.Len())

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(e.Class)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var hdr bytes.Buffer
	if is64 {
		binary.Write(&hdr, binary.LittleEndian, elf.Header64{
			Ident:     ident,
			Type:      uint16(e.Type),
			Machine:   uint16(e.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     e.Entry,
			Shoff:     shoff,
			Ehsize:    uint16(ehsize),
			Shentsize: uint16(shentsize),
			Shnum:     uint16(len(shdrs)),
			Shstrndx:  uint16(shstrIdx),
		})
	} else {
		binary.Write(&hdr, binary.LittleEndian, elf.Header32{
			Ident:     ident,
			Type:      uint16(e.Type),
			Machine:   uint16(e.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     uint32(e.Entry),
			Shoff:     uint32(shoff),
			Ehsize:    uint16(ehsize),
			Shentsize: uint16(shentsize),
			Shnum:     uint16(len(shdrs)),
			Shstrndx:  uint16(shstrIdx),
		})
	}

	out := body.Bytes()
	copy(out, hdr.Bytes())
	var tail bytes.Buffer
	tail.Write(out)
	for _, h := range shdrs {
		if is64 {
			binary.Write(&tail, binary.LittleEndian, elf.Section64{
				Name: h.name, Type: uint32(h.typ), Flags: uint64(h.flags), Addr: h.addr,
				Off: h.off, Size: h.size, Link: h.link, Info: h.info,
				Addralign: h.addralign, Entsize: h.entsize,
			})
		} else {
			binary.Write(&tail, binary.LittleEndian, elf.Section32{
				Name: h.name, Type: uint32(h.typ), Flags: uint32(h.flags), Addr: uint32(h.addr),
				Off: uint32(h.off), Size: uint32(h.size), Link: h.link, Info: h.info,
				Addralign: uint32(h.addralign), Entsize: uint32(h.entsize),
			})
		}
	}
	return tail.Bytes()
}

// WriteFile writes b under t.TempDir() and returns its path.
func WriteFile(t testing.TB, name string, b []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Text is a sample ELF64 x86-64 executable with .text and .data, two
// static function symbols and one dynamic function symbol.
func Text() *ELF {
	return &ELF{
		Class:   elf.ELFCLASS64,
		Machine: elf.EM_X86_64,
		Type:    elf.ET_EXEC,
		Entry:   0x401000,
		Sections: []ElfSection{
			{
				Name:  ".text",
				Type:  elf.SHT_PROGBITS,
				Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR,
				Addr:  0x401000,
				Data:  []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3, 0x90, 0xc3},
			},
			{
				Name:  ".data",
				Type:  elf.SHT_PROGBITS,
				Flags: elf.SHF_ALLOC | elf.SHF_WRITE,
				Addr:  0x402000,
				Data:  []byte{1, 2, 3, 4},
			},
			{
				Name:  ".bss",
				Type:  elf.SHT_NOBITS,
				Flags: elf.SHF_ALLOC | elf.SHF_WRITE,
				Addr:  0x403000,
				Size:  0x100,
			},
			{
				Name: ".comment",
				Type: elf.SHT_PROGBITS,
				Data: []byte("GCC\x00"),
			},
		},
		Symbols: []ElfSymbol{
			{Name: "main", Type: elf.STT_FUNC, Bind: elf.STB_GLOBAL, Section: ".text", Value: 0x401000, Size: 6},
			{Name: "counter", Type: elf.STT_OBJECT, Bind: elf.STB_GLOBAL, Section: ".data", Value: 0x402000, Size: 4},
			{Name: "helper", Type: elf.STT_FUNC, Bind: elf.STB_LOCAL, Section: ".text", Value: 0x401006, Size: 2},
			{Name: "prog.c", Type: elf.STT_FILE, Bind: elf.STB_LOCAL},
		},
		DynSymbols: []ElfSymbol{
			{Name: "puts", Type: elf.STT_FUNC, Bind: elf.STB_GLOBAL},
			{Name: "environ", Type: elf.STT_OBJECT, Bind: elf.STB_GLOBAL},
		},
	}
}
