package load

import (
	"golang.org/x/exp/slices"

	"github.com/ii64/binload/lib/obj"
)

type SectionKind int

const (
	SectionNone SectionKind = iota
	SectionCode
	SectionData
)

func (k SectionKind) String() string {
	switch k {
	case SectionNone:
		return "None"
	case SectionCode:
		return "Code"
	case SectionData:
		return "Data"
	}
	return "Unknown"
}

type SymbolKind int

const (
	SymbolUnknown SymbolKind = iota
	SymbolFunction
)

func (k SymbolKind) String() string {
	if k == SymbolFunction {
		return "Function"
	}
	return "Unknown"
}

// unnamedSection replaces a missing section name.
const unnamedSection = "<unnamed>"

// Section is one loadable region of a Binary.
type Section struct {
	// Index is the position of the section in Binary.Sections.
	Index int
	Name  string
	Kind  SectionKind
	Addr  uint64
	Size  uint64
	// Bytes holds exactly Size bytes until the owning Binary is unloaded.
	Bytes []byte
}

// Contains reports whether addr lies in [Addr, Addr+Size).
func (s *Section) Contains(addr uint64) bool {
	return addr >= s.Addr && addr-s.Addr < s.Size
}

// Symbol is a function symbol. Addr is the table value as the format
// reports it.
type Symbol struct {
	Kind    SymbolKind
	Name    string
	Addr    uint64
	Dynamic bool
}

// Binary is the format-agnostic view of one loaded object file.
type Binary struct {
	Filename    string
	Format      obj.Format
	FormatLabel string
	Arch        obj.Arch
	ArchLabel   string
	Bits        int
	Entry       uint64

	Sections []*Section
	Symbols  []Symbol

	// Diagnostics lists symbol tables that could not be read. They do not
	// fail the load.
	Diagnostics []error

	unloaded bool
}

// FindSection returns the first section named name, or nil.
func (b *Binary) FindSection(name string) *Section {
	if b == nil {
		return nil
	}
	i := slices.IndexFunc(b.Sections, func(s *Section) bool {
		return s.Name == name
	})
	if i < 0 {
		return nil
	}
	return b.Sections[i]
}

// TextSection returns the ".text" section, or nil.
func (b *Binary) TextSection() *Section {
	return b.FindSection(".text")
}

// SectionAt returns the first section containing addr, or nil.
func (b *Binary) SectionAt(addr uint64) *Section {
	if b == nil {
		return nil
	}
	i := slices.IndexFunc(b.Sections, func(s *Section) bool {
		return s.Contains(addr)
	})
	if i < 0 {
		return nil
	}
	return b.Sections[i]
}

// Unload releases every section buffer. It is safe on a nil Binary and
// on one already unloaded. Section metadata stays readable.
func (b *Binary) Unload() {
	if b == nil || b.unloaded {
		return
	}
	for _, s := range b.Sections {
		s.Bytes = nil
	}
	b.unloaded = true
}

// Unloaded reports whether Unload ran.
func (b *Binary) Unloaded() bool {
	return b == nil || b.unloaded
}
