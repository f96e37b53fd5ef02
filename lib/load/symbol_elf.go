package load

import (
	"debug/elf"

	"github.com/pkg/errors"

	"github.com/ii64/binload/lib/obj"
)

// sttGNUIFunc is STT_GNU_IFUNC, an indirect function resolved at load time.
const sttGNUIFunc = elf.STT_LOOS

func elfSymbolTables(o *obj.Object) []symbolTable {
	return []symbolTable{
		{
			name:       "static",
			upperBound: func() (uint64, error) { return elfSymtabSize(o, elf.SHT_SYMTAB) },
			entries:    func() ([]rawSymbol, error) { return elfSymbols(o.Elf.Symbols()) },
		},
		{
			name:       "dynamic",
			dynamic:    true,
			upperBound: func() (uint64, error) { return elfSymtabSize(o, elf.SHT_DYNSYM) },
			entries:    func() ([]rawSymbol, error) { return elfSymbols(o.Elf.DynamicSymbols()) },
		},
	}
}

// elfSymtabSize validates the section holding a symbol table and returns
// its size. A table with only the reserved null entry counts as empty.
func elfSymtabSize(o *obj.Object, typ elf.SectionType) (uint64, error) {
	s := o.Elf.SectionByType(typ)
	if s == nil {
		return 0, nil
	}
	entsize := uint64(elf.Sym64Size)
	if o.Elf.Class == elf.ELFCLASS32 {
		entsize = elf.Sym32Size
	}
	if s.Entsize != 0 && s.Entsize != entsize {
		return 0, errors.Errorf("%s: entry size %d, want %d", s.Name, s.Entsize, entsize)
	}
	if s.FileSize%entsize != 0 {
		return 0, errors.Errorf("%s: size %d is not a multiple of %d", s.Name, s.FileSize, entsize)
	}
	if s.Offset > uint64(o.Size) || s.FileSize > uint64(o.Size)-s.Offset {
		return 0, errors.Errorf("%s: [%#x, %#x) beyond end of file", s.Name, s.Offset, s.Offset+s.FileSize)
	}
	if s.FileSize <= entsize {
		return 0, nil
	}
	return s.FileSize, nil
}

func elfSymbols(syms []elf.Symbol, err error) ([]rawSymbol, error) {
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw := make([]rawSymbol, 0, len(syms))
	for _, s := range syms {
		typ := elf.ST_TYPE(s.Info)
		raw = append(raw, rawSymbol{
			name:     s.Name,
			addr:     s.Value,
			function: typ == elf.STT_FUNC || typ == sttGNUIFunc,
		})
	}
	return raw, nil
}
