package load

import (
	"github.com/pkg/errors"

	"github.com/ii64/binload/lib/logflags"
	"github.com/ii64/binload/lib/obj"
)

// rawSymbol is one decoded symbol table entry before filtering.
type rawSymbol struct {
	name     string
	addr     uint64
	function bool
}

// symbolTable reads one of the two symbol tables of an object.
type symbolTable struct {
	name    string
	dynamic bool
	// upperBound reports the bytes needed to hold the table. Zero means
	// the table is absent or empty.
	upperBound func() (uint64, error)
	entries    func() ([]rawSymbol, error)
}

func symbolTables(o *obj.Object) []symbolTable {
	switch {
	case o.Elf != nil:
		return elfSymbolTables(o)
	case o.Pe != nil:
		return peSymbolTables(o)
	}
	return nil
}

// extractSymbols collects the function symbols of the static table and
// then the dynamic table. A table that cannot be read is skipped and
// recorded in diags; only ErrOutOfMemory aborts.
func extractSymbols(o *obj.Object, opts Options) (syms []Symbol, diags []error, err error) {
	log := logflags.LoadLogger()

	for _, t := range symbolTables(o) {
		var raw []rawSymbol
		raw, err = readSymbolTable(t, opts)
		if err != nil {
			if errors.Is(err, ErrOutOfMemory) {
				return nil, nil, err
			}
			err = errors.Wrapf(err, "%s: %s symbol table", o.Path, t.name)
			log.Warnf("%v", err)
			diags = append(diags, err)
			err = nil
			continue
		}
		n := 0
		for _, r := range raw {
			if !r.function || r.name == "" {
				continue
			}
			syms = append(syms, Symbol{
				Kind:    SymbolFunction,
				Name:    r.name,
				Addr:    r.addr,
				Dynamic: t.dynamic,
			})
			n++
		}
		if logflags.Load() {
			log.Debugf("%s: %d of %d %s symbols are functions", o.Path, n, len(raw), t.name)
		}
	}
	return
}

func readSymbolTable(t symbolTable, opts Options) ([]rawSymbol, error) {
	n, err := t.upperBound()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if err = opts.reserve(n, t.name+" symbol table"); err != nil {
		return nil, err
	}
	return t.entries()
}
