// Package load builds the format-agnostic Binary model of an ELF or
// PE/COFF object file.
package load

import (
	"github.com/ii64/binload/lib/logflags"
	"github.com/ii64/binload/lib/obj"
)

// Load reads the object file at path with DefaultOptions.
func Load(path string) (*Binary, error) {
	return LoadWith(path, DefaultOptions())
}

// LoadWith identifies the file at path, then extracts its function
// symbols and its code and data sections. Detection and section failures
// are fatal. Unreadable symbol tables are recorded in
// Binary.Diagnostics. The file handle is closed before LoadWith returns.
func LoadWith(path string, opts Options) (b *Binary, err error) {
	log := logflags.LoadLogger()

	var o *obj.Object
	o, err = obj.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := o.Close(); cerr != nil {
			log.Warnf("%s: close: %v", path, cerr)
		}
	}()

	b = &Binary{
		Filename:    path,
		Format:      o.Format,
		FormatLabel: o.FormatLabel,
		Arch:        o.Arch,
		ArchLabel:   o.ArchLabel,
		Bits:        o.Bits,
		Entry:       o.Entry,
	}

	b.Symbols, b.Diagnostics, err = extractSymbols(o, opts)
	if err != nil {
		return nil, err
	}

	b.Sections, err = extractSections(o, opts)
	if err != nil {
		b.Unload()
		return nil, err
	}

	if logflags.Load() {
		log.Debugf("%s: %d sections, %d symbols", path, len(b.Sections), len(b.Symbols))
	}
	return b, nil
}
