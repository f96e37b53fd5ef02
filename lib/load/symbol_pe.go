package load

import (
	"bytes"
	"debug/pe"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ii64/binload/lib/obj"
)

const (
	coffSymTypeFunction = 0x20
	coffSymTypeMask     = 0x30

	exportDirectorySize = 40
	maxExportNameLen    = 512
)

func peSymbolTables(o *obj.Object) []symbolTable {
	return []symbolTable{
		{
			name:       "static",
			upperBound: func() (uint64, error) { return coffSymtabSize(o) },
			entries:    func() ([]rawSymbol, error) { return coffSymbols(o), nil },
		},
		{
			name:       "dynamic",
			dynamic:    true,
			upperBound: func() (uint64, error) { return exportDirSize(o) },
			entries:    func() ([]rawSymbol, error) { return exportSymbols(o) },
		},
	}
}

func coffSymtabSize(o *obj.Object) (uint64, error) {
	if o.SymbolsErr != nil {
		return 0, o.SymbolsErr
	}
	return uint64(len(o.Pe.COFFSymbols)) * pe.COFFSymbolSize, nil
}

func coffSymbols(o *obj.Object) []rawSymbol {
	base := o.ImageBase()
	raw := make([]rawSymbol, 0, len(o.Pe.Symbols))
	for _, s := range o.Pe.Symbols {
		addr := uint64(s.Value)
		if n := int(s.SectionNumber); n > 0 && n <= len(o.Pe.Sections) {
			addr += base + uint64(o.Pe.Sections[n-1].VirtualAddress)
		}
		raw = append(raw, rawSymbol{
			name:     s.Name,
			addr:     addr,
			function: s.Type&coffSymTypeMask == coffSymTypeFunction,
		})
	}
	return raw
}

func exportDir(o *obj.Object) (dd pe.DataDirectory, ok bool) {
	dd, ok = o.DataDirectory(pe.IMAGE_DIRECTORY_ENTRY_EXPORT)
	return dd, ok && dd.VirtualAddress != 0 && dd.Size != 0
}

func exportDirSize(o *obj.Object) (uint64, error) {
	dd, ok := exportDir(o)
	if !ok {
		return 0, nil
	}
	if peSectionByRVA(o.Pe, dd.VirtualAddress) == nil {
		return 0, errors.Errorf("export directory at %#x is not in any section", dd.VirtualAddress)
	}
	if dd.Size < exportDirectorySize {
		return 0, errors.Errorf("export directory size %d is too small", dd.Size)
	}
	return uint64(dd.Size), nil
}

type exportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

// exportSymbols decodes the named entries of the export table. Forwarded
// exports are skipped since they have no address in this image.
func exportSymbols(o *obj.Object) ([]rawSymbol, error) {
	dd, ok := exportDir(o)
	if !ok {
		return nil, nil
	}
	b, err := peReadRVA(o.Pe, dd.VirtualAddress, exportDirectorySize)
	if err != nil {
		return nil, errors.Wrap(err, "export directory")
	}
	var dir exportDirectory
	if err = binary.Read(bytes.NewReader(b), binary.LittleEndian, &dir); err != nil {
		return nil, errors.Wrap(err, "export directory")
	}

	funcs, err := peReadUint32s(o.Pe, dir.AddressOfFunctions, dir.NumberOfFunctions)
	if err != nil {
		return nil, errors.Wrap(err, "export address table")
	}
	names, err := peReadUint32s(o.Pe, dir.AddressOfNames, dir.NumberOfNames)
	if err != nil {
		return nil, errors.Wrap(err, "export name table")
	}
	ordb, err := peReadRVA(o.Pe, dir.AddressOfNameOrdinals, uint64(dir.NumberOfNames)*2)
	if err != nil {
		return nil, errors.Wrap(err, "export ordinal table")
	}

	base := o.ImageBase()
	raw := make([]rawSymbol, 0, len(names))
	for i, nameRVA := range names {
		idx := binary.LittleEndian.Uint16(ordb[2*i:])
		if int(idx) >= len(funcs) {
			return nil, errors.Errorf("export %d: ordinal index %d out of range", i, idx)
		}
		rva := funcs[idx]
		if rva >= dd.VirtualAddress && rva-dd.VirtualAddress < dd.Size {
			continue
		}
		name, err := peReadString(o.Pe, nameRVA)
		if err != nil {
			return nil, errors.Wrapf(err, "export %d name", i)
		}
		s := peSectionByRVA(o.Pe, rva)
		raw = append(raw, rawSymbol{
			name:     name,
			addr:     base + uint64(rva),
			function: s != nil && peSectionKind(s) == SectionCode,
		})
	}
	return raw, nil
}

func peSectionByRVA(f *pe.File, rva uint32) *pe.Section {
	for _, s := range f.Sections {
		if rva >= s.VirtualAddress && rva-s.VirtualAddress < max(s.VirtualSize, s.Size) {
			return s
		}
	}
	return nil
}

// peReadRVA reads n bytes of raw section data starting at rva.
func peReadRVA(f *pe.File, rva uint32, n uint64) ([]byte, error) {
	s := peSectionByRVA(f, rva)
	if s == nil {
		return nil, errors.Errorf("rva %#x is not in any section", rva)
	}
	off := rva - s.VirtualAddress
	if uint64(off)+n > uint64(s.Size) {
		return nil, errors.Errorf("rva %#x+%d is beyond the raw data of %s", rva, n, s.Name)
	}
	b := make([]byte, n)
	if n == 0 {
		return b, nil
	}
	if _, err := s.ReadAt(b, int64(off)); err != nil {
		return nil, errors.Wrapf(err, "read %s", s.Name)
	}
	return b, nil
}

func peReadUint32s(f *pe.File, rva, count uint32) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	b, err := peReadRVA(f, rva, uint64(count)*4)
	if err != nil {
		return nil, err
	}
	v := make([]uint32, count)
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return v, nil
}

func peReadString(f *pe.File, rva uint32) (string, error) {
	s := peSectionByRVA(f, rva)
	if s == nil {
		return "", errors.Errorf("rva %#x is not in any section", rva)
	}
	off := rva - s.VirtualAddress
	if off >= s.Size {
		return "", errors.Errorf("rva %#x is beyond the raw data of %s", rva, s.Name)
	}
	b, err := peReadRVA(f, rva, uint64(min(s.Size-off, maxExportNameLen)))
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}
