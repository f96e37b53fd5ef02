package objtest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// PESection is one section of a synthesized PE/COFF file.
type PESection struct {
	Name            string
	Characteristics uint32
	VirtualAddress  uint32
	VirtualSize     uint32
	Data            []byte
	// Offset, when non-zero, is used as PointerToRawData and Data is not
	// written, producing an unreadable section.
	Offset uint32
}

// PESymbol is one COFF symbol. Section is 1-based; 0 means undefined.
type PESymbol struct {
	Name         string
	Section      int16
	Value        uint32
	Type         uint16
	StorageClass uint8
}

// PEExport is one named export; RVA is relative to the image base.
type PEExport struct {
	Name string
	RVA  uint32
}

// PE describes a PE image, or a bare COFF object when Object is set.
type PE struct {
	Machine   uint16
	Object    bool
	ImageBase uint64
	Entry     uint32

	Sections []PESection
	Symbols  []PESymbol

	// Exports are emitted into an ".edata" section at ExportRVA.
	Exports   []PEExport
	ExportRVA uint32
	// SymtabOffset, when non-zero, replaces PointerToSymbolTable.
	SymtabOffset uint32
	// OrdinalBias is added to every entry of the export ordinal table.
	OrdinalBias uint16
}

// COFF symbol type and storage class values used by tests.
const (
	SymTypeFunction   = 0x20
	SymClassExternal  = 2
	SymClassStatic    = 3
	exportDirSize     = 40
	dosHeaderSize     = 0x40
	peFileAlign       = 0x10
	sectionHeaderSize = 40
)

func (p *PE) exportSection() PESection {
	var names bytes.Buffer
	nameRVAs := make([]uint32, len(p.Exports))
	n := uint32(len(p.Exports))
	funcsOff := uint32(exportDirSize)
	namesOff := funcsOff + 4*n
	ordsOff := namesOff + 4*n
	strOff := ordsOff + 2*n
	dllName := strOff
	names.WriteString("test.dll\x00")
	for i, e := range p.Exports {
		nameRVAs[i] = p.ExportRVA + strOff + uint32(names.Len())
		names.WriteString(e.Name)
		names.WriteByte(0)
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	for _, v := range []interface{}{
		uint32(0), uint32(0), uint16(0), uint16(0),
		p.ExportRVA + dllName, uint32(1), n, n,
		p.ExportRVA + funcsOff, p.ExportRVA + namesOff, p.ExportRVA + ordsOff,
	} {
		binary.Write(&buf, le, v)
	}
	for _, e := range p.Exports {
		binary.Write(&buf, le, e.RVA)
	}
	for _, rva := range nameRVAs {
		binary.Write(&buf, le, rva)
	}
	for i := range p.Exports {
		binary.Write(&buf, le, uint16(i)+p.OrdinalBias)
	}
	buf.Write(names.Bytes())
	return PESection{
		Name:            ".edata",
		Characteristics: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
		VirtualAddress:  p.ExportRVA,
		VirtualSize:     uint32(buf.Len()),
		Data:            buf.Bytes(),
	}
}

// Bytes renders the file image.
func (p *PE) Bytes() []byte {
	sections := append([]PESection(nil), p.Sections...)
	var exportDir pe.DataDirectory
	if p.Exports != nil {
		s := p.exportSection()
		exportDir = pe.DataDirectory{VirtualAddress: s.VirtualAddress, Size: s.VirtualSize}
		sections = append(sections, s)
	}

	is64 := p.Machine == pe.IMAGE_FILE_MACHINE_AMD64
	var ohdr bytes.Buffer
	if !p.Object {
		var dirs [16]pe.DataDirectory
		dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = exportDir
		if is64 {
			binary.Write(&ohdr, binary.LittleEndian, pe.OptionalHeader64{
				Magic:               0x20b,
				AddressOfEntryPoint: p.Entry,
				ImageBase:           p.ImageBase,
				SectionAlignment:    0x1000,
				FileAlignment:       peFileAlign,
				NumberOfRvaAndSizes: 16,
				DataDirectory:       dirs,
			})
		} else {
			binary.Write(&ohdr, binary.LittleEndian, pe.OptionalHeader32{
				Magic:               0x10b,
				AddressOfEntryPoint: p.Entry,
				ImageBase:           uint32(p.ImageBase),
				SectionAlignment:    0x1000,
				FileAlignment:       peFileAlign,
				NumberOfRvaAndSizes: 16,
				DataDirectory:       dirs,
			})
		}
	}

	headerStart := 0
	if !p.Object {
		headerStart = dosHeaderSize + 4
	}
	tableEnd := headerStart + binary.Size(pe.FileHeader{}) + ohdr.Len() + sectionHeaderSize*len(sections)

	// Section contents follow the headers; keep the image at least 128
	// bytes so the DOS header read never runs short.
	var data bytes.Buffer
	data.Write(make([]byte, tableEnd))
	for data.Len() < 128 {
		data.WriteByte(0)
	}
	headers := make([]pe.SectionHeader32, len(sections))
	for i, s := range sections {
		var name [8]uint8
		copy(name[:], s.Name)
		h := pe.SectionHeader32{
			Name:            name,
			VirtualSize:     s.VirtualSize,
			VirtualAddress:  s.VirtualAddress,
			SizeOfRawData:   uint32(len(s.Data)),
			Characteristics: s.Characteristics,
		}
		if s.Offset != 0 {
			h.PointerToRawData = s.Offset
		} else if len(s.Data) > 0 {
			for data.Len()%peFileAlign != 0 {
				data.WriteByte(0)
			}
			h.PointerToRawData = uint32(data.Len())
			data.Write(s.Data)
		}
		headers[i] = h
	}

	var symtab bytes.Buffer
	var strs bytes.Buffer
	for _, sym := range p.Symbols {
		var name [8]uint8
		if len(sym.Name) <= 8 {
			copy(name[:], sym.Name)
		} else {
			binary.LittleEndian.PutUint32(name[4:], uint32(4+strs.Len()))
			strs.WriteString(sym.Name)
			strs.WriteByte(0)
		}
		binary.Write(&symtab, binary.LittleEndian, pe.COFFSymbol{
			Name:          name,
			Value:         sym.Value,
			SectionNumber: sym.Section,
			Type:          sym.Type,
			StorageClass:  sym.StorageClass,
		})
	}
	var symOff uint32
	if len(p.Symbols) > 0 {
		for data.Len()%4 != 0 {
			data.WriteByte(0)
		}
		symOff = uint32(data.Len())
		data.Write(symtab.Bytes())
		binary.Write(&data, binary.LittleEndian, uint32(4+strs.Len()))
		data.Write(strs.Bytes())
	}

	var hdr bytes.Buffer
	if !p.Object {
		dos := make([]byte, dosHeaderSize)
		dos[0], dos[1] = 'M', 'Z'
		binary.LittleEndian.PutUint32(dos[0x3c:], dosHeaderSize)
		hdr.Write(dos)
		hdr.Write([]byte{'P', 'E', 0, 0})
	}
	if p.SymtabOffset != 0 {
		symOff = p.SymtabOffset
	}
	binary.Write(&hdr, binary.LittleEndian, pe.FileHeader{
		Machine:              p.Machine,
		NumberOfSections:     uint16(len(sections)),
		PointerToSymbolTable: symOff,
		NumberOfSymbols:      uint32(len(p.Symbols)),
		SizeOfOptionalHeader: uint16(ohdr.Len()),
	})
	hdr.Write(ohdr.Bytes())
	for _, h := range headers {
		binary.Write(&hdr, binary.LittleEndian, h)
	}

	out := data.Bytes()
	copy(out, hdr.Bytes())
	return out
}

// Image is a sample PE32+ x86-64 image with .text, .data, .bss and
// .reloc sections, COFF symbols and two exports (one code, one data).
func Image() *PE {
	return &PE{
		Machine:   pe.IMAGE_FILE_MACHINE_AMD64,
		ImageBase: 0x140000000,
		Entry:     0x1000,
		Sections: []PESection{
			{
				Name:            ".text",
				Characteristics: pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
				VirtualAddress:  0x1000,
				VirtualSize:     6,
				Data:            []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc},
			},
			{
				Name:            ".data",
				Characteristics: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE,
				VirtualAddress:  0x2000,
				VirtualSize:     8,
				Data:            []byte{1, 2, 3, 4, 5, 6, 7, 8},
			},
			{
				Name:            ".bss",
				Characteristics: pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE,
				VirtualAddress:  0x3000,
				VirtualSize:     0x40,
			},
			{
				Name:            ".reloc",
				Characteristics: pe.IMAGE_SCN_MEM_DISCARDABLE | pe.IMAGE_SCN_MEM_READ,
				VirtualAddress:  0x4000,
				VirtualSize:     4,
				Data:            []byte{0, 0, 0, 0},
			},
		},
		Symbols: []PESymbol{
			{Name: "mainCRTStartup", Section: 1, Value: 0, Type: SymTypeFunction, StorageClass: SymClassExternal},
			{Name: "g_value", Section: 2, Value: 4, StorageClass: SymClassExternal},
			{Name: "helper", Section: 1, Value: 4, Type: SymTypeFunction, StorageClass: SymClassStatic},
		},
		Exports: []PEExport{
			{Name: "Exported", RVA: 0x1000},
			{Name: "ExportedData", RVA: 0x2000},
		},
		ExportRVA: 0x5000,
	}
}
