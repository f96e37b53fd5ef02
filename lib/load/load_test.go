package load

import (
	"debug/elf"
	"debug/pe"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ii64/binload/lib/obj"
	"github.com/ii64/binload/lib/objtest"
)

func sectionNames(b *Binary) []string {
	var names []string
	for _, s := range b.Sections {
		names = append(names, s.Name)
	}
	return names
}

func TestLoadELF(t *testing.T) {
	path := objtest.WriteFile(t, "a.out", objtest.Text().Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	defer b.Unload()

	assert.Equal(t, path, b.Filename)
	assert.Equal(t, obj.FormatELF, b.Format)
	assert.Equal(t, "elf64-x86-64", b.FormatLabel)
	assert.Equal(t, obj.ArchX86, b.Arch)
	assert.Equal(t, "i386:x86-64", b.ArchLabel)
	assert.Equal(t, 64, b.Bits)
	assert.Equal(t, uint64(0x401000), b.Entry)
	assert.Empty(t, b.Diagnostics)

	assert.Equal(t, []string{".text", ".data"}, sectionNames(b))
	text := b.TextSection()
	require.NotNil(t, text)
	assert.Equal(t, SectionCode, text.Kind)
	assert.Equal(t, uint64(0x401000), text.Addr)
	assert.Equal(t, uint64(8), text.Size)
	assert.Equal(t, []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3, 0x90, 0xc3}, text.Bytes)

	data := b.FindSection(".data")
	require.NotNil(t, data)
	assert.Equal(t, SectionData, data.Kind)
	assert.Equal(t, 1, data.Index)
	assert.Equal(t, []byte{1, 2, 3, 4}, data.Bytes)

	assert.Equal(t, []Symbol{
		{Kind: SymbolFunction, Name: "main", Addr: 0x401000},
		{Kind: SymbolFunction, Name: "helper", Addr: 0x401006},
		{Kind: SymbolFunction, Name: "puts", Addr: 0, Dynamic: true},
	}, b.Symbols)
}

func TestLoadSectionInvariants(t *testing.T) {
	for name, raw := range map[string][]byte{
		"elf": objtest.Text().Bytes(),
		"pe":  objtest.Image().Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			b, err := Load(objtest.WriteFile(t, name, raw))
			require.NoError(t, err)
			assert.Contains(t, []int{32, 64}, b.Bits)
			for i, s := range b.Sections {
				assert.Equal(t, i, s.Index)
				assert.Len(t, s.Bytes, int(s.Size))
				if s.Size > 0 {
					assert.True(t, s.Contains(s.Addr), s.Name)
				}
			}
		})
	}
}

func TestLoadEntryInsideText(t *testing.T) {
	path := objtest.WriteFile(t, "a.out", objtest.Text().Bytes())
	b, err := Load(path)
	require.NoError(t, err)

	text := b.TextSection()
	require.NotNil(t, text)
	assert.True(t, text.Contains(b.Entry))
	assert.Same(t, text, b.SectionAt(b.Entry))
}

func TestLoadStaticOnly(t *testing.T) {
	e := objtest.Text()
	e.DynSymbols = nil
	path := objtest.WriteFile(t, "static", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)

	require.Len(t, b.Symbols, 2)
	for _, s := range b.Symbols {
		assert.False(t, s.Dynamic)
		assert.Equal(t, SymbolFunction, s.Kind)
	}
	assert.Equal(t, "main", b.Symbols[0].Name)
	assert.Equal(t, "helper", b.Symbols[1].Name)
	assert.Empty(t, b.Diagnostics)
}

func TestLoadStripped(t *testing.T) {
	e := objtest.Text()
	e.Symbols = nil
	e.DynSymbols = nil
	path := objtest.WriteFile(t, "stripped", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, b.Symbols)
	assert.Empty(t, b.Diagnostics)
	assert.Equal(t, []string{".text", ".data"}, sectionNames(b))
}

func TestLoadEmptySymbolTables(t *testing.T) {
	e := objtest.Text()
	e.Symbols = []objtest.ElfSymbol{}
	e.DynSymbols = []objtest.ElfSymbol{}
	path := objtest.WriteFile(t, "empty-tables", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, b.Symbols)
	assert.Empty(t, b.Diagnostics)
}

func TestLoadIFunc(t *testing.T) {
	e := objtest.Text()
	e.Symbols = append(e.Symbols, objtest.ElfSymbol{
		Name: "memcpy", Type: sttGNUIFunc, Bind: elf.STB_GLOBAL, Section: ".text", Value: 0x401004,
	})
	path := objtest.WriteFile(t, "ifunc", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	require.Len(t, b.Symbols, 4)
	assert.Equal(t, "memcpy", b.Symbols[2].Name)
	assert.False(t, b.Symbols[2].Dynamic)
}

func TestLoadZeroSizeSection(t *testing.T) {
	e := objtest.Text()
	e.Sections = append(e.Sections, objtest.ElfSection{
		Name: ".init_array", Type: elf.SHT_INIT_ARRAY, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: 0x404000,
	})
	path := objtest.WriteFile(t, "zero", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	s := b.FindSection(".init_array")
	require.NotNil(t, s)
	assert.Equal(t, uint64(0), s.Size)
	assert.NotNil(t, s.Bytes)
	assert.Empty(t, s.Bytes)
}

func TestLoadUnnamedSection(t *testing.T) {
	e := objtest.Text()
	e.Sections = append(e.Sections, objtest.ElfSection{
		Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC, Addr: 0x405000, Data: []byte{9},
	})
	path := objtest.WriteFile(t, "unnamed", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	s := b.FindSection("<unnamed>")
	require.NotNil(t, s)
	assert.Equal(t, []byte{9}, s.Bytes)
}

func TestLoadExecutableNobits(t *testing.T) {
	e := objtest.Text()
	e.Sections = append(e.Sections, objtest.ElfSection{
		Name: ".tbss", Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0x406000, Size: 16,
	})
	path := objtest.WriteFile(t, "nobits", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	s := b.FindSection(".tbss")
	require.NotNil(t, s)
	assert.Equal(t, SectionCode, s.Kind)
	assert.Equal(t, make([]byte, 16), s.Bytes)
}

func TestLoadOverlappingSections(t *testing.T) {
	e := objtest.Text()
	e.Sections = append(e.Sections, objtest.ElfSection{
		Name: ".alias", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0x401004, Data: []byte{0xc3, 0xc3},
	})
	path := objtest.WriteFile(t, "overlap", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, b.FindSection(".alias"))
	// Both are kept; address lookups return the first in file order.
	assert.Equal(t, ".text", b.SectionAt(0x401005).Name)
}

func TestLoadSectionReadError(t *testing.T) {
	e := objtest.Text()
	e.Sections[1].Offset = 1 << 20
	path := objtest.WriteFile(t, "truncated", e.Bytes())

	b, err := Load(path)
	assert.Nil(t, b)
	require.Error(t, err)

	var se *SectionReadError
	require.True(t, errors.As(err, &se), "%v", err)
	assert.Equal(t, ".data", se.Name)
	assert.Contains(t, err.Error(), "failed to read section '.data'")
}

func TestLoadOutOfMemory(t *testing.T) {
	path := objtest.WriteFile(t, "a.out", objtest.Text().Bytes())

	// The static symbol table is sized first.
	b, err := LoadWith(path, Options{MaxAlloc: 4})
	assert.Nil(t, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfMemory), "%v", err)
	assert.Contains(t, err.Error(), "static symbol table")

	// Without symbols the 8-byte .text is the first buffer over the limit.
	e := objtest.Text()
	e.Symbols = nil
	e.DynSymbols = nil
	path = objtest.WriteFile(t, "stripped", e.Bytes())

	b, err = LoadWith(path, Options{MaxAlloc: 4})
	assert.Nil(t, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfMemory), "%v", err)
	assert.Contains(t, err.Error(), "section .text")

	b, err = LoadWith(path, Options{MaxAlloc: 8})
	require.NoError(t, err)
	assert.Len(t, b.Sections, 2)
}

func TestLoadSectionBeyondFile(t *testing.T) {
	e := objtest.Text()
	e.Symbols = nil
	e.DynSymbols = nil
	e.Sections[1].Size = 0x3ff00000
	path := objtest.WriteFile(t, "huge", e.Bytes())

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	b, err := Load(path)
	runtime.ReadMemStats(&after)

	assert.Nil(t, b)
	var se *SectionReadError
	require.True(t, errors.As(err, &se), "%v", err)
	assert.Equal(t, ".data", se.Name)
	assert.Contains(t, err.Error(), "beyond end of file")
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
}

func TestLoadBadDynamicTable(t *testing.T) {
	e := objtest.Text()
	e.TruncateDynsym = true
	path := objtest.WriteFile(t, "baddyn", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	require.Len(t, b.Diagnostics, 1)
	assert.Contains(t, b.Diagnostics[0].Error(), "dynamic symbol table")
	assert.Equal(t, []Symbol{
		{Kind: SymbolFunction, Name: "main", Addr: 0x401000},
		{Kind: SymbolFunction, Name: "helper", Addr: 0x401006},
	}, b.Symbols)
}

func TestLoadPEBadExportTable(t *testing.T) {
	p := objtest.Image()
	p.OrdinalBias = 100
	path := objtest.WriteFile(t, "badexp.exe", p.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	require.Len(t, b.Diagnostics, 1)
	assert.Contains(t, b.Diagnostics[0].Error(), "dynamic symbol table")
	assert.Contains(t, b.Diagnostics[0].Error(), "ordinal index")
	assert.Equal(t, []Symbol{
		{Kind: SymbolFunction, Name: "mainCRTStartup", Addr: 0x140001000},
		{Kind: SymbolFunction, Name: "helper", Addr: 0x140001004},
	}, b.Symbols)
}

func TestLoadPEBadSymbolTable(t *testing.T) {
	p := objtest.Image()
	p.SymtabOffset = 0x7fffff00
	path := objtest.WriteFile(t, "badsym.exe", p.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	require.Len(t, b.Diagnostics, 1)
	assert.Contains(t, b.Diagnostics[0].Error(), "static symbol table")
	assert.Equal(t, []string{".text", ".data", ".edata"}, sectionNames(b))
	assert.Equal(t, []Symbol{
		{Kind: SymbolFunction, Name: "Exported", Addr: 0x140001000, Dynamic: true},
	}, b.Symbols)
}

func TestLoadBadSymbolTable(t *testing.T) {
	e := objtest.Text()
	e.TruncateSymtab = true
	path := objtest.WriteFile(t, "badsym", e.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	require.Len(t, b.Diagnostics, 1)
	assert.Contains(t, b.Diagnostics[0].Error(), "static symbol table")
	// The dynamic table still loads.
	assert.Equal(t, []Symbol{{Kind: SymbolFunction, Name: "puts", Dynamic: true}}, b.Symbols)
	assert.NotEmpty(t, b.Sections)
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, obj.ErrNotFound))

	path := objtest.WriteFile(t, "script", []byte("#!/bin/sh\n"))
	_, err = Load(path)
	assert.True(t, errors.Is(err, obj.ErrUnrecognizedFormat))

	e := objtest.Text()
	e.Machine = elf.EM_AARCH64
	path = objtest.WriteFile(t, "arm64", e.Bytes())
	_, err = Load(path)
	assert.True(t, errors.Is(err, obj.ErrUnsupportedArch))
}

func TestLoadUnloadLoad(t *testing.T) {
	path := objtest.WriteFile(t, "a.out", objtest.Text().Bytes())

	first, err := Load(path)
	require.NoError(t, err)
	first.Unload()
	assert.True(t, first.Unloaded())

	second, err := Load(path)
	require.NoError(t, err)
	defer second.Unload()

	assert.Equal(t, first.Symbols, second.Symbols)
	assert.Equal(t, sectionNames(first), sectionNames(second))
	for _, s := range first.Sections {
		assert.Nil(t, s.Bytes)
	}
	for _, s := range second.Sections {
		assert.Len(t, s.Bytes, int(s.Size))
	}
}

func TestLoadPEImage(t *testing.T) {
	path := objtest.WriteFile(t, "a.exe", objtest.Image().Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	defer b.Unload()

	assert.Equal(t, obj.FormatPE, b.Format)
	assert.Equal(t, "pei-x86-64", b.FormatLabel)
	assert.Equal(t, uint64(0x140001000), b.Entry)
	assert.Empty(t, b.Diagnostics)

	assert.Equal(t, []string{".text", ".data", ".edata"}, sectionNames(b))
	text := b.TextSection()
	require.NotNil(t, text)
	assert.Equal(t, SectionCode, text.Kind)
	assert.Equal(t, uint64(0x140001000), text.Addr)
	assert.Equal(t, uint64(6), text.Size)
	assert.Equal(t, []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3}, text.Bytes)
	assert.True(t, text.Contains(b.Entry))

	assert.Equal(t, SectionData, b.FindSection(".data").Kind)
	assert.Nil(t, b.FindSection(".bss"))
	assert.Nil(t, b.FindSection(".reloc"))

	assert.Equal(t, []Symbol{
		{Kind: SymbolFunction, Name: "mainCRTStartup", Addr: 0x140001000},
		{Kind: SymbolFunction, Name: "helper", Addr: 0x140001004},
		{Kind: SymbolFunction, Name: "Exported", Addr: 0x140001000, Dynamic: true},
	}, b.Symbols)
}

func TestLoadPEForwardedExport(t *testing.T) {
	p := objtest.Image()
	// An RVA inside the export directory is a forwarder string.
	p.Exports = append(p.Exports, objtest.PEExport{Name: "Forwarded", RVA: p.ExportRVA + 0x30})
	path := objtest.WriteFile(t, "fwd.exe", p.Bytes())

	b, err := Load(path)
	require.NoError(t, err)
	for _, s := range b.Symbols {
		assert.NotEqual(t, "Forwarded", s.Name)
	}
}

func TestLoadCOFFObject(t *testing.T) {
	p := &objtest.PE{
		Machine: pe.IMAGE_FILE_MACHINE_I386,
		Object:  true,
		Sections: []objtest.PESection{
			{Name: ".text", Characteristics: pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE, Data: []byte{0x90, 0xc3}},
			{Name: ".rdata", Characteristics: pe.IMAGE_SCN_CNT_INITIALIZED_DATA, Data: []byte("hi\x00")},
		},
		Symbols: []objtest.PESymbol{
			{Name: "_start", Section: 1, Value: 1, Type: objtest.SymTypeFunction, StorageClass: objtest.SymClassExternal},
			{Name: "_a_rather_long_function_name", Section: 1, Type: objtest.SymTypeFunction, StorageClass: objtest.SymClassExternal},
			{Name: "_printf", Type: objtest.SymTypeFunction, StorageClass: objtest.SymClassExternal},
			{Name: "$SG1", Section: 2, StorageClass: objtest.SymClassStatic},
		},
	}
	path := objtest.WriteFile(t, "a.obj", p.Bytes())

	b, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pe-i386", b.FormatLabel)
	assert.Equal(t, 32, b.Bits)
	assert.Equal(t, uint64(0), b.Entry)
	assert.Equal(t, []string{".text", ".rdata"}, sectionNames(b))
	assert.Equal(t, []Symbol{
		{Kind: SymbolFunction, Name: "_start", Addr: 1},
		{Kind: SymbolFunction, Name: "_a_rather_long_function_name", Addr: 0},
		{Kind: SymbolFunction, Name: "_printf", Addr: 0},
	}, b.Symbols)
}

func TestLoadPESectionReadError(t *testing.T) {
	p := objtest.Image()
	p.Sections[1].Offset = 1 << 20
	p.Sections[1].Data = make([]byte, 8)
	path := objtest.WriteFile(t, "bad.exe", p.Bytes())

	_, err := Load(path)
	var se *SectionReadError
	require.True(t, errors.As(err, &se), "%v", err)
	assert.Equal(t, ".data", se.Name)
}
