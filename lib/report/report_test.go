package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ii64/binload/lib/load"
	"github.com/ii64/binload/lib/obj"
)

func sample() *load.Binary {
	return &load.Binary{
		Filename:    "a.out",
		Format:      obj.FormatELF,
		FormatLabel: "elf64-x86-64",
		Arch:        obj.ArchX86,
		ArchLabel:   "i386:x86-64",
		Bits:        64,
		Entry:       0x401000,
		Sections: []*load.Section{
			{Index: 0, Name: ".text", Kind: load.SectionCode, Addr: 0x401000, Size: 2, Bytes: []byte{0x90, 0xc3}},
			{Index: 1, Name: ".data", Kind: load.SectionData, Addr: 0x402000, Size: 4, Bytes: []byte("abcd")},
		},
		Symbols: []load.Symbol{
			{Kind: load.SymbolFunction, Name: "helper", Addr: 0x401006},
			{Kind: load.SymbolFunction, Name: "main", Addr: 0x401000},
			{Kind: load.SymbolFunction, Name: "puts", Dynamic: true},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), Options{}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Loaded binary: a.out\n\telf64-x86-64\n\ti386:x86-64\n\t64bit\n\tentry@0x401000\n"))
	assert.Contains(t, out, "\t\tSection Name: .text\n\t\tAddr: 0x401000\n\t\tSize: 2\n\t\tType: Code\n")
	assert.Contains(t, out, "Section Name: .data")
	assert.Contains(t, out, "\tScanned symbol tables\n")
	assert.Contains(t, out, "main - 0x401000")
	assert.Contains(t, out, "(Function, dynamic)")
	assert.Less(t, strings.Index(out, "helper"), strings.Index(out, "main"))
}

func TestWriteTextNoSymbols(t *testing.T) {
	b := sample()
	b.Symbols = nil
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, b, Options{Format: FormatText}))
	assert.NotContains(t, buf.String(), "Scanned symbol tables")
}

func TestWriteSectionFilter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), Options{Sections: []string{".data"}, Dump: true}))
	out := buf.String()
	assert.NotContains(t, out, "Section Name: .text")
	assert.Contains(t, out, "00402000  61 62 63 64")

	buf.Reset()
	require.NoError(t, Write(&buf, sample(), Options{Sections: []string{AllSections}}))
	assert.Contains(t, buf.String(), "Section Name: .text")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), Options{Format: FormatYAML, SortSymbols: true}))

	var doc document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "elf64-x86-64", doc.Format)
	assert.Equal(t, "0x401000", doc.Entry)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Data", doc.Sections[1].Kind)
	assert.Empty(t, doc.Sections[0].Bytes)

	var names []string
	for _, s := range doc.Symbols {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"puts", "main", "helper"}, names)
	assert.True(t, doc.Symbols[0].Dynamic)
}

func TestWriteErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, nil, Options{}))
	assert.Error(t, Write(&buf, sample(), Options{Format: "json"}))

	b := sample()
	b.Unload()
	assert.Error(t, Write(&buf, b, Options{Dump: true}))
	assert.NoError(t, Write(&buf, b, Options{}))
}
