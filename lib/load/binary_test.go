package load

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testBinary() *Binary {
	return &Binary{
		Sections: []*Section{
			{Index: 0, Name: ".text", Kind: SectionCode, Addr: 0x1000, Size: 0x10, Bytes: make([]byte, 0x10)},
			{Index: 1, Name: ".data", Kind: SectionData, Addr: 0x2000, Size: 4, Bytes: make([]byte, 4)},
			{Index: 2, Name: ".text", Kind: SectionCode, Addr: 0x3000, Size: 0, Bytes: []byte{}},
		},
	}
}

func TestFindSection(t *testing.T) {
	b := testBinary()
	assert.Same(t, b.Sections[0], b.FindSection(".text"))
	assert.Same(t, b.Sections[0], b.TextSection())
	assert.Same(t, b.Sections[1], b.FindSection(".data"))
	assert.Nil(t, b.FindSection(".rodata"))
	assert.Nil(t, b.FindSection(".TEXT"))

	var nilBin *Binary
	assert.Nil(t, nilBin.FindSection(".text"))
	assert.Nil(t, nilBin.SectionAt(0))
}

func TestSectionAt(t *testing.T) {
	b := testBinary()
	assert.Same(t, b.Sections[0], b.SectionAt(0x1000))
	assert.Same(t, b.Sections[0], b.SectionAt(0x100f))
	assert.Nil(t, b.SectionAt(0x1010))
	assert.Same(t, b.Sections[1], b.SectionAt(0x2003))
	// Empty sections contain nothing.
	assert.Nil(t, b.SectionAt(0x3000))
}

func TestUnload(t *testing.T) {
	b := testBinary()
	assert.False(t, b.Unloaded())

	b.Unload()
	assert.True(t, b.Unloaded())
	for _, s := range b.Sections {
		assert.Nil(t, s.Bytes)
	}
	assert.Equal(t, uint64(0x10), b.Sections[0].Size)

	assert.NotPanics(t, b.Unload)

	var nilBin *Binary
	assert.NotPanics(t, nilBin.Unload)
	assert.True(t, nilBin.Unloaded())
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "Code", SectionCode.String())
	assert.Equal(t, "Data", SectionData.String())
	assert.Equal(t, "None", SectionNone.String())
	assert.Equal(t, "Function", SymbolFunction.String())
	assert.Equal(t, "Unknown", SymbolUnknown.String())
}

func TestOptionsAlloc(t *testing.T) {
	opts := Options{MaxAlloc: 8}
	buf, err := opts.alloc(8, "x")
	assert.NoError(t, err)
	assert.Len(t, buf, 8)

	_, err = opts.alloc(9, "x")
	assert.ErrorIs(t, err, ErrOutOfMemory)

	assert.Equal(t, uint64(DefaultMaxAlloc), Options{}.maxAlloc())
	assert.Equal(t, uint64(DefaultMaxAlloc), DefaultOptions().MaxAlloc)
}
