package obj

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

var (
	dosMagic    = []byte{'M', 'Z'}
	peSignature = []byte{'P', 'E', 0, 0}
)

// peLfanewOffset is where the DOS stub stores the PE header offset.
const peLfanewOffset = 0x3c

var coffMachineLabels = map[uint16]string{
	pe.IMAGE_FILE_MACHINE_I386:  "i386",
	pe.IMAGE_FILE_MACHINE_AMD64: "i386:x86-64",
	pe.IMAGE_FILE_MACHINE_ARM:   "arm",
	pe.IMAGE_FILE_MACHINE_ARMNT: "arm",
	pe.IMAGE_FILE_MACHINE_THUMB: "arm",
	pe.IMAGE_FILE_MACHINE_ARM64: "aarch64",
	pe.IMAGE_FILE_MACHINE_IA64:  "ia64",
}

func matchPE(magic []byte) bool {
	if bytes.HasPrefix(magic, dosMagic) {
		return true
	}
	if len(magic) < 2 {
		return false
	}
	_, ok := coffMachineLabels[binary.LittleEndian.Uint16(magic)]
	return ok
}

// peMachine reads the COFF machine field, following the DOS stub when the
// file is an image. hdr is the file offset of the COFF file header.
func peMachine(r io.ReaderAt) (machine uint16, image bool, hdr int64, err error) {
	var dos [peLfanewOffset + 4]byte
	n, _ := r.ReadAt(dos[:], 0)
	if n >= 2 && bytes.Equal(dos[:2], dosMagic) {
		if n < len(dos) {
			err = errors.New("truncated DOS header")
			return
		}
		off := int64(binary.LittleEndian.Uint32(dos[peLfanewOffset:]))
		var sig [6]byte
		if _, err = r.ReadAt(sig[:], off); err != nil {
			err = errors.Wrapf(err, "read PE signature at %#x", off)
			return
		}
		if !bytes.Equal(sig[:4], peSignature) {
			err = errors.Errorf("invalid PE signature % x", sig[:4])
			return
		}
		return binary.LittleEndian.Uint16(sig[4:]), true, off + int64(len(peSignature)), nil
	}
	if n < 2 {
		err = errors.New("truncated COFF header")
		return
	}
	return binary.LittleEndian.Uint16(dos[:2]), false, 0, nil
}

// Offsets of PointerToSymbolTable and NumberOfSymbols in pe.FileHeader.
const (
	coffSymtabPtrOffset = 8
	coffSymtabEnd       = 16
)

// noSymbolsReader hides the COFF symbol table by reading its pointer and
// count in the file header as zero.
type noSymbolsReader struct {
	r   io.ReaderAt
	hdr int64
}

func (nr noSymbolsReader) ReadAt(p []byte, off int64) (n int, err error) {
	n, err = nr.r.ReadAt(p, off)
	lo, hi := nr.hdr+coffSymtabPtrOffset, nr.hdr+coffSymtabEnd
	for i := max(lo, off); i < min(hi, off+int64(n)); i++ {
		p[i-off] = 0
	}
	return
}

func hasCOFFSymbols(r io.ReaderAt, hdr int64) bool {
	var b [coffSymtabEnd - coffSymtabPtrOffset]byte
	if _, err := r.ReadAt(b[:], hdr+coffSymtabPtrOffset); err != nil {
		return false
	}
	return binary.LittleEndian.Uint32(b[:4]) != 0
}

func openPE(o *Object, r io.ReaderAt) (err error) {
	machine, image, hdr, err := peMachine(r)
	if err != nil {
		return newError("detect", o.Path, ErrUnrecognizedFormat, "malformed PE", err)
	}
	o.ArchLabel = coffMachineLabel(machine)

	var target string
	switch machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		o.Arch, o.Bits, target = ArchX86, 32, "i386"
	case pe.IMAGE_FILE_MACHINE_AMD64:
		o.Arch, o.Bits, target = ArchX86, 64, "x86-64"
	default:
		return newError("detect", o.Path, ErrUnsupportedArch, o.ArchLabel, nil)
	}

	var f *pe.File
	f, err = pe.NewFile(r)
	if err != nil && hasCOFFSymbols(r, hdr) {
		// debug/pe decodes the symbol table eagerly. Retry without it so a
		// broken table costs the symbols, not the file.
		symErr := err
		if f, err = pe.NewFile(noSymbolsReader{r: r, hdr: hdr}); err == nil {
			o.SymbolsErr = errors.Wrap(symErr, "COFF symbol table")
		} else {
			err = symErr
		}
	}
	if err != nil {
		return newError("detect", o.Path, ErrUnrecognizedFormat, "malformed PE", err)
	}
	o.Pe = f

	if image && f.OptionalHeader != nil {
		o.FormatLabel = "pei-" + target
	} else {
		o.FormatLabel = "pe-" + target
	}

	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.AddressOfEntryPoint != 0 {
			o.Entry = uint64(oh.ImageBase) + uint64(oh.AddressOfEntryPoint)
		}
	case *pe.OptionalHeader64:
		if oh.AddressOfEntryPoint != 0 {
			o.Entry = oh.ImageBase + uint64(oh.AddressOfEntryPoint)
		}
	}
	return nil
}

func coffMachineLabel(m uint16) string {
	if l, ok := coffMachineLabels[m]; ok {
		return l
	}
	return fmt.Sprintf("coff:%#x", m)
}

// ImageBase returns the preferred load address of a PE image, or 0 for
// COFF objects and non-PE files.
func (o *Object) ImageBase() uint64 {
	if o.Pe == nil {
		return 0
	}
	switch oh := o.Pe.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		return oh.ImageBase
	}
	return 0
}

// DataDirectory returns the i-th optional header data directory entry.
func (o *Object) DataDirectory(i int) (dd pe.DataDirectory, ok bool) {
	if o.Pe == nil {
		return
	}
	switch oh := o.Pe.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if i < int(oh.NumberOfRvaAndSizes) && i < len(oh.DataDirectory) {
			return oh.DataDirectory[i], true
		}
	case *pe.OptionalHeader64:
		if i < int(oh.NumberOfRvaAndSizes) && i < len(oh.DataDirectory) {
			return oh.DataDirectory[i], true
		}
	}
	return
}
