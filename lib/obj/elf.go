package obj

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"strings"
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

var elfMachineLabels = map[elf.Machine]string{
	elf.EM_386:     "i386",
	elf.EM_X86_64:  "i386:x86-64",
	elf.EM_ARM:     "arm",
	elf.EM_AARCH64: "aarch64",
	elf.EM_MIPS:    "mips",
	elf.EM_PPC:     "powerpc:common",
	elf.EM_PPC64:   "powerpc:common64",
	elf.EM_RISCV:   "riscv",
	elf.EM_S390:    "s390",
	elf.EM_SPARCV9: "sparc:v9",
}

func matchElf(magic []byte) bool {
	return bytes.HasPrefix(magic, elfMagic)
}

func openElf(o *Object, r io.ReaderAt) (err error) {
	var f *elf.File
	f, err = elf.NewFile(r)
	if err != nil {
		return newError("detect", o.Path, ErrUnrecognizedFormat, "malformed ELF", err)
	}
	o.Elf = f
	o.Entry = f.Entry
	o.ArchLabel = elfMachineLabel(f.Machine)

	switch f.Class {
	case elf.ELFCLASS32:
		o.Bits = 32
	case elf.ELFCLASS64:
		o.Bits = 64
	default:
		return newError("detect", o.Path, ErrUnrecognizedFormat, fmt.Sprintf("ELF class %s", f.Class), nil)
	}
	o.FormatLabel = elfTargetName(f)

	hdr := f.FileHeader
	switch {
	case hdr.Class == elf.ELFCLASS32 && hdr.Machine == elf.EM_386:
		o.Arch = ArchX86
	case hdr.Class == elf.ELFCLASS64 && hdr.Machine == elf.EM_X86_64:
		o.Arch = ArchX86
	default:
		// x32 (EM_X86_64 in a 32-bit container) lands here as well.
		if hdr.Class == elf.ELFCLASS32 && hdr.Machine == elf.EM_X86_64 {
			o.ArchLabel = "i386:x64-32"
		}
		return newError("detect", o.Path, ErrUnsupportedArch, o.ArchLabel, nil)
	}
	return nil
}

func elfMachineLabel(m elf.Machine) string {
	if l, ok := elfMachineLabels[m]; ok {
		return l
	}
	return strings.ToLower(strings.TrimPrefix(m.String(), "EM_"))
}

func elfTargetName(f *elf.File) string {
	bits := 32
	if f.Class == elf.ELFCLASS64 {
		bits = 64
	}
	switch f.Machine {
	case elf.EM_386:
		return fmt.Sprintf("elf%d-i386", bits)
	case elf.EM_X86_64:
		return fmt.Sprintf("elf%d-x86-64", bits)
	}
	if f.Data == elf.ELFDATA2MSB {
		return fmt.Sprintf("elf%d-big", bits)
	}
	return fmt.Sprintf("elf%d-little", bits)
}
