package obj

import (
	"io"
	"sync"
	"sync/atomic"
)

// Format is the container format of an object file.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatPE
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "ELF"
	case FormatPE:
		return "PE"
	}
	return "Unknown"
}

// Arch is the architecture family of an object file.
type Arch int

const (
	ArchNone Arch = iota
	ArchX86
)

func (a Arch) String() string {
	if a == ArchX86 {
		return "x86"
	}
	return "None"
}

// prober recognizes one container format by its magic and fills in the
// handle from the underlying reader.
type prober struct {
	format Format
	match  func(magic []byte) bool
	open   func(o *Object, r io.ReaderAt) error
}

var (
	probers   []prober
	initOnce  sync.Once
	initCount int32
)

// Init builds the format probe table. It runs at most once per process;
// Open calls it lazily, so calling it directly is optional.
func Init() {
	initOnce.Do(func() {
		atomic.AddInt32(&initCount, 1)
		probers = []prober{
			{format: FormatELF, match: matchElf, open: openElf},
			{format: FormatPE, match: matchPE, open: openPE},
		}
	})
}
