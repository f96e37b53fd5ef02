package obj

import (
	"debug/elf"
	"debug/pe"
	"io/fs"
	"os"

	"github.com/pkg/errors"

	"github.com/ii64/binload/lib/logflags"
)

// Object is an open object file whose container format and architecture
// were recognized. It is consumed by the section and symbol extractors and
// must be closed exactly once.
type Object struct {
	Path string

	Format      Format
	FormatLabel string
	Arch        Arch
	ArchLabel   string
	Bits        int
	Entry       uint64

	// Exactly one of Elf or Pe is set.
	Elf *elf.File
	Pe  *pe.File

	// SymbolsErr is set when the PE symbol table could not be decoded and
	// the file was parsed without it.
	SymbolsErr error

	// Size is the file length in bytes.
	Size int64

	f *os.File
}

// Open identifies the object file at path. Unreadable, foreign and
// unsupported input is rejected before any handle is returned.
func Open(path string) (o *Object, err error) {
	Init()
	log := logflags.ObjLogger()

	var f *os.File
	f, err = os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = newError("open", path, ErrNotFound, "", err)
		} else {
			err = newError("open", path, ErrIO, "", err)
		}
		return nil, err
	}

	o = &Object{Path: path, f: f}
	defer func() {
		if err != nil {
			f.Close()
			o = nil
		}
	}()

	var info os.FileInfo
	info, err = f.Stat()
	if err != nil {
		err = newError("stat", path, ErrIO, "", err)
		return
	}
	if info.IsDir() {
		err = newError("open", path, ErrIO, "is a directory", nil)
		return
	}
	o.Size = info.Size()

	var magic []byte
	magic, err = getMagic(f)
	if err != nil {
		err = newError("read", path, ErrIO, "", err)
		return
	}

	for _, p := range probers {
		if !p.match(magic) {
			continue
		}
		o.Format = p.format
		err = p.open(o, f)
		if err != nil {
			return
		}
		if logflags.Obj() {
			log.Debugf("%s: %s %s %d-bit entry=%#x", path, o.FormatLabel, o.ArchLabel, o.Bits, o.Entry)
		}
		return
	}
	err = newError("detect", path, ErrUnrecognizedFormat, "", nil)
	return
}

// Close releases the file handle. Calls after the first are no-ops.
func (o *Object) Close() error {
	if o == nil || o.f == nil {
		return nil
	}
	f := o.f
	o.f = nil
	return f.Close()
}

// Closed reports whether the handle was released.
func (o *Object) Closed() bool {
	return o == nil || o.f == nil
}
