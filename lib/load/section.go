package load

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ii64/binload/lib/obj"
)

// extractSections returns the code and data sections of o in on-disk
// order. Any failure is fatal to the load.
func extractSections(o *obj.Object, opts Options) (sections []*Section, err error) {
	switch {
	case o.Elf != nil:
		return elfSections(o, opts)
	case o.Pe != nil:
		return peSections(o, opts)
	}
	return nil, errors.Errorf("load: %s: no format handle", o.Path)
}

func newSection(index int, name string, kind SectionKind, addr, size uint64) *Section {
	if name == "" {
		name = unnamedSection
	}
	return &Section{
		Index: index,
		Name:  name,
		Kind:  kind,
		Addr:  addr,
		Size:  size,
	}
}

// checkFileRange fails a section whose n bytes at off lie past the end of
// a file of size bytes. Nothing is allocated for such a section.
func checkFileRange(s *Section, off, n uint64, size int64) error {
	if n == 0 {
		return nil
	}
	if off > uint64(size) || n > uint64(size)-off {
		return errors.WithStack(&SectionReadError{
			Name: s.Name,
			Err:  errors.Errorf("contents [%#x, %#x) beyond end of file (%d bytes)", off, off+n, size),
		})
	}
	return nil
}

// copyContents fills s.Bytes with s.Size bytes from r. A nil r leaves the
// buffer zeroed.
func copyContents(s *Section, r io.Reader, opts Options) (err error) {
	var buf []byte
	buf, err = opts.alloc(s.Size, "section "+s.Name)
	if err != nil {
		return
	}
	if r != nil && s.Size > 0 {
		if _, err = io.ReadFull(r, buf); err != nil {
			return errors.WithStack(&SectionReadError{Name: s.Name, Err: err})
		}
	}
	s.Bytes = buf
	return nil
}
