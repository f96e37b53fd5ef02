package load

import (
	"debug/elf"
	"io"

	"github.com/ii64/binload/lib/obj"
)

func elfSectionKind(s *elf.Section) SectionKind {
	switch {
	case s.Flags&elf.SHF_EXECINSTR != 0:
		return SectionCode
	case s.Flags&elf.SHF_ALLOC != 0 && s.Type != elf.SHT_NOBITS:
		return SectionData
	}
	return SectionNone
}

func elfSections(o *obj.Object, opts Options) (sections []*Section, err error) {
	for _, s := range o.Elf.Sections {
		kind := elfSectionKind(s)
		if kind == SectionNone {
			continue
		}
		sec := newSection(len(sections), s.Name, kind, s.Addr, s.Size)

		// SHT_NOBITS code has no file contents; it loads as zeros.
		var r io.Reader
		if s.Type != elf.SHT_NOBITS {
			if err = checkFileRange(sec, s.Offset, s.FileSize, o.Size); err != nil {
				return nil, err
			}
			r = s.Open()
		}
		if err = copyContents(sec, r, opts); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return
}
