package load

import (
	"debug/pe"

	"github.com/ii64/binload/lib/obj"
)

func peSectionKind(s *pe.Section) SectionKind {
	c := s.Characteristics
	switch {
	case c&(pe.IMAGE_SCN_CNT_CODE|pe.IMAGE_SCN_MEM_EXECUTE) != 0:
		return SectionCode
	case c&pe.IMAGE_SCN_CNT_INITIALIZED_DATA != 0:
		return SectionData
	}
	return SectionNone
}

// peSectionSize is the raw data size, trimmed to the virtual size when
// the raw data carries file alignment padding.
func peSectionSize(s *pe.Section) uint64 {
	size := uint64(s.Size)
	if s.VirtualSize != 0 && uint64(s.VirtualSize) < size {
		size = uint64(s.VirtualSize)
	}
	return size
}

func peSectionAddr(o *obj.Object, s *pe.Section) uint64 {
	return o.ImageBase() + uint64(s.VirtualAddress)
}

func peSections(o *obj.Object, opts Options) (sections []*Section, err error) {
	for _, s := range o.Pe.Sections {
		kind := peSectionKind(s)
		if kind == SectionNone {
			continue
		}
		sec := newSection(len(sections), s.Name, kind, peSectionAddr(o, s), peSectionSize(s))
		if err = checkFileRange(sec, uint64(s.Offset), sec.Size, o.Size); err != nil {
			return nil, err
		}
		if err = copyContents(sec, s.Open(), opts); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return
}
