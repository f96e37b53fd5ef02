// Package report renders a loaded Binary for people and for tools.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/ii64/binload/lib/load"
	"github.com/ii64/binload/lib/logflags"
	"github.com/ii64/binload/lib/util"
)

const (
	FormatText = "text"
	FormatYAML = "yaml"

	// AllSections selects every section.
	AllSections = "all"

	dumpWidth = 16
)

type Options struct {
	Format string
	// Sections names the sections to print. Empty or AllSections prints
	// every section.
	Sections    []string
	Dump        bool
	SortSymbols bool
}

func (opts Options) selected(name string) bool {
	if len(opts.Sections) == 0 || slices.Contains(opts.Sections, AllSections) {
		return true
	}
	return slices.Contains(opts.Sections, name)
}

type document struct {
	Filename string    `yaml:"filename"`
	Format   string    `yaml:"format"`
	Arch     string    `yaml:"arch"`
	Bits     int       `yaml:"bits"`
	Entry    string    `yaml:"entry"`
	Sections []section `yaml:"sections"`
	Symbols  []symbol  `yaml:"symbols,omitempty"`
}

type section struct {
	Name  string   `yaml:"name"`
	Addr  string   `yaml:"addr"`
	Size  uint64   `yaml:"size"`
	Kind  string   `yaml:"kind"`
	Bytes []string `yaml:"bytes,omitempty"`
}

type symbol struct {
	Name    string `yaml:"name"`
	Addr    string `yaml:"addr"`
	Kind    string `yaml:"kind"`
	Dynamic bool   `yaml:"dynamic,omitempty"`
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func build(b *load.Binary, opts Options) *document {
	doc := &document{
		Filename: b.Filename,
		Format:   b.FormatLabel,
		Arch:     b.ArchLabel,
		Bits:     b.Bits,
		Entry:    hex(b.Entry),
	}
	for _, s := range b.Sections {
		if !opts.selected(s.Name) {
			continue
		}
		sec := section{
			Name: s.Name,
			Addr: hex(s.Addr),
			Size: s.Size,
			Kind: s.Kind.String(),
		}
		if opts.Dump {
			sec.Bytes = util.HexRows(s.Addr, s.Bytes, dumpWidth)
		}
		doc.Sections = append(doc.Sections, sec)
	}

	syms := b.Symbols
	if opts.SortSymbols {
		syms = slices.Clone(syms)
		slices.SortStableFunc(syms, func(a, b load.Symbol) bool {
			return a.Addr < b.Addr
		})
	}
	for _, s := range syms {
		doc.Symbols = append(doc.Symbols, symbol{
			Name:    s.Name,
			Addr:    hex(s.Addr),
			Kind:    s.Kind.String(),
			Dynamic: s.Dynamic,
		})
	}
	return doc
}

// Write prints b to w in the requested format.
func Write(w io.Writer, b *load.Binary, opts Options) error {
	log := logflags.ReportLogger()
	if b == nil {
		return errors.New("report: nil binary")
	}
	if b.Unloaded() && opts.Dump {
		return errors.Errorf("report: %s: section contents already released", b.Filename)
	}

	doc := build(b, opts)
	if logflags.Report() {
		log.Debugf("%s: %d of %d sections selected", b.Filename, len(doc.Sections), len(b.Sections))
	}

	switch opts.Format {
	case "", FormatText:
		return writeText(w, doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, "report: yaml")
		}
		return enc.Close()
	}
	return errors.Errorf("report: unknown format %q", opts.Format)
}

func writeText(w io.Writer, doc *document) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Loaded binary: %s\n", doc.Filename)
	fmt.Fprintf(&sb, "\t%s\n", doc.Format)
	fmt.Fprintf(&sb, "\t%s\n", doc.Arch)
	fmt.Fprintf(&sb, "\t%dbit\n", doc.Bits)
	fmt.Fprintf(&sb, "\tentry@%s\n\n", doc.Entry)

	for _, s := range doc.Sections {
		fmt.Fprintf(&sb, "\n\t\tSection Name: %s\n", s.Name)
		fmt.Fprintf(&sb, "\t\tAddr: %s\n", s.Addr)
		fmt.Fprintf(&sb, "\t\tSize: %d\n", s.Size)
		fmt.Fprintf(&sb, "\t\tType: %s\n", s.Kind)
		for _, row := range s.Bytes {
			fmt.Fprintf(&sb, "\t\t%s\n", row)
		}
		sb.WriteString("\n")
	}

	if len(doc.Symbols) > 0 {
		sb.WriteString("\n\tScanned symbol tables\n")
		for _, s := range doc.Symbols {
			kind := s.Kind
			if s.Dynamic {
				kind += ", dynamic"
			}
			fmt.Fprintf(&sb, "\t\t%80s - %-20s(%s)\n", s.Name, s.Addr, kind)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return errors.WithStack(err)
}
