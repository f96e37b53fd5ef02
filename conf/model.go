package conf

import (
	"fmt"
	"strings"

	"github.com/ii64/binload/lib/load"
	"github.com/ii64/binload/lib/report"
)

type Config struct {
	// Filename of the object file to analyze.
	Filename string
	// Sections to print; "all" prints every kept section.
	Sections []string
	Format   string

	Dump        bool
	SortSymbols bool

	MaxAlloc uint64

	Log       bool
	LogOutput string
}

func Default() *Config {
	return &Config{
		Sections: []string{report.AllSections},
		Format:   report.FormatText,
		MaxAlloc: load.DefaultMaxAlloc,
	}
}

// Validate resolves the input file from the flag or the positional args.
func (cfg *Config) Validate(args []string) error {
	switch len(args) {
	case 0:
	case 1:
		if cfg.Filename != "" && cfg.Filename != args[0] {
			return fmt.Errorf("filename given twice: %q and %q", cfg.Filename, args[0])
		}
		cfg.Filename = args[0]
	default:
		return fmt.Errorf("expected one file, got %d", len(args))
	}
	if cfg.Filename == "" {
		return fmt.Errorf("no filename supplied")
	}
	if !validateFilePath(cfg.Filename) {
		return fmt.Errorf("file %q: missing or a directory", cfg.Filename)
	}

	switch cfg.Format {
	case report.FormatText, report.FormatYAML:
	default:
		return fmt.Errorf("unknown output format %q", cfg.Format)
	}

	var sections []string
	for _, s := range cfg.Sections {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		sections = []string{report.AllSections}
	}
	cfg.Sections = sections
	return nil
}

func (cfg *Config) LoadOptions() load.Options {
	return load.Options{MaxAlloc: cfg.MaxAlloc}
}

func (cfg *Config) ReportOptions() report.Options {
	return report.Options{
		Format:      cfg.Format,
		Sections:    cfg.Sections,
		Dump:        cfg.Dump,
		SortSymbols: cfg.SortSymbols,
	}
}
