package conf

import (
	"github.com/spf13/pflag"
)

func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Filename, "filename", "f", c.Filename, "Name of file to analyze")
	fs.StringSliceVarP(&c.Sections, "section", "S", c.Sections, "Section(s) to analyze")
	fs.StringVarP(&c.Format, "format", "o", c.Format, "Output format: text or yaml")

	fs.BoolVar(&c.Dump, "dump", c.Dump, "Hex dump section contents")
	fs.BoolVar(&c.SortSymbols, "sort-symbols", c.SortSymbols, "Sort symbols by address")
	fs.Uint64Var(&c.MaxAlloc, "max-alloc", c.MaxAlloc, "Largest buffer allocated for one section or symbol table")

	fs.BoolVar(&c.Log, "log", c.Log, "Enable logging")
	fs.StringVar(&c.LogOutput, "log-output", c.LogOutput, "Comma separated list of layers to log: obj, load, report")
}
