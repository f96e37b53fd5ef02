package cmd

import (
	"io"

	"github.com/ii64/binload/conf"
	"github.com/ii64/binload/lib/load"
	"github.com/ii64/binload/lib/logflags"
	"github.com/ii64/binload/lib/report"
)

// Main loads cfg.Filename and writes its report to w.
func Main(cfg *conf.Config, w io.Writer) (err error) {
	if err = logflags.Setup(cfg.Log, cfg.LogOutput); err != nil {
		return
	}

	var b *load.Binary
	b, err = load.LoadWith(cfg.Filename, cfg.LoadOptions())
	if err != nil {
		return
	}
	defer b.Unload()

	return report.Write(w, b, cfg.ReportOptions())
}
