package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ii64/binload/cmd"
	"github.com/ii64/binload/conf"
)

const version = "0.1.0"

func main() {
	cfg := conf.Default()
	rootCommand := &cobra.Command{
		Use:           "binload [flags] file",
		Short:         "Print the sections and function symbols of an ELF or PE/COFF file.",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			if err := cfg.Validate(args); err != nil {
				return err
			}
			return cmd.Main(cfg, c.OutOrStdout())
		},
	}
	cfg.AddFlags(rootCommand.Flags())

	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
