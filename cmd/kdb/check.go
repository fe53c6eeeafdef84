package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kdb-tools/kdb/internal/collab"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that ncbi-genome-download and kraken2-build are installed",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	runner := newRunner()

	var missing []string
	for _, s := range collab.LookupTools(runner, cfg.Tools.Download, cfg.Tools.Build) {
		if s.Err != nil {
			printStatus("✗", fmt.Sprintf("%s not found", s.Name), color.FgRed)
			missing = append(missing, s.Name)
			continue
		}
		printStatus("✓", fmt.Sprintf("%s (%s)", s.Name, s.Path), color.FgGreen)
	}

	if _, err := os.Stat(filepath.Join(cfg.TaxonomyDir(), "nodes.dmp")); err == nil {
		printStatus("✓", fmt.Sprintf("taxonomy cached at %s", cfg.TaxonomyDir()), color.FgGreen)
	} else {
		printStatus("⚠", "taxonomy not cached yet (downloaded on first build)", color.FgYellow)
	}

	if len(missing) > 0 {
		return invalidArgs(&collab.MissingToolError{Tools: missing})
	}
	return nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
