package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kdb-tools/kdb/internal/config"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List named taxon presets",
	Long: `List the presets accepted by 'kdb build --preset'.

Built-in presets can be overridden or extended in ~/.config/kdb/presets.yaml:

  presets:
    gut:
      description: Common gut genera
      taxa: [Bacteroides, Escherichia, Clostridium]`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := config.LoadCatalog(config.GetUserPresetsPath())
		if err != nil {
			return err
		}
		renderPresets(os.Stdout, catalog)
		return nil
	},
}

var presetNameStyle = lipgloss.NewStyle().Bold(true).Width(12)

func renderPresets(w io.Writer, catalog config.Catalog) {
	for _, name := range catalog.Names() {
		p := catalog[name]
		fmt.Fprintf(w, "%s%s\n", presetNameStyle.Render(name), strings.Join(p.Taxa, ", "))
		if p.Description != "" {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", 12), dimStyle.Render(p.Description))
		}
	}
}
