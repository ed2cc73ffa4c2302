package main

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Validate and list the source catalog",
	Long: `Loads the sources file (or the built-in catalog), validates it and prints
every source and group. Useful before pointing the dashboard at a new file.`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s  %-12s  %-10s  %-8s  %-8s  %s\n", "Source", "Table", "Shape", "Mode", "Kind", "Order")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, s := range catalog.Sources {
		mode := s.Mode
		if s.Mode == config.ModeLatest {
			mode = fmt.Sprintf("latest:%d", s.Limit)
		}
		fmt.Fprintf(out, "%-12s  %-12s  %-10s  %-8s  %-8s  %s\n", s.Name, s.Table, s.Shape, mode, s.Kind, s.Order())
	}

	for _, g := range catalog.Groups {
		fmt.Fprintf(out, "\nGroup %s (window %d): %s\n  fields: %s\n",
			g.Name, g.Window, strings.Join(g.Sources, ", "), strings.Join(g.Fields, ", "))
	}
	return nil
}
