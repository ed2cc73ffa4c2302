package main

import (
	"fmt"

	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var countSource string

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the exact row count of each source table",
	RunE:  runCount,
}

func init() {
	countCmd.Flags().StringVar(&countSource, "source", "", "only count this source")
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, _ []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}

	sources := svc.Catalog().Sources
	if countSource != "" {
		src, ok := svc.Catalog().Source(countSource)
		if !ok {
			return fmt.Errorf("unknown source %q", countSource)
		}
		sources = []config.Source{src}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-16s  %14s\n", "Source", "Rows")
	fmt.Fprintln(out, "--------------------------------")

	var total int64
	var failed int
	for _, src := range sources {
		n, err := svc.Count(cmd.Context(), src.Name)
		if err != nil {
			fmt.Fprintf(out, "%-16s  %14s  (%v)\n", src.Name, "error", err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%-16s  %14s\n", src.Name, humanize.Comma(int64(n)))
		total += int64(n)
	}

	fmt.Fprintln(out, "--------------------------------")
	fmt.Fprintf(out, "%-16s  %14s\n", "Total", humanize.Comma(total))
	if failed > 0 {
		return fmt.Errorf("%d source(s) could not be counted", failed)
	}
	return nil
}
