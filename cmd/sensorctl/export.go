package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	exportSource string
	exportStart  string
	exportEnd    string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export rows within a date range to CSV",
	Long: `Reads the whole table of a source, keeps the rows whose timestamp lies
within [start, end] (both inclusive) and writes them to a CSV file named after
the source and the range. Bounds without an offset are read in INPUT_TIMEZONE.`,
	Example: `  sensorctl export --source ku --start 2024-01-01T00:00 --end 2024-01-31T23:59`,
	RunE:    runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportSource, "source", "", "source name (required)")
	exportCmd.Flags().StringVar(&exportStart, "start", "", "range start (required)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "range end (required)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory")
	_ = exportCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	svc, cfg, err := newService()
	if err != nil {
		return err
	}

	rng, err := domain.ParseRange(exportStart, exportEnd, cfg.InputLocation)
	if err != nil {
		return err
	}

	rows, err := svc.RowsInRange(cmd.Context(), exportSource, rng)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rows in range; nothing written.")
		return nil
	}

	var buf bytes.Buffer
	if err := domain.ExportCSV(&buf, rows); err != nil {
		return err
	}

	if err := os.MkdirAll(exportOut, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(exportOut, domain.ExportFilename(exportSource, rng))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s rows (%s) to %s\n",
		humanize.Comma(int64(len(rows))), humanize.Bytes(uint64(buf.Len())), path)
	return nil
}
