package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/sensor-dashboard-service/internal/adapter/postgrest"
	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/couchcryptid/sensor-dashboard-service/internal/observability"
	"github.com/couchcryptid/sensor-dashboard-service/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	sourcesFile string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "sensorctl",
	Short: "Inspect and export sensor tables",
	Long: `sensorctl reads the sensor tables behind the dashboard directly.
Store connection settings come from the same environment variables as the
dashboard service (STORE_URL, STORE_API_KEY, PAGE_SIZE, SOURCE_TIMEZONE, ...).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sourcesFile, "sources", "", "sources file (default is $SOURCES_FILE or the built-in catalog)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log store requests to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadCatalog prefers --sources over SOURCES_FILE.
func loadCatalog(cfg *config.Config) (*config.Catalog, error) {
	path := cfg.SourcesFile
	if sourcesFile != "" {
		path = sourcesFile
	}
	return config.LoadCatalog(path)
}

// newService wires a pipeline service against the configured store.
func newService() (*pipeline.Service, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger()
	store := postgrest.NewClient(cfg.StoreURL, cfg.StoreAPIKey, cfg.StoreTimeout, logger)
	svc := pipeline.NewService(catalog, store, pipeline.Options{
		PageSize: cfg.PageSize,
		Location: cfg.SourceLocation,
	}, logger, observability.NewMetrics())
	return svc, cfg, nil
}
