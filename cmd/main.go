package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kass/go-aqi-viz/internal/config"
	"github.com/kass/go-aqi-viz/internal/logging"
	"github.com/kass/go-aqi-viz/pkg/archive"
	"github.com/kass/go-aqi-viz/pkg/imaging"
	"github.com/kass/go-aqi-viz/pkg/provider"
	"github.com/kass/go-aqi-viz/pkg/viz"
)

const appName = "aqiviz"

var version = "dev"

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Air quality lookup and image-driven visualization picker",
	Long: `aqiviz resolves the nearest air-quality monitoring station for a coordinate
and picks an animation style for a photo from its colors, brightness and contrast.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(serveCmd, nearestCmd, analyzeCmd, fetchCmd, benchCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the process logger
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newFetcher builds the provider chain: client, then archive recording, then
// the snapshot cache, so only real fetches are archived
func newFetcher(cfg *config.Config, store *archive.Store, logger *slog.Logger) provider.Fetcher {
	var f provider.Fetcher = provider.NewClient(cfg.Provider.Options())
	if store != nil {
		f = archive.NewRecordingFetcher(f, store, logger)
	}
	if cfg.Provider.CacheTTL > 0 {
		f = provider.NewCachedFetcher(f, cfg.Provider.CacheTTL)
	}
	return f
}

func newExtractor(cfg *config.Config) *imaging.Extractor {
	return imaging.NewExtractor(imaging.Options{
		Seed:      cfg.Imaging.Seed,
		Workers:   cfg.Imaging.Workers,
		MaxPixels: cfg.Imaging.MaxPixels,
	})
}

func newSelector(cfg *config.Config) (*viz.Selector, error) {
	table, err := cfg.Selector.Table()
	if err != nil {
		return nil, err
	}
	return viz.NewSeededSelector(table, cfg.Selector.Seed), nil
}

// openArchive returns nil when archiving is disabled
func openArchive(ctx context.Context, cfg *config.Config) (*archive.Store, error) {
	if !cfg.Archive.Enabled() {
		return nil, nil
	}
	store, err := archive.Open(ctx, cfg.Archive.Driver, cfg.Archive.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := store.InitSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to init archive schema: %w", err)
	}
	return store, nil
}
