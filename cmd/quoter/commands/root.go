package commands

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"agroquote/quoter/internal/config"
	"agroquote/quoter/internal/container"
)

var (
	cfgFile string
	verbose bool
	output  string
)

var rootCmd = &cobra.Command{
	Use:   "quoter",
	Short: "Agrochemical price catalog and quote assembler",
	Long: `Quoter reads the price spreadsheet, normalizes it into a price catalog
and assembles USD quotes for carts of products.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format: table or json")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// withContainer loads the configuration, builds the container and runs fn
// against it.
func withContainer(ctx context.Context, fn func(ctx context.Context, app *container.Container) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := container.SetupLogging(cfg.Log); err != nil {
		return err
	}

	app, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	log.Debugf("Using %s feed source", cfg.Feed.Source)
	return fn(ctx, app)
}
