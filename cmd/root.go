package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"langtutor/internal/app"
	"langtutor/pkg/config"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "langtutor",
	Short: "Practice French with generated dialogues and speech",
	Long: `langtutor generates French practice dialogues with an LLM, voices them
with a text-to-speech provider, and serves a local web UI for conversation
practice, imports and exports.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogger()
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func setupLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	// stderr keeps stdout free for dialogue output.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	return config.LoadFrom(ctx, configPath)
}

// loadService loads and validates the configuration and builds the providers.
// Callers close the service.
func loadService(ctx context.Context) (*config.Config, *app.Service, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	svc, err := app.BuildService(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}
