// Command moodctl runs the recommendation flows and manages the history from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/moodmix/internal/app"
	"github.com/ewilliams-labs/moodmix/internal/config"
	"github.com/ewilliams-labs/moodmix/internal/logging"
)

var (
	configPath string
	timeout    time.Duration
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "moodctl",
		Short: "Mood and seed-song music recommendations",
		Long: `moodctl turns a mood description or a seed song into a Spotify track list.

Configuration is read from moodmix.yaml (or CONFIG_PATH) and the environment,
exactly as the API server does.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: CONFIG_PATH or moodmix.yaml)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	root.AddCommand(newMoodCmd())
	root.AddCommand(newSimilarCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads the configuration, wires the application and runs fn with a request-scoped context.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	ctx = logging.ContextWithNewRequestID(ctx)

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("moodctl: encode output: %w", err)
	}
	return nil
}
