package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fitsync/internal/config"
	"fitsync/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "fitsync",
	Short:         "Offline-first sync for fitness tracking data",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	pf.String("cache", "", "path of the local cache database")
	pf.String("owner", "", "owner id to sync when not signing in")
	pf.String("log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(serveCmd, syncCmd, queueCmd, weightCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration with cmd's flags applied and builds the
// logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	slog.SetDefault(log)
	return cfg, log, closer, nil
}
