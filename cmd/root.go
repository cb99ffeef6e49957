// Package cmd wires the CLI, configuration and process lifecycle.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cgu-connect/internal/config"
	"cgu-connect/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "cguconnect",
	Short: "CGU Connect direct messaging service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads and validates the configuration and installs the logger.
func loadConfig() (*config.Config, error) {
	v, err := config.New(configFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Parse(v)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Development)
	return cfg, nil
}
