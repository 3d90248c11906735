package main

import (
	"fmt"
	"os"

	"github.com/decred/slog"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolgame/config"
	"github.com/tolelom/tolgame/logging"
)

// passwordEnv holds the keystore password. Flags would leak it via ps.
const passwordEnv = "TOLGAME_PASSWORD"

var (
	configPath string
	logLevel   string

	cfg  *config.Config
	logs *logging.Backend
	log  slog.Logger = slog.Disabled
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (json, toml or yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (trace, debug, info, warn, error, critical, off)")
}

var rootCmd = &cobra.Command{
	Use:           "tolgame",
	Short:         "Escrow game protocol on a UTXO ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logs = logging.NewBackend(os.Stderr, level)
		log = logs.Logger(logging.Main)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func password() string {
	pw := os.Getenv(passwordEnv)
	if pw == "" {
		log.Warnf("%s not set, keystore uses an empty password", passwordEnv)
	}
	return pw
}
