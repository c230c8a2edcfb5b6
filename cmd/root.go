package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"press_archive/internal/config"
	"press_archive/internal/logger"
)

var version = "dev"

var (
	cfgFile  string
	logLevel string

	rootCmd = &cobra.Command{
		Use:          "press_archive",
		Short:        "Archive press releases listed on saved ticker pages and validate the archive",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

func Execute() error {
	// .env is optional
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "press_archive %s\n", version)
		},
	})

	rootCmd.AddCommand(archiveCommand())
	rootCmd.AddCommand(validateCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(inspectCommand())
}

// setup loads configuration in order file, environment, flags; override
// applies the command's own flags before validation.
func setup(cmd *cobra.Command, override func(*config.Config)) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, nil, err
	}

	cfg.ApplyEnv()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if override != nil {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM so a stage can write what
// it has gathered before exiting.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// interrupted reports a cancelled stage as a clean exit; its partial dataset
// is already on disk.
func interrupted(log logger.Logger, err error) error {
	if errors.Is(err, context.Canceled) {
		log.Warn("Stopped by signal, partial dataset written")
		return nil
	}
	return err
}
