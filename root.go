package main

import (
	"fmt"
	"log/slog"

	"github.com/chaos-io/removebg/config"
	"github.com/chaos-io/removebg/logging"
	"github.com/spf13/cobra"
)

// app 在 PersistentPreRunE 中加载配置与日志，子命令共享
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if _, err := logging.Setup(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	slog.Debug("config loaded", "path", a.configPath, "provider", cfg.Isolation.Provider, "sink", cfg.Export.Sink)
	a.cfg = cfg
	return nil
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "removebg",
		Short:         "Replace the background of a photo subject",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file path (TOML)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newKeyCommand(a))
	rootCmd.AddCommand(newCompositeCommand(a))
	rootCmd.AddCommand(newRemoveCommand(a))
	rootCmd.AddCommand(newServeCommand(a))

	return rootCmd
}
