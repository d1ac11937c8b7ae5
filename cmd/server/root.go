package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/config"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/logging"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/server"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/store"
	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "aion-terminal",
		Short:        "Terminal session backend",
		Long:         `Spawns shells on pseudo-terminals, streams their output over websocket and records assistant usage summaries.`,
		Version:      fmt.Sprintf("%s (built: %s)", version, buildTime),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.String("db", "", "usage database path (env USAGE_DB_PATH)")
	pf.String("shell-config", "", "shell config file (env SHELL_CONFIG_PATH)")

	f := root.Flags()
	f.String("port", "", "server port (env PORT)")
	f.String("host", "", "bind address (env HOST)")
	f.Bool("dev", false, "development mode: colored debug logs (env LOG_DEV)")
	f.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")

	root.AddCommand(newUsageCmd())
	return root
}

// loadConfig reads the environment, then applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	str("port", &cfg.Server.Port)
	str("host", &cfg.Server.Host)
	if flags.Changed("dev") {
		cfg.Logging.Development, _ = flags.GetBool("dev")
		if cfg.Logging.Development {
			cfg.Logging.Level = "debug"
		}
	}
	str("log-level", &cfg.Logging.Level)
	str("db", &cfg.Store.Path)
	str("shell-config", &cfg.Shell.ConfigPath)

	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(parent context.Context, cfg *config.Config) error {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logCfg.Version = version
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("Logger ready", zap.Stringer("level", logger.Level()))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return err
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage <session-id>",
		Short: "Print the usage records captured for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.ListBySession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if records == nil {
				records = []types.UsageRecord{}
			}

			out, err := sonic.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
