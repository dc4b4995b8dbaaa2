// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aosauth/aosauth/internal/config"
	"github.com/aosauth/aosauth/internal/logging"
	"github.com/aosauth/aosauth/internal/xdg"
)

// serviceName tags every log record.
const serviceName = "aosauth"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the aosauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aosauth",
		Short: "aosauth - session-based identity service",
		Long: `aosauth authenticates users by email and password, issues opaque
session cookies and resolves them back to user ids.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (default: XDG_CONFIG_HOME/aosauth/config.yaml when present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewUseraddCmd())
	cmd.AddCommand(NewRepairCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewGenkeyCmd())

	return cmd
}

// resolveConfigPath returns the explicit path, or the XDG config file when
// it exists, or "" to run on defaults and environment alone.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	path, err := xdg.ConfigFile()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
	}
	return path, nil
}

// loadConfig merges defaults, the config file, the environment and the
// flags the user set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := resolveConfigPath(configFile)
	if err != nil {
		return nil, err
	}
	return config.Load(path, cmd.Flags())
}

// newLogger builds the process logger from cfg and installs it as the
// slog default.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return logger, nil
}
