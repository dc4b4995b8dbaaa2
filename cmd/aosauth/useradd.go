// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/internal/store"
	"github.com/aosauth/aosauth/pkg/errutil"
)

// NewUseraddCmd creates the useradd subcommand.
func NewUseraddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "useradd EMAIL PASSWORD",
		Short: "Create a user",
		Long: `Hash PASSWORD and register EMAIL, printing the user id. Registering an
existing email prints its id and leaves the stored password unchanged.`,
		Args: cobra.ExactArgs(2),
		RunE: runUseradd,
	}
}

func runUseradd(cmd *cobra.Command, args []string) error {
	email, err := auth.ParseEmail(args[0])
	if err != nil {
		return err
	}
	password, err := auth.ParsePassword(args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	hasher, err := newHasher(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return oops.Code("USERADD_STORE_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	identities := store.NewIdentityStore(engine, store.WithLogger(logger))
	defer func() {
		if closeErr := identities.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing identity store", closeErr)
		}
	}()

	service, err := auth.NewService(identities, hasher, auth.WithLogger(logger))
	if err != nil {
		return err
	}
	id, err := service.Register(ctx, email, password)
	if err != nil {
		return err
	}

	cmd.Println(id.String())
	return nil
}
