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

// NewRepairCmd creates the repair subcommand.
func NewRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair EMAIL...",
		Short: "Rewrite missing user id to email index entries",
		Long: `Check each EMAIL and, when its user id has no reverse entry or the entry
names another address, rewrite it from the email to user id entry. Engines
that were written by an older release or restored from a partial backup can
be left in that state.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRepair,
	}
}

func runRepair(cmd *cobra.Command, args []string) error {
	emails := make([]auth.Email, 0, len(args))
	for _, raw := range args {
		email, err := auth.ParseEmail(raw)
		if err != nil {
			return err
		}
		emails = append(emails, email)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return oops.Code("REPAIR_STORE_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	identities := store.NewIdentityStore(engine, store.WithLogger(logger))
	defer func() {
		if closeErr := identities.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing identity store", closeErr)
		}
	}()

	for _, email := range emails {
		if _, found, err := identities.UserIDFromEmail(ctx, email); err != nil {
			return err
		} else if !found {
			cmd.Printf("%s: not registered\n", email)
			continue
		}

		repaired, err := identities.RepairIndex(ctx, email)
		if err != nil {
			return oops.Code("REPAIR_FAILED").With("email", email.String()).Wrap(err)
		}
		if repaired {
			cmd.Printf("%s: repaired\n", email)
		} else {
			cmd.Printf("%s: ok\n", email)
		}
	}
	return nil
}
