// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package main

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aosauth/aosauth/internal/auth"
)

// defaultKeyBytes is the size of a generated hash key before hex encoding.
const defaultKeyBytes = 32

// NewGenkeyCmd creates the genkey subcommand.
func NewGenkeyCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Print a random secret for auth.hash_key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := generateKey(rand.Reader, size)
			if err != nil {
				return err
			}
			cmd.Println(key)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "bytes", defaultKeyBytes, "number of random bytes")

	return cmd
}

// generateKey reads size bytes from r and hex-encodes them.
func generateKey(r io.Reader, size int) (string, error) {
	if size < auth.MinHashKeyLen {
		return "", oops.Code("GENKEY_INVALID_SIZE").
			With("bytes", size).
			Errorf("key must be at least %d bytes", auth.MinHashKeyLen)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", oops.Code("GENKEY_RANDOM_FAILED").Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}
