// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

// Package errutil extracts codes and context from oops errors for logs,
// HTTP mapping and tests.
package errutil

import (
	"fmt"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" when err has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	if code == nil {
		return ""
	}
	if s, ok := code.(string); ok {
		return s
	}
	return fmt.Sprint(code)
}

// Context returns the merged oops context of err, or nil.
func Context(err error) map[string]any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		return ctx
	}
	return nil
}

// Attrs returns slog key/value pairs describing err: the message, plus the
// code and context when err is an oops error.
func Attrs(err error) []any {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := Context(err); ctx != nil {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
