// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of every sensitive attribute.
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the output,
// whatever their type.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"hash_key":      {},
	"session_key":   {},
	"cookie":        {},
	"set-cookie":    {},
	"authorization": {},
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}
