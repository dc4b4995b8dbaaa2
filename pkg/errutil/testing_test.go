// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/aosauth/aosauth/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	errutil.AssertErrorCode(t, oops.Code("MY_CODE").Errorf("test error"), "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	errutil.AssertErrorContext(t, oops.With("user_id", "123").Errorf("test error"), "user_id", "123")
}

func TestAssertNoSecrets(t *testing.T) {
	err := oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").Errorf("login failed")
	errutil.AssertNoSecrets(t, err, "hunter2", "$argon2id$")
}
