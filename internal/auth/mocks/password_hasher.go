// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aosauth/aosauth/internal/auth"
)

// MockPasswordHasher is a testify mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements auth.PasswordHasher.
func (m *MockPasswordHasher) Hash(ctx context.Context, password auth.Password) (auth.PasswordHash, error) {
	ret := m.Called(ctx, password)
	return ret.Get(0).(auth.PasswordHash), ret.Error(1)
}

// Verify implements auth.PasswordHasher.
func (m *MockPasswordHasher) Verify(ctx context.Context, password auth.Password, hash auth.PasswordHash) (bool, error) {
	ret := m.Called(ctx, password, hash)
	return ret.Bool(0), ret.Error(1)
}
