// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aosauth/aosauth/internal/auth"
)

// MockIdentityStore is a testify mock of auth.IdentityStore.
type MockIdentityStore struct {
	mock.Mock
}

var _ auth.IdentityStore = (*MockIdentityStore)(nil)

// NewMockIdentityStore creates a mock that asserts its expectations on cleanup.
func NewMockIdentityStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockIdentityStore {
	m := &MockIdentityStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// PasswordHashFromEmail implements auth.IdentityStore.
func (m *MockIdentityStore) PasswordHashFromEmail(ctx context.Context, email auth.Email) (auth.PasswordHash, bool, error) {
	ret := m.Called(ctx, email)
	return ret.Get(0).(auth.PasswordHash), ret.Bool(1), ret.Error(2)
}

// UserIDFromSession implements auth.IdentityStore.
func (m *MockIdentityStore) UserIDFromSession(ctx context.Context, key auth.SessionKey) (auth.UserID, bool, error) {
	ret := m.Called(ctx, key)
	return ret.Get(0).(auth.UserID), ret.Bool(1), ret.Error(2)
}

// CreateUser implements auth.IdentityStore.
func (m *MockIdentityStore) CreateUser(ctx context.Context, email auth.Email, hash auth.PasswordHash) (auth.UserID, error) {
	ret := m.Called(ctx, email, hash)
	return ret.Get(0).(auth.UserID), ret.Error(1)
}

// SetSession implements auth.IdentityStore.
func (m *MockIdentityStore) SetSession(ctx context.Context, email auth.Email, session *auth.Session) (auth.UserID, error) {
	ret := m.Called(ctx, email, session)
	return ret.Get(0).(auth.UserID), ret.Error(1)
}

// DeleteSession implements auth.IdentityStore.
func (m *MockIdentityStore) DeleteSession(ctx context.Context, key auth.SessionKey) error {
	ret := m.Called(ctx, key)
	return ret.Error(0)
}
