// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/aosauth/aosauth/internal/auth"
)

// errorStatusMap assigns a status to each auth outcome. Infrastructure
// faults are checked first so a storage error is never reported as a
// failed login.
var errorStatusMap = []struct {
	target error
	status int
}{
	{auth.ErrInfrastructure, http.StatusInternalServerError},
	{auth.ErrValidation, http.StatusBadRequest},
	{auth.ErrNoCookie, http.StatusBadRequest},
	{auth.ErrMalformedKey, http.StatusBadRequest},
	{auth.ErrUnknownSession, http.StatusUnauthorized},
	{auth.ErrNoSuchAccount, http.StatusUnauthorized},
	{auth.ErrBadCredentials, http.StatusUnauthorized},
}

func statusFromError(err error) int {
	for _, e := range errorStatusMap {
		if errors.Is(err, e.target) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// userMessage is the text shown to the client for err. It never includes
// internal detail.
func userMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrInfrastructure):
		return "Something went wrong on our side. Please try again."
	case errors.Is(err, auth.ErrValidation):
		return "Please enter a valid email address and password."
	case errors.Is(err, auth.ErrNoCookie), errors.Is(err, auth.ErrMalformedKey), errors.Is(err, auth.ErrUnknownSession):
		return "Please log in."
	case errors.Is(err, auth.ErrNoSuchAccount):
		return "You don't have a password in our records. Are you registered?"
	case errors.Is(err, auth.ErrBadCredentials):
		return "Your email and password don't match."
	default:
		return http.StatusText(statusFromError(err))
	}
}
