// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrCredentialExpired = errors.New("credential expired")
	ErrInvalidSetting    = errors.New("invalid setting")
)
