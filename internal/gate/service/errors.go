package service

import "errors"

// Service-level sentinels. HTTP handlers translate these into the matching
// wire errors; nothing below the handler layer writes responses.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidClient      = errors.New("invalid client")
	ErrInvalidGrant       = errors.New("invalid grant")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidScope       = errors.New("invalid scope")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
