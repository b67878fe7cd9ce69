package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountNotConnected indicates no social account exists for the
	// (user, platform) pair
	ErrAccountNotConnected = errors.New("account not connected")

	// ErrAccountInactive indicates the social account was deactivated and
	// must not serve API calls until re-authenticated
	ErrAccountInactive = errors.New("account inactive, re-authentication required")

	// ErrReauthRequired indicates the stored tokens can no longer be
	// refreshed and the user must go through the OAuth flow again
	ErrReauthRequired = errors.New("re-authentication required")

	// ErrPlatformNotSupported indicates the platform has no provider client
	ErrPlatformNotSupported = errors.New("platform not supported")

	// ErrProviderNotConfigured indicates missing OAuth client credentials
	ErrProviderNotConfigured = errors.New("provider not configured")
)
