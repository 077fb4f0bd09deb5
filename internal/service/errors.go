package service

import "net/http"

// Error is a failure the client is allowed to see: an HTTP status class plus
// a user-safe message. Anything else (store or cache connectivity, unexpected
// states) stays an ordinary wrapped error and is reported generically by the
// HTTP layer.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrDuplicateEmail    = &Error{Status: http.StatusBadRequest, Message: "An account with this email already exists."}
	ErrDuplicateUsername = &Error{Status: http.StatusBadRequest, Message: "This username is already taken."}

	// ErrInvalidCredentials intentionally covers both unknown-email and
	// wrong-password so responses cannot be used for account enumeration.
	ErrInvalidCredentials = &Error{Status: http.StatusUnauthorized, Message: "Invalid email or password."}

	ErrRefreshTokenInvalid = &Error{Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token."}

	ErrUnauthorized   = &Error{Status: http.StatusUnauthorized, Message: "You must be logged in to perform this action."}
	ErrSessionExpired = &Error{Status: http.StatusUnauthorized, Message: "Your session has expired. Please log in again."}
	ErrTokenInvalid   = &Error{Status: http.StatusUnauthorized, Message: "Invalid or malformed token."}

	ErrUserNotFound = &Error{Status: http.StatusNotFound, Message: "User not found."}
)
