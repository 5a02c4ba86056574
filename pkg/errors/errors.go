package errors

import "errors"

var (
	// auth
	ErrInvalidCredentials = errors.New("invalid password")
	ErrUserNotFound       = errors.New("there is no such user")

	// registration
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrUsernameTooShort = errors.New("username must be at least 5 characters long")
	ErrPasswordTooShort = errors.New("password must be at least 10 characters long")
	ErrUsernameExists   = errors.New("username is taken")

	// games
	ErrGameExists   = errors.New("game already exists")
	ErrGameNotFound = errors.New("game not found")

	// submission admission
	ErrDailyLimit         = errors.New("daily submission limit exceeded")
	ErrNameLength         = errors.New("submission name must be between 10 and 50 characters long")
	ErrNameExists         = errors.New("submission name already exists")
	ErrURLExists          = errors.New("submission url already exists")
	ErrUnknownGame        = errors.New("unknown game")
	ErrInvalidURL         = errors.New("invalid url")
	ErrMalformedDate      = errors.New("malformed submission date")
	ErrSubmissionNotFound = errors.New("submission not found")

	ErrNilUser       = errors.New("user is nil")
	ErrNilGame       = errors.New("game is nil")
	ErrNilSubmission = errors.New("submission is nil")
	ErrInternal      = errors.New("internal error")
)
