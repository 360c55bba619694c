package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that refresh token was not found
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrTokenExpired indicates a refresh token past its expiry
	ErrTokenExpired = errors.New("refresh token expired")

	// ErrDocumentNotFound indicates that the document does not exist in the collection
	ErrDocumentNotFound = errors.New("document not found")

	// ErrForbidden indicates that the user may not change the document
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidDocument indicates fields or a patch the store cannot apply
	ErrInvalidDocument = errors.New("invalid document")
)
