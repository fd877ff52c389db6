package services

import "errors"

// Sentinel errors for every failure the API can report. Handlers match these
// with errors.Is and map them to HTTP statuses; the messages themselves are
// the user-facing text.
var (
	ErrUserNotFound            = errors.New("user not found")
	ErrIncorrectPassword       = errors.New("incorrect password")
	ErrUsernameTaken           = errors.New("username already taken")
	ErrRecoveryAnswerIncorrect = errors.New("recovery answer incorrect")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
)
