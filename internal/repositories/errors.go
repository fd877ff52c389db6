package repositories

import "errors"

// ErrNotFound is returned when a requested record does not exist or is not
// visible to the requesting user. Callers should match it with errors.Is.
var ErrNotFound = errors.New("not found")
