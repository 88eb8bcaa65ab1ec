package storage

import "errors"

// ErrRunNotFound is returned when no stored run matches a lookup.
var ErrRunNotFound = errors.New("run not found")
