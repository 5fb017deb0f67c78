package db

import "github.com/pkg/errors"

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing document.
var ErrDuplicate = errors.New("already exists")
