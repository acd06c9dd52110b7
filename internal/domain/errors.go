// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation clashes with the entity's current state.
var ErrConflict = errors.New("conflict")

// ErrInvalid indicates the input fails domain validation.
var ErrInvalid = errors.New("invalid")
