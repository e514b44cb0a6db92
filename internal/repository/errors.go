package repository

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrElevatedRequired is returned when a privileged write goes through a standard client.
	ErrElevatedRequired = errors.New("elevated credential required")

	// ErrMissingCredential is returned when an elevated client is requested without a key.
	ErrMissingCredential = errors.New("missing service role key")
)
