package uid

import (
	"os"

	"github.com/google/uuid"
)

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// Owner generates a lock owner token. The host name prefix only helps
// when reading logs; uniqueness comes from the uuid.
func Owner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return New()
	}
	return host + "/" + New()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
