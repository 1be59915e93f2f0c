package session

import "github.com/google/uuid"

// NewID mints a fresh session id: a 128-bit random value rendered as a
// lowercase hyphenated UUID, matching the `^[0-9a-f-]{36}$` shape S4 checks.
func NewID() string {
	return uuid.New().String()
}
