package uuid

import (
	google_uuid "github.com/google/uuid"
)

// MustUUID returns a random UUID string. It panics
// if the system source of randomness fails.
func MustUUID() string {
	return google_uuid.Must(google_uuid.NewRandom()).String()
}
