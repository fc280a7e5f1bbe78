package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewSchemaID generates a UUIDv7 schema identifier.
// Time-ordered IDs keep schema versions clustered by creation time.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSchemaID() SchemaID {
	return SchemaID(uuid.Must(uuid.NewV7()).String())
}

// NewAPIKeyID generates a UUIDv7 API key identifier.
func NewAPIKeyID() APIKeyID {
	return APIKeyID(uuid.Must(uuid.NewV7()).String())
}

// ParseSchemaID validates and converts a string to SchemaID.
func ParseSchemaID(s string) (SchemaID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSchemaID, err)
	}
	return SchemaID(u.String()), nil
}

// ParseAPIKeyID validates and converts a string to APIKeyID.
func ParseAPIKeyID(s string) (APIKeyID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAPIKeyID, err)
	}
	return APIKeyID(u.String()), nil
}

// SchemaIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func SchemaIDTime(id SchemaID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
