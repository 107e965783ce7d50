package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID is a string-typed UUID used for goals, plans, and agents.
type ID string

// NewID generates a new random UUID v4.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses and validates a string as a UUID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}
	return ID(parsed.String()), nil
}

// Validate checks that the ID holds a well-formed UUID.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}
	return nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// Short returns the first eight characters of the ID, used for
// human-facing identifiers like agent names.
func (id ID) Short() string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON serializes the ID as a JSON string, or null when zero.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON deserializes and validates a JSON string into an ID.
// Empty strings set the zero value.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal ID: %w", err)
	}
	if s == "" {
		*id = ""
		return nil
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
