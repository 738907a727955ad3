package store

import (
	"fmt"
	"strings"
)

// MaxNameLength is the maximum allowed length for bot names, vendor names and
// key labels. Matches the VARCHAR(255) constraint in the database schema.
const MaxNameLength = 255

// ValidateName checks that a human-readable name is non-empty and does not
// exceed MaxNameLength.
func ValidateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%s too long: %d chars (max %d)", field, len(name), MaxNameLength)
	}
	return nil
}
