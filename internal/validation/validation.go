package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/fundval-backend/internal/apperrors"
)

// DateLayout is the accepted format for calendar dates in requests.
const DateLayout = "2006-01-02"

// ValidateUUID checks if a string is a valid UUID
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidUUID, id)
	}
	return nil
}

// ValidateUUIDs validates a slice of UUIDs
func ValidateUUIDs(ids []string) error {
	if len(ids) == 0 {
		return apperrors.ErrEmptyIDList
	}
	for _, id := range ids {
		if err := ValidateUUID(id); err != nil {
			return err
		}
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

// checkDate records a field error when value is missing or not a YYYY-MM-DD date.
func checkDate(errors map[string]string, field, value string) {
	if strings.TrimSpace(value) == "" {
		errors[field] = field + " is required"
		return
	}
	if _, err := ParseDate(value); err != nil {
		errors[field] = field + " must be in YYYY-MM-DD format"
	}
}
