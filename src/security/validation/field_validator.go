package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 1024
	MaxMerchantLength    = 255
)

var currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateStringMaxLength checks a string's UTF-8 character count.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateCurrencyCode accepts empty (meaning unset) or a 3-letter code.
func ValidateCurrencyCode(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if !currencyCodeRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: currency code %q is not 3 uppercase letters", ErrValidationFailed, s)
	}
	return nil
}

// ValidateDateString accepts empty (meaning today) or an ISO date,
// optionally with a time part.
func ValidateDateString(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if _, err := time.Parse(layout, trimmed); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not a valid date", ErrValidationFailed, s)
}
