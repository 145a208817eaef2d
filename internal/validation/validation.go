package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	colorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateMaxLength checks that value has at most max characters
func ValidateMaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

// ValidateRequired checks that value is not blank
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

// ValidateAvatarColor checks that color is a #RRGGBB value from palette
func ValidateAvatarColor(color string, palette []string) error {
	if !colorRegex.MatchString(color) {
		return ValidationError{Field: "avatar_color", Message: "must be a #RRGGBB colour"}
	}
	if !slices.ContainsFunc(palette, func(c string) bool { return strings.EqualFold(c, color) }) {
		return ValidationError{Field: "avatar_color", Message: "not an available colour"}
	}
	return nil
}
