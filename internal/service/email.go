package service

import (
	"fmt"
	"strings"
)

// NormalizeEmail trims surrounding whitespace and lower-cases the domain.
// The local part keeps its case. The split is on the last '@'.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: users must have an email address", ErrValidation)
	}

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "", fmt.Errorf("%w: enter a valid email address", ErrValidation)
	}

	local, domain := email[:at], email[at+1:]
	if local == "" {
		return "", fmt.Errorf("%w: email local part is empty", ErrValidation)
	}
	if domain == "" {
		return "", fmt.Errorf("%w: email domain is empty", ErrValidation)
	}

	return local + "@" + strings.ToLower(domain), nil
}
