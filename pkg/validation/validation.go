package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
)

const (
	MinWorkers = 1
	MaxWorkers = 20

	MinPasswordLength = 8
	MaxPasswordLength = 100
)

func ValidateWorkerCount(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	return nil
}

// ValidateID checks a backend identifier; kind names it in the message ("project", "document").
func ValidateID(kind string, id int) error {
	if id <= 0 {
		return fmt.Errorf("%s ID must be a positive integer, got %d", kind, id)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return nil
}

func ValidatePassword(password string) error {
	if n := len(password); n < MinPasswordLength || n > MaxPasswordLength {
		return fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

// ValidateOneOf checks value against a closed set of choices.
func ValidateOneOf(fieldName, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (must be one of: %s)", fieldName, value, strings.Join(allowed, ", "))
}

// ValidateBaseURL accepts absolute http(s) URLs.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid API URL: %q (must be an absolute http or https URL)", raw)
	}
	return nil
}

func ValidateTimeout(d time.Duration) error {
	if d <= 0 || d > 10*time.Minute {
		return fmt.Errorf("timeout must be between 0s and 10m, got %s", d)
	}
	return nil
}

// ValidateFraction checks a ratio such as the materiality percentage.
func ValidateFraction(fieldName string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %g", fieldName, v)
	}
	return nil
}

func ValidateNonNegative(fieldName string, v float64) error {
	if v < 0 {
		return fmt.Errorf("%s cannot be negative, got %g", fieldName, v)
	}
	return nil
}
