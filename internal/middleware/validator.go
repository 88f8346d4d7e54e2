package middleware

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	tenantIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)
)

// ValidateTenantID checks the tenant path parameter.
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant is required")
	}
	if !tenantIDRegex.MatchString(tenant) {
		return fmt.Errorf("tenant contains invalid characters")
	}
	return nil
}

// ValidateSessionID checks a session identifier.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session_id is required")
	}
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("session_id contains invalid characters")
	}
	return nil
}

// ValidateLimit parses a limit query parameter with bounds.
func ValidateLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be a number")
	}
	if n < 1 || n > max {
		return 0, fmt.Errorf("limit must be between 1 and %d", max)
	}
	return n, nil
}
