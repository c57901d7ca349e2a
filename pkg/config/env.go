// Package config provides environment variable readers shared by the
// configuration loader.
//
// Each reader overwrites *dst only when the variable is set to a non-empty
// value. A malformed value is reported as an error that names the variable,
// so a typo in a limit stops startup instead of silently falling back.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LookupString returns the trimmed value of key and whether it was set.
func LookupString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// GetEnvString returns the value of key, or defaultValue when it is unset.
//
// Example:
//
//	level := GetEnvString("LOG_LEVEL", "info")
func GetEnvString(key, defaultValue string) string {
	if value, ok := LookupString(key); ok {
		return value
	}
	return defaultValue
}

// StringVar sets *dst to the value of key.
func StringVar(key string, dst *string) {
	if value, ok := LookupString(key); ok {
		*dst = value
	}
}

// IntVar sets *dst to the integer value of key.
//
// Example:
//
//	port := 4000
//	if err := IntVar("PORT", &port); err != nil {
//	    return err
//	}
func IntVar(key string, dst *int) error {
	value, ok := LookupString(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: expected an integer", key, value)
	}
	*dst = parsed
	return nil
}

// Int64Var sets *dst to the 64-bit integer value of key.
func Int64Var(key string, dst *int64) error {
	value, ok := LookupString(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: expected an integer", key, value)
	}
	*dst = parsed
	return nil
}

// BoolVar sets *dst to the boolean value of key.
//
// Accepted values are those of strconv.ParseBool: "1", "t", "true", "0",
// "f", "false" in any case.
func BoolVar(key string, dst *bool) error {
	value, ok := LookupString(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: expected true or false", key, value)
	}
	*dst = parsed
	return nil
}

// DurationVar sets *dst to the duration value of key ("30s", "1m", "1h30m").
func DurationVar(key string, dst *time.Duration) error {
	value, ok := LookupString(key)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: expected a duration such as '5s' or '1m'", key, value)
	}
	*dst = parsed
	return nil
}

// StringListVar sets *dst to the comma-separated values of key. Entries are
// trimmed and empty entries dropped.
//
// Example:
//
//	// RATE_LIMIT_TRUSTED_PROXIES="10.0.0.0/8, 172.16.0.0/12"
//	// Result: ["10.0.0.0/8", "172.16.0.0/12"]
func StringListVar(key string, dst *[]string) {
	value, ok := LookupString(key)
	if !ok {
		return
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	*dst = result
}
