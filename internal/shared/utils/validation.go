package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits for terminal commands
const (
	MaxIDLength    = 128
	MaxPathLength  = 4096
	MaxInputSize   = 1 * 1024 * 1024 // single write
	MaxEnvVars     = 256
	MaxEnvKeyLen   = 256
	MaxEnvValueLen = 32 * 1024
	MaxDimension   = 1000
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid request")

// SafeIDPattern allows alphanumeric, hyphens, underscores, dots and colons
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrInvalid, fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%w: %s must not exceed %d characters", ErrInvalid, fieldName, maxLen)
	}

	// Null bytes cannot cross exec boundaries
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%w: %s contains invalid characters", ErrInvalid, fieldName)
	}

	return nil
}

// ValidateID validates a session or client identifier
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %s contains invalid characters (only alphanumeric, '.', ':', '-' and '_' allowed)", ErrInvalid, fieldName)
	}

	return nil
}

// ValidatePath validates an optional filesystem path such as a shell override or cwd
func ValidatePath(path, fieldName string) error {
	return ValidateString(path, fieldName, 1, MaxPathLength, false)
}

// ValidateEnv validates extra environment variables for a spawn
func ValidateEnv(env map[string]string) error {
	if len(env) > MaxEnvVars {
		return fmt.Errorf("%w: env must not exceed %d variables", ErrInvalid, MaxEnvVars)
	}

	for key, value := range env {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			return fmt.Errorf("%w: env key %q is not a valid variable name", ErrInvalid, key)
		}
		if len(key) > MaxEnvKeyLen {
			return fmt.Errorf("%w: env key %q is too long", ErrInvalid, key)
		}
		if len(value) > MaxEnvValueLen || strings.Contains(value, "\x00") {
			return fmt.Errorf("%w: env value for %q is invalid", ErrInvalid, key)
		}
	}
	return nil
}

// ValidateDimensions validates optional terminal dimensions; zero means default
func ValidateDimensions(cols, rows uint16) error {
	if cols > MaxDimension || rows > MaxDimension {
		return fmt.Errorf("%w: dimensions must not exceed %d", ErrInvalid, MaxDimension)
	}
	return nil
}

// ValidateInput validates the size of a single terminal write
func ValidateInput(data string) error {
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: input size %d bytes exceeds maximum %d bytes", ErrInvalid, len(data), MaxInputSize)
	}
	return nil
}
