package errors

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidateRate checks that a throughput parameter is usable as a variable
// upper bound: positive and finite.
func ValidateRate(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidConfig, "%s must be finite, got %v", name, v)
	}
	if v <= 0 {
		return New(ErrCodeInvalidConfig, "%s must be positive, got %v", name, v)
	}
	return nil
}

// ValidateSymbol checks that s is exactly one printable, non-space character.
// Map alphabets and display glyphs are both single runes.
func ValidateSymbol(name, s string) error {
	if utf8.RuneCountInString(s) != 1 {
		return New(ErrCodeInvalidConfig, "%s must be a single character, got %q", name, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsControl(r) || unicode.IsSpace(r) {
		return New(ErrCodeInvalidConfig, "%s must be a printable character, got %q", name, s)
	}
	return nil
}

// ValidateDistinct checks that no two symbols in an alphabet collide.
func ValidateDistinct(kind string, symbols map[string]string) error {
	seen := make(map[string]string, len(symbols))
	for name, s := range symbols {
		if other, ok := seen[s]; ok {
			a, b := other, name
			if b < a {
				a, b = b, a
			}
			return New(ErrCodeInvalidConfig, "%s symbols %s and %s both use %q", kind, a, b, s)
		}
		seen[s] = name
	}
	return nil
}

// ValidatePath validates an output path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") {
		return New(ErrCodeInvalidPath, "path must name a file, not a directory")
	}

	return nil
}
