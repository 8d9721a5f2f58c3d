package errors

import (
	"math"
	"testing"
)

func TestValidateRate(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		wantErr bool
	}{
		{"positive", 5, false},
		{"fractional", 0.25, false},

		{"zero", 0, true},
		{"negative", -1, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRate("max_belt_output", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRate(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidConfig) {
				t.Errorf("ValidateRate(%v) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidConfig)
			}
		})
	}
}

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"ascii", "x", false},
		{"unicode", "█", false},
		{"arrow", "→", false},

		{"empty", "", true},
		{"two runes", "ab", true},
		{"space", " ", true},
		{"tab", "\t", true},
		{"control", "\x01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbol("glyph", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbol(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDistinct(t *testing.T) {
	if err := ValidateDistinct("map", map[string]string{"ore": "o", "empty": ".", "inaccessible": "x"}); err != nil {
		t.Errorf("distinct symbols should pass, got %v", err)
	}

	err := ValidateDistinct("map", map[string]string{"ore": "o", "empty": "o"})
	if err == nil {
		t.Fatal("colliding symbols should fail")
	}
	want := `INVALID_CONFIG: map symbols empty and ore both use "o"`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "out/layout.txt", false},
		{"absolute", "/tmp/layout.svg", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 600)), true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
		{"directory", "out/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
