// Package testutil provides shared fixtures, fakes and property-test
// configuration for the module's tests.
package testutil

import (
	"os"
	"strings"
)

// TestIntensity represents the thoroughness level of test execution.
type TestIntensity int

const (
	// IntensityQuick keeps fixture trees small for fast feedback during development.
	IntensityQuick TestIntensity = iota
	// IntensityThorough builds larger and deeper trees for CI.
	IntensityThorough
)

// String returns the string representation of the test intensity.
func (ti TestIntensity) String() string {
	switch ti {
	case IntensityQuick:
		return "quick"
	case IntensityThorough:
		return "thorough"
	default:
		return "unknown"
	}
}

// TestConfig holds the limits used when generating fixtures.
type TestConfig struct {
	Intensity TestIntensity

	// Maximum number of files per generated directory
	MaxFiles int

	// Maximum directory depth for nested structures
	MaxDepth int

	// Enable verbose test output
	VerboseOutput bool
}

// GetTestConfig reads TEST_INTENSITY, TEST_QUICK and VERBOSE_TESTS.
// Defaults to quick mode if no environment variables are set.
func GetTestConfig() TestConfig {
	config := TestConfig{Intensity: ParseIntensity(os.Getenv("TEST_INTENSITY"))}

	// TEST_QUICK takes precedence
	if ParseBool(os.Getenv("TEST_QUICK")) {
		config.Intensity = IntensityQuick
	}

	switch config.Intensity {
	case IntensityThorough:
		config.MaxFiles = 50
		config.MaxDepth = 5
	default:
		config.MaxFiles = 8
		config.MaxDepth = 3
	}

	config.VerboseOutput = ParseBool(os.Getenv("VERBOSE_TESTS"))
	return config
}

// ParseIntensity parses a string into a TestIntensity value.
// Returns IntensityQuick for invalid or empty strings.
func ParseIntensity(s string) TestIntensity {
	if strings.EqualFold(strings.TrimSpace(s), "thorough") {
		return IntensityThorough
	}
	return IntensityQuick
}

// ParseBool accepts "1", "true" and "yes" (case-insensitive) as true.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
