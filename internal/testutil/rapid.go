package testutil

import (
	"testing"

	"pgregory.net/rapid"
)

// RapidCheck wraps rapid.Check and reports the active intensity when
// VERBOSE_TESTS is set. The iteration count itself is controlled with
// -rapid.checks.
func RapidCheck(t *testing.T, fn func(*rapid.T)) {
	t.Helper()

	config := GetTestConfig()
	if config.VerboseOutput {
		if deadline, ok := t.Deadline(); ok {
			t.Logf("property test starting (intensity: %s, deadline: %s)", config.Intensity, deadline.Format("15:04:05"))
		} else {
			t.Logf("property test starting (intensity: %s, no deadline)", config.Intensity)
		}
	}

	rapid.Check(t, fn)
}

// RapidSegmentGenerator produces single path components that are valid on
// every file system the tests run on.
func RapidSegmentGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9_-]{1,10}`)
}

// RapidNameGenerator produces process image names.
func RapidNameGenerator() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		return rapid.StringMatching(`[a-z][a-z0-9]{0,11}`).Draw(t, "stem") + ".exe"
	})
}
