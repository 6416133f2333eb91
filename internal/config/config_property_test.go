//go:build property
// +build property

package config_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/config"
)

// TestMalformedConfigAlwaysFallsBackDeterministically checks spec.md P10:
// any malformed JSON blob yields the exact documented defaults and never
// panics, regardless of the garbage fed in.
func TestMalformedConfigAlwaysFallsBackDeterministically(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	want := config.Default()

	properties.Property("arbitrary non-JSON bytes fall back to Default()", prop.ForAll(
		func(garbage string) bool {
			res := config.Parse([]byte("not-json-prefix:" + garbage))
			if res.Diagnostic == nil {
				return false
			}
			got := res.Config
			if len(got.CollectorEndpoints) != len(want.CollectorEndpoints) {
				return false
			}
			for i := range got.CollectorEndpoints {
				if got.CollectorEndpoints[i] != want.CollectorEndpoints[i] {
					return false
				}
			}
			return got.SensitiveKeysRegex == want.SensitiveKeysRegex &&
				got.BufferResponse == want.BufferResponse &&
				got.LogLevel == want.LogLevel &&
				!got.Valid
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
