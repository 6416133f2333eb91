//go:build property

package payload

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestIPSelectionOrder encodes P8: request.ip equals X-Forwarded-For's
// first comma-part if present, else X-Real-IP, else "Unknown".
func TestIPSelectionOrder(t *testing.T) {
	params := gopter.DefaultTestParameters()
	props := gopter.NewProperties(params)

	props.Property("X-Forwarded-For wins and is comma-split", prop.ForAll(
		func(first, second, realIP string) bool {
			headers := map[string]string{
				"X-Forwarded-For": first + ", " + second,
				"X-Real-IP":       realIP,
			}
			return SelectIP(headers) == strings.TrimSpace(first)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" && !strings.Contains(s, ",") }),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	props.Property("X-Real-IP wins when X-Forwarded-For absent", prop.ForAll(
		func(realIP string) bool {
			headers := map[string]string{"X-Real-IP": realIP}
			return SelectIP(headers) == strings.TrimSpace(realIP)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	props.Property("Unknown when neither header present", prop.ForAll(
		func(junkKey string) bool {
			headers := map[string]string{junkKey: "irrelevant"}
			if junkKey == "X-Forwarded-For" || junkKey == "X-Real-IP" {
				return true
			}
			return SelectIP(headers) == "Unknown"
		},
		gen.AlphaString(),
	))

	props.TestingRun(t)
}
