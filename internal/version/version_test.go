// ABOUTME: Tests for version constants
// ABOUTME: Ensures version information is properly defined
package version

import (
	"strings"
	"testing"
)

func TestIdentityDefined(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Version", Version},
		{"Product", Product},
		{"Manufacturer", Manufacturer},
	}

	placeholders := []string{"TODO", "FIXME", "XXX", "placeholder"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Fatalf("%s should not be empty", tt.name)
			}
			if len(tt.value) > 100 {
				t.Errorf("%s is unreasonably long", tt.name)
			}
			for _, p := range placeholders {
				if tt.value == p {
					t.Errorf("%s should not be placeholder value: %s", tt.name, p)
				}
			}
		})
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Product+" ") || !strings.HasSuffix(s, Version) {
		t.Errorf("unexpected version string %q", s)
	}
}
