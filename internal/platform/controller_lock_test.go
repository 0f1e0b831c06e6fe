package platform

import "testing"

func TestNormalizeLockComponent(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback string
		want     string
	}{
		{name: "preserves alnum and separators", raw: "metrogo-v1.2_3", fallback: "app", want: "metrogo-v1.2_3"},
		{name: "replaces unsupported runes", raw: "10.0.0.7:5000", fallback: "app", want: "10.0.0.7_5000"},
		{name: "serial device path", raw: "/dev/ttyUSB0", fallback: "app", want: "dev_ttyUSB0"},
		{name: "empty uses fallback", raw: "   ", fallback: "fallback", want: "fallback"},
		{name: "all unsupported uses fallback", raw: "[]{}", fallback: "fallback", want: "fallback"},
	}

	for _, tc := range tests {
		got := normalizeLockComponent(tc.raw, tc.fallback)
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestControllerLockName(t *testing.T) {
	if got := controllerLockName("metrogo", "[::1]:5000"); got != "metrogo-1_5000" {
		t.Fatalf("unexpected lock name: %q", got)
	}
	if got := controllerLockName("", ""); got != "app-default" {
		t.Fatalf("unexpected fallback lock name: %q", got)
	}
}
