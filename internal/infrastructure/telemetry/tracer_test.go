package telemetry

import "testing"

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://otel-collector:4318", "otel-collector:4318"},
		{"https://collector.example.com/v1/traces", "collector.example.com"},
		{"localhost:4318/", "localhost:4318"},
	}

	for _, tt := range tests {
		if got := parseEndpoint(tt.in); got != tt.want {
			t.Errorf("parseEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
