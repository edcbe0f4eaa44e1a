package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestNewEmitsServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, " lendmath ", "test")
	logger.Info("rates computed", "symbol", "DAI")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for key, want := range map[string]string{
		"service":  "lendmath",
		"env":      "test",
		"severity": "INFO",
		"message":  "rates computed",
		"symbol":   "DAI",
	} {
		if got, _ := line[key].(string); got != want {
			t.Fatalf("%s = %q want %q", key, got, want)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp in %v", line)
	}
}

func TestSetupFileWritesThroughRotator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lendmath.log")
	logger, closer := SetupFile("lendmath", "", path)
	logger.Warn("mismatch")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	matches, err := filepath.Glob(path)
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected log file at %s: %v", path, err)
	}
}

func TestRedactURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{
			in:   "postgres://lend:hunter2@db:5432/reports?sslmode=disable",
			want: "postgres://lend:[REDACTED]@db:5432/reports?sslmode=disable",
		},
		{
			in:   "https://rpc.example.org/v1?apikey=abc&chain=1",
			want: "https://rpc.example.org/v1?apikey=[REDACTED]&chain=1",
		},
		{
			in:   "https://mainnet.infura.io/v3/0123456789abcdef0123456789abcdef",
			want: "https://mainnet.infura.io/v3/[REDACTED]",
		},
		{in: "http://localhost:8545", want: "http://localhost:8545"},
		{in: "reports.db", want: "reports.db"},
	}
	for _, tc := range cases {
		if got := RedactURL(tc.in); got != tc.want {
			t.Fatalf("RedactURL(%q) = %q want %q", tc.in, got, tc.want)
		}
	}
}
