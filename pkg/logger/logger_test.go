package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevelFiltering(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() {
		Logger = originalLogger
		SetLogLevel(INFO)
	})

	var buf bytes.Buffer
	Logger = slog.New(slog.NewTextHandler(&buf, nil))

	SetLogLevel(INFO)
	Debug("debug message should be filtered")
	Info("info message should appear")
	Warn("warn message should appear")

	output := buf.String()
	if strings.Contains(output, "debug message should be filtered") {
		t.Fatalf("debug message was logged at INFO level:\n%s", output)
	}
	if !strings.Contains(output, "info message should appear") {
		t.Fatalf("info message was not logged:\n%s", output)
	}
	if !strings.Contains(output, "warn message should appear") {
		t.Fatalf("warn message was not logged:\n%s", output)
	}
}

func TestLogLevelFilteringAtError(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() {
		Logger = originalLogger
		SetLogLevel(INFO)
	})

	var buf bytes.Buffer
	Logger = slog.New(slog.NewTextHandler(&buf, nil))

	SetLogLevel(ERROR)
	Warn("warn message should be filtered")
	Error("error message should appear")

	output := buf.String()
	if strings.Contains(output, "warn message should be filtered") {
		t.Fatalf("warn message was logged at ERROR level:\n%s", output)
	}
	if !strings.Contains(output, "error message should appear") {
		t.Fatalf("error message was not logged:\n%s", output)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		value   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"  Info ", INFO, false},
		{"WARN", WARN, false},
		{"error", ERROR, false},
		{"verbose", INFO, true},
	}

	for _, tc := range cases {
		got, err := ParseLogLevel(tc.value)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tc.value, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
