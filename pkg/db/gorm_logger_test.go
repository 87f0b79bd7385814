package db

import (
	"testing"

	gormlogger "gorm.io/gorm/logger"
)

func TestParseGormLogLevel(t *testing.T) {
	cases := []struct {
		value   string
		want    gormlogger.LogLevel
		wantErr bool
	}{
		{"silent", gormlogger.Silent, false},
		{"error", gormlogger.Error, false},
		{" Warn ", gormlogger.Warn, false},
		{"INFO", gormlogger.Info, false},
		{"trace", defaultGormLogLevel, true},
	}

	for _, tc := range cases {
		got, err := parseGormLogLevel(tc.value)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseGormLogLevel(%q) error = %v, wantErr %v", tc.value, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("parseGormLogLevel(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestNewGormLoggerDefaults(t *testing.T) {
	l, err := newGormLogger("")
	if err != nil {
		t.Fatalf("newGormLogger returned error for empty level: %v", err)
	}
	sl, ok := l.(*gormSlogLogger)
	if !ok {
		t.Fatalf("unexpected logger type %T", l)
	}
	if sl.logLevel != defaultGormLogLevel {
		t.Errorf("expected default level %v, got %v", defaultGormLogLevel, sl.logLevel)
	}
	if !sl.ignoreRecordNotFoundError {
		t.Error("expected record-not-found errors to be ignored by default")
	}
}
