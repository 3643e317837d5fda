package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		want    zapcore.Level
		wantErr bool
	}{
		{"info console", "info", "console", zapcore.InfoLevel, false},
		{"debug json", "debug", "json", zapcore.DebugLevel, false},
		{"upper case", "WARN", "json", zapcore.WarnLevel, false},
		{"invalid", "loud", "json", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("expected level %v to be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
				t.Errorf("expected level %v to be disabled", tt.want-1)
			}
		})
	}
}
