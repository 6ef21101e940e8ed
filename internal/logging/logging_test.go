package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"", "console", "json", "JSON"} {
		l, err := New("info", format)
		if err != nil {
			t.Fatalf("New(info, %q): %v", format, err)
		}
		if l.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("debug should be disabled at info level")
		}
		if !l.Core().Enabled(zapcore.InfoLevel) {
			t.Fatalf("info should be enabled")
		}
	}
	l, err := New("DEBUG", "console")
	if err != nil || !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug logger: %v", err)
	}
	if _, err := New("loud", "console"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}
