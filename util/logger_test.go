package util

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		verbosity int
		logFn     string
		want      bool // whether output is produced
	}{
		{0, "info", false},
		{0, "error", true},
		{1, "info", true},
		{1, "verbose", false},
		{2, "verbose", true},
		{2, "debug", false},
		{3, "debug", true},
	}

	for _, tt := range tests {
		t.Run(tt.logFn, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(tt.verbosity)
			l.SetOutput(&buf)
			l.SetTimestamps(false)

			switch tt.logFn {
			case "info":
				l.Info("msg")
			case "verbose":
				l.Verbose("msg")
			case "debug":
				l.Debug("msg")
			case "error":
				l.Error("msg")
			}

			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("verbosity %d %s: output = %v, want %v",
					tt.verbosity, tt.logFn, got, tt.want)
			}
		})
	}
}

func TestLoggerPrefixes(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("hello %s", "world")
	if !strings.Contains(buf.String(), "[INF] hello world") {
		t.Errorf("output %q missing [INF] prefix", buf.String())
	}

	buf.Reset()
	l.Error("boom")
	if !strings.Contains(buf.String(), "[ERR] boom") {
		t.Errorf("output %q missing [ERR] prefix", buf.String())
	}
}

// TestLoggerConcurrent makes sure concurrent writes don't interleave
// mid-line (run with -race).
func TestLoggerConcurrent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Info("line-from-goroutine")
			}
		}()
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line != "[INF] line-from-goroutine" {
			t.Fatalf("interleaved line: %q", line)
		}
	}
}
