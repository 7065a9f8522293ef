package util

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
)

func TestPumpLines(t *testing.T) {
	src := strings.NewReader("one\ntwo\nthree\n")
	var dst bytes.Buffer

	if err := PumpLines(&dst, src); err != nil {
		t.Fatalf("PumpLines: %v", err)
	}
	if dst.String() != "one\ntwo\nthree\n" {
		t.Errorf("got %q", dst.String())
	}
}

func TestPumpLines_NoTrailingNewline(t *testing.T) {
	src := strings.NewReader("partial")
	var dst bytes.Buffer

	if err := PumpLines(&dst, src); err != nil {
		t.Fatalf("PumpLines: %v", err)
	}
	if dst.String() != "partial\n" {
		t.Errorf("got %q, want normalised trailing newline", dst.String())
	}
}

func TestPumpLines_ClosedPipeIsHarmless(t *testing.T) {
	r, w := net.Pipe()
	w.Close()
	r.Close()

	var dst bytes.Buffer
	if err := PumpLines(&dst, r); err != nil {
		t.Errorf("closed pipe should be harmless, got %v", err)
	}
}

func TestPumpScanner_StopHook(t *testing.T) {
	sc, release := NewLineScanner(strings.NewReader("one\ntwo\nthree\n"))
	defer release()
	var dst bytes.Buffer

	err := PumpScanner(&dst, sc, func(line string) bool { return line == "two" })
	if err != nil {
		t.Fatalf("PumpScanner: %v", err)
	}
	// The stopping line is still delivered; nothing after it is.
	if dst.String() != "one\ntwo\n" {
		t.Errorf("got %q, want %q", dst.String(), "one\ntwo\n")
	}
}

func TestNewLineScanner_PooledBuffer(t *testing.T) {
	sc, release := NewLineScanner(strings.NewReader("hello\n"))
	defer release()

	if !sc.Scan() {
		t.Fatal("expected one line")
	}
	if sc.Text() != "hello" {
		t.Errorf("got %q", sc.Text())
	}
}

func TestNewLineScanner_RejectsOversizedLine(t *testing.T) {
	long := strings.Repeat("x", DefaultBufSize+1)
	sc, release := NewLineScanner(strings.NewReader(long))
	defer release()

	if sc.Scan() {
		t.Fatal("oversized line should not scan")
	}
	if sc.Err() == nil {
		t.Error("expected bufio.ErrTooLong")
	}
}

func TestIsHarmless(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"eof", io.EOF, true},
		{"net closed", net.ErrClosed, true},
		{"closed pipe", io.ErrClosedPipe, true},
		{"real error", io.ErrUnexpectedEOF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHarmless(tt.err); got != tt.want {
				t.Errorf("IsHarmless(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
