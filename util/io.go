package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
)

// DefaultBufSize caps a single protocol line (8 KiB).  The chat
// protocol is one command or response per line; anything longer is a
// violation, not a message.
const DefaultBufSize = 8 * 1024

// NewLineScanner returns a line scanner over r backed by a pooled
// buffer.  The release func must be called exactly once when the
// scanner is no longer used.
func NewLineScanner(r io.Reader) (*bufio.Scanner, func()) {
	buf := GetBuf()
	sc := bufio.NewScanner(r)
	sc.Buffer(*buf, DefaultBufSize)
	return sc, func() { PutBuf(buf) }
}

// PumpLines copies lines from src to dst verbatim, one write per line,
// until src is exhausted.  Errors that are expected during teardown
// (EOF, closed connection) are reported as nil.
func PumpLines(dst io.Writer, src io.Reader) error {
	sc, release := NewLineScanner(src)
	defer release()
	return PumpScanner(dst, sc, nil)
}

// PumpScanner is PumpLines over an existing scanner, for callers that
// already hold buffered input from the same stream.  A non-nil stop
// is consulted after each line is written; returning true ends the
// pump cleanly, with the line still delivered.
func PumpScanner(dst io.Writer, sc *bufio.Scanner, stop func(line string) bool) error {
	for sc.Scan() {
		line := sc.Text()
		if _, err := fmt.Fprintln(dst, line); err != nil {
			if IsHarmless(err) {
				return nil
			}
			return err
		}
		if stop != nil && stop(line) {
			return nil
		}
	}
	if err := sc.Err(); err != nil && !IsHarmless(err) {
		return err
	}
	return nil
}

// IsHarmless returns true for errors that are expected during shutdown.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
