package rig

import "strings"

// DefaultMaxLine is the longest command line accepted, in bytes.
const DefaultMaxLine = 128

// FeedResult tells what a byte fed into a LineBuffer completed.
type FeedResult uint8

const (
	// FeedPending means the byte was consumed and no line is complete yet.
	FeedPending FeedResult = iota
	// FeedLine means a non-empty trimmed line is ready.
	FeedLine
	// FeedOverflow means a line exceeded the limit and was discarded.
	FeedOverflow
)

// LineBuffer accumulates serial bytes into newline-terminated lines.
// Control characters other than '\n' are dropped. A line that grows past the
// limit is discarded up to the next newline, which then reports FeedOverflow.
type LineBuffer struct {
	buf      []byte
	max      int
	overflow bool
}

// NewLineBuffer creates a buffer holding at most max bytes per line.
func NewLineBuffer(max int) *LineBuffer {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &LineBuffer{
		buf: make([]byte, 0, max),
		max: max,
	}
}

// Feed consumes one byte.
func (l *LineBuffer) Feed(b byte) (string, FeedResult) {
	if b == '\n' {
		if l.overflow {
			l.overflow = false
			l.buf = l.buf[:0]
			return "", FeedOverflow
		}
		line := strings.TrimSpace(string(l.buf))
		l.buf = l.buf[:0]
		if line == "" {
			return "", FeedPending
		}
		return line, FeedLine
	}

	if b < 32 || l.overflow {
		return "", FeedPending
	}

	if len(l.buf) >= l.max {
		l.overflow = true
		l.buf = l.buf[:0]
		return "", FeedPending
	}

	l.buf = append(l.buf, b)
	return "", FeedPending
}

// Len returns the number of buffered bytes of the current line.
func (l *LineBuffer) Len() int {
	return len(l.buf)
}
