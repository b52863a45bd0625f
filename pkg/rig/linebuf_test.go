package rig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(l *LineBuffer, s string) ([]string, int) {
	var lines []string
	overflows := 0
	for i := 0; i < len(s); i++ {
		line, res := l.Feed(s[i])
		switch res {
		case FeedLine:
			lines = append(lines, line)
		case FeedOverflow:
			overflows++
		}
	}
	return lines, overflows
}

func TestLineBuffer(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		input     string
		want      []string
		overflows int
	}{
		{"single", 0, "PING\n", []string{"PING"}, 0},
		{"crlf", 0, "PING\r\n", []string{"PING"}, 0},
		{"trimmed", 0, "   SET IR 5  \n", []string{"SET IR 5"}, 0},
		{"empty lines", 0, "\n\n  \n", nil, 0},
		{"control chars dropped", 0, "PI\x01\tNG\n", []string{"PING"}, 0},
		{"two lines", 0, "A\nB\n", []string{"A", "B"}, 0},
		{"no newline", 0, "PING", nil, 0},
		{"exact limit", 4, "ABCD\n", []string{"ABCD"}, 0},
		{"overflow resyncs", 4, "ABCDE\nOK\n", []string{"OK"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLineBuffer(tt.max)
			lines, overflows := feedAll(l, tt.input)
			assert.Equal(t, tt.want, lines)
			assert.Equal(t, tt.overflows, overflows)
		})
	}
}

func TestLineBuffer_Bounded(t *testing.T) {
	l := NewLineBuffer(0)
	feedAll(l, strings.Repeat("X", 10*DefaultMaxLine))
	assert.LessOrEqual(t, l.Len(), DefaultMaxLine)
}
