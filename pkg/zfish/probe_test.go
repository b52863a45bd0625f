package zfish

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/itohio/zfishctrl/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPort answers every read from a fixed script and records writes.
type scriptedPort struct {
	r       io.Reader
	written bytes.Buffer
}

func (p *scriptedPort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *scriptedPort) Write(b []byte) (int, error) { return p.written.Write(b) }

func TestHandshake(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   bool
		lines  int
	}{
		{"pong", "PONG\r\n", true, 1},
		{"zimon", "ZIMON_OK\n", true, 1},
		{"banner after noise", "garbage\nZFISHCTRL READY\nPONG\n", true, 2},
		{"zimon startup", "ZIMON_MEGA_READY\n", true, 1},
		{"silent", "", false, 0},
		{"wrong device", "OK\nHELLO\n", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedPort{r: strings.NewReader(tt.script)}
			lines, ok := handshake(p, time.Now().Add(time.Second))
			assert.Equal(t, tt.want, ok)
			assert.Len(t, lines, tt.lines)
			assert.Equal(t, "PING\n", p.written.String())
		})
	}
}

func TestRequest(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.Tick = time.Millisecond
	dev := NewMock(cfg)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var others []Event
	ev, err := Request(ctx, dev, "PING", func(e Event) { others = append(others, e) })
	require.NoError(t, err)
	assert.Equal(t, EventPong, ev.Kind)

	// Banner and command echo were handed to the callback.
	var kinds []Kind
	for _, e := range others {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, EventReady)
	assert.Contains(t, kinds, EventEcho)

	ev, err = Request(ctx, dev, "SET IR 999", nil)
	require.NoError(t, err)
	assert.Equal(t, EventSetLevel, ev.Kind)
	assert.Equal(t, 255, ev.Level)

	ev, err = Request(ctx, dev, "STATUS", nil)
	require.NoError(t, err)
	assert.Equal(t, 255, ev.Status.IR)
}

func TestRequest_NotConnected(t *testing.T) {
	dev := NewMock(nil)
	_, err := Request(context.Background(), dev, "PING", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRequest_Timeout(t *testing.T) {
	dev := NewMock(nil)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The firmware never answers an echo line on its own.
	_, err := Request(ctx, dev, "", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
