package zfish

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dev := New("COM3", 115200, 100)
	assert.NotNil(t, dev)
	assert.Equal(t, "COM3", dev.port)
	assert.Equal(t, 115200, dev.baudRate)
	assert.Equal(t, 100, dev.bufSize)
	assert.NotNil(t, dev.events)
	assert.False(t, dev.IsConnected())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("COM3", 0, 0)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, dev.bufSize)
}

func TestSerial_NotConnected(t *testing.T) {
	dev := New("COM3", 0, 0)
	assert.ErrorIs(t, dev.Send("PING"), ErrNotConnected)
	assert.NoError(t, dev.Close())
}

// pipeSerial attaches a Serial to one end of an in-memory pipe and returns
// the other end, standing in for the board.
func pipeSerial(t *testing.T) (*Serial, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	dev := New("pipe", 0, 0)
	dev.mu.Lock()
	dev.attach(local)
	dev.mu.Unlock()
	t.Cleanup(func() { remote.Close() })
	return dev, remote
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestSerial_ReadsEvents(t *testing.T) {
	dev, board := pipeSerial(t)
	defer dev.Close()

	go board.Write([]byte("ZFISHCTRL READY\r\n\r\nTEMP 24.50\r\nnoise\r\n"))

	ev := nextEvent(t, dev.Events())
	assert.Equal(t, EventReady, ev.Kind)
	assert.False(t, ev.Timestamp.IsZero())

	ev = nextEvent(t, dev.Events())
	assert.Equal(t, EventTemp, ev.Kind)
	assert.Equal(t, 24.5, ev.Celsius)

	ev = nextEvent(t, dev.Events())
	assert.Equal(t, EventUnknown, ev.Kind)
	assert.Equal(t, "noise", ev.Line)
}

func TestSerial_Send(t *testing.T) {
	dev, board := pipeSerial(t)
	defer dev.Close()

	got := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(board).ReadString('\n')
		got <- line
	}()

	require.NoError(t, dev.Send("  status "))
	select {
	case line := <-got:
		// Trimmed but sent verbatim, the firmware matches case-insensitively.
		assert.Equal(t, "status\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("command not written")
	}
}

func TestSerial_GracefulShutdown(t *testing.T) {
	dev, _ := pipeSerial(t)
	assert.True(t, dev.IsConnected())

	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())

	select {
	case _, ok := <-dev.Events():
		assert.False(t, ok, "Channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("Events channel did not close within timeout")
	}
}

func TestSerial_ConnectAfterClose(t *testing.T) {
	dev, _ := pipeSerial(t)
	require.NoError(t, dev.Close())

	assert.ErrorIs(t, dev.Connect(), ErrClosed)
	assert.False(t, dev.IsConnected())
	assert.ErrorIs(t, dev.Send("PING"), ErrNotConnected)
}
