package zfish

import "errors"

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	// ErrClosed is returned by Connect after Close: the events channel of a
	// closed device stays closed, create a new device instead.
	ErrClosed = errors.New("device closed")
)

// Device defines the interface for rig devices (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Events() <-chan Event
	Send(cmd string) error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
