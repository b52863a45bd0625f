package zfish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	// resetDelay covers the bootloader run after DTR resets the board on open.
	resetDelay       = 1500 * time.Millisecond
	handshakeTimeout = 2 * time.Second
	probeReadTimeout = 50 * time.Millisecond
)

// ErrNoDevice is returned by AutoDetect when no port answers the handshake.
var ErrNoDevice = errors.New("no rig found")

// Probe opens port and checks that a rig answers PING, trying up to
// attempts times. The port is closed again before returning.
func Probe(port string, baudRate int, attempts int) (bool, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ok, err := probeOnce(port, baudRate)
		if ok {
			return true, nil
		}
		lastErr = err
		log.Printf("No handshake reply on %s (attempt %d/%d)", port, attempt, attempts)
		time.Sleep(200 * time.Millisecond)
	}
	return false, lastErr
}

func probeOnce(port string, baudRate int) (bool, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return false, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	defer p.Close()

	time.Sleep(resetDelay)
	if err := p.SetReadTimeout(probeReadTimeout); err != nil {
		return false, fmt.Errorf("failed to set read timeout: %w", err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		return false, fmt.Errorf("failed to reset input buffer: %w", err)
	}

	lines, ok := handshake(p, time.Now().Add(handshakeTimeout))
	log.Printf("Handshake reply from %s: %q", port, lines)
	return ok, nil
}

// handshake sends PING and reads lines until one identifies a rig or the
// deadline passes. Reads returning no data are treated as timeouts.
func handshake(rw io.ReadWriter, deadline time.Time) ([]string, bool) {
	if _, err := io.WriteString(rw, "PING\n"); err != nil {
		return nil, false
	}

	var (
		lines   []string
		pending []byte
		buf     = make([]byte, 64)
	)
	for time.Now().Before(deadline) {
		n, err := rw.Read(buf)
		pending = append(pending, buf[:n]...)

		for {
			i := strings.IndexByte(string(pending), '\n')
			if i < 0 {
				break
			}
			line := strings.TrimSpace(string(pending[:i]))
			pending = pending[i+1:]
			if line == "" {
				continue
			}
			lines = append(lines, line)
			if isRigBanner(line) {
				return lines, true
			}
		}

		if err != nil {
			return lines, false
		}
	}
	return lines, false
}

func isRigBanner(line string) bool {
	ev, err := ParseLine(line)
	if err == nil && (ev.Kind == EventPong || ev.Kind == EventReady) {
		return true
	}
	return strings.Contains(strings.ToUpper(line), "ZIMON")
}

// AutoDetect probes every serial port and returns the first one a rig
// answers on.
func AutoDetect(baudRate int) (string, error) {
	ports, err := Ports()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		ok, err := Probe(p.Name, baudRate, 1)
		if err != nil {
			log.Printf("Probe %s: %v", p.Name, err)
			continue
		}
		if ok {
			return p.Name, nil
		}
	}
	return "", ErrNoDevice
}

// Request sends cmd and waits for its acknowledgement. Other events read
// while waiting are passed to other, which may be nil. Request must be the
// only reader of dev.Events() while it runs.
func Request(ctx context.Context, dev Device, cmd string, other func(Event)) (Event, error) {
	if err := dev.Send(cmd); err != nil {
		return Event{}, err
	}

	events := dev.Events()
	for {
		select {
		case <-ctx.Done():
			return Event{}, fmt.Errorf("waiting for reply to %q: %w", cmd, ctx.Err())
		case ev, ok := <-events:
			if !ok {
				return Event{}, fmt.Errorf("waiting for reply to %q: %w", cmd, ErrNotConnected)
			}
			if ev.Answers(cmd) {
				return ev, nil
			}
			if other != nil {
				other(ev)
			}
		}
	}
}
