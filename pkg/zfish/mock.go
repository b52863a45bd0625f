package zfish

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/itohio/zfishctrl/pkg/config"
	"github.com/itohio/zfishctrl/pkg/rig"
	"github.com/itohio/zfishctrl/pkg/zimon"
)

// firmware is the loop interface shared by both protocol variants.
type firmware interface {
	Begin(now uint32) []string
	Poll(now uint32, rx []byte) []string
}

// Mock simulates a rig for testing and development. It runs the real
// firmware core on a ticker against a simulated Tank.
type Mock struct {
	cfg  *config.Config
	tank *Tank

	events    chan Event
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	closed    bool
	done      chan struct{}

	rx []byte
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:    cfg,
		tank:   NewTank(cfg.Mock),
		events: make(chan Event, DefaultBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Tank returns the simulated hardware.
func (m *Mock) Tank() *Tank {
	return m.tank
}

// Connect boots the simulated firmware.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}
	if m.closed {
		return ErrClosed
	}

	var fw firmware
	if m.cfg.Protocol.Variant == config.ProtocolZimon {
		fw = zimon.New(m.tank, m.tank)
	} else {
		fw = rig.New(m.cfg.Rig(), m.tank, m.tank)
	}

	m.connected = true
	m.done = make(chan struct{})
	go m.run(fw, m.done)

	return nil
}

// Close stops the simulated firmware and closes the events channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	m.closed = true
	done := m.done
	m.mu.Unlock()

	<-done
	return nil
}

// Events returns the channel of lines emitted by the simulated firmware.
func (m *Mock) Events() <-chan Event {
	return m.events
}

// Send queues a command line for the next firmware poll.
func (m *Mock) Send(cmd string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.rx = append(m.rx, strings.TrimSpace(cmd)+"\n"...)
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// run is the simulated firmware main loop.
func (m *Mock) run(fw firmware, done chan struct{}) {
	defer close(done)
	defer close(m.events)

	tick := m.cfg.Mock.Tick
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	start := time.Now()
	last := start
	m.emit(fw.Begin(0))

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.tank.Advance(now.Sub(last))
			last = now

			m.mu.Lock()
			rx := m.rx
			m.rx = nil
			m.mu.Unlock()

			ms := uint32(now.Sub(start) / time.Millisecond)
			m.emit(fw.Poll(ms, rx))
		}
	}
}

func (m *Mock) emit(lines []string) {
	for _, line := range lines {
		ev, err := ParseLine(line)
		if err != nil {
			log.Printf("Mock emitted unparsable line '%s': %v", line, err)
		}
		ev.Timestamp = time.Now()

		select {
		case m.events <- ev:
		case <-m.ctx.Done():
			return
		default:
			// Channel full, skip
		}
	}
}
