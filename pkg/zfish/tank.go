package zfish

import (
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/zfishctrl/pkg/config"
	"github.com/itohio/zfishctrl/pkg/rig"
)

// Tank simulates the rig hardware: it records actuator levels written by
// the firmware and models the water temperature as a first-order lag
// towards ambient, or ambient plus HeaterRise while the heater is on.
type Tank struct {
	mu       sync.Mutex
	ambient  float32
	rise     float32
	tau      float32 // seconds
	temp     float32
	levels   rig.Actuators
	detached bool
}

// Ensure Tank implements the firmware hardware interfaces.
var (
	_ rig.Driver = (*Tank)(nil)
	_ rig.Sensor = (*Tank)(nil)
)

// NewTank creates a simulated tank.
func NewTank(cfg config.MockConfig) *Tank {
	tau := float32(cfg.TimeConstant.Seconds())
	if tau <= 0 {
		tau = 60
	}
	start := cfg.StartTemp
	if start == 0 {
		start = cfg.Ambient
	}
	return &Tank{
		ambient:  float32(cfg.Ambient),
		rise:     float32(cfg.HeaterRise),
		tau:      tau,
		temp:     float32(start),
		detached: cfg.SensorDetached,
	}
}

// Write records an actuator level.
func (t *Tank) Write(ch rig.Channel, level uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.levels[ch] = level
}

// ReadCelsius returns the simulated probe reading.
func (t *Tank) ReadCelsius() (float32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		return math32.NaN(), rig.ErrSensorDisconnected
	}
	return t.temp, nil
}

// Advance moves the thermal model forward by dt.
func (t *Tank) Advance(dt time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.ambient
	if t.levels.On(rig.Heater) {
		target += t.rise
	}
	alpha := 1 - math32.Exp(-float32(dt.Seconds())/t.tau)
	t.temp += alpha * (target - t.temp)
}

// Levels returns the last written actuator levels.
func (t *Tank) Levels() rig.Actuators {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.levels
}

// Temperature returns the true tank temperature, regardless of the probe.
func (t *Tank) Temperature() float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.temp
}

// SetDetached simulates unplugging or reconnecting the probe.
func (t *Tank) SetDetached(detached bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached = detached
}

// SetTemperature forces the tank temperature.
func (t *Tank) SetTemperature(celsius float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.temp = celsius
}
