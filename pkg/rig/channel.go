package rig

import "errors"

// Channel identifies one actuator output of the rig.
type Channel uint8

const (
	IR Channel = iota
	White
	Pump
	Vib
	Heater

	NumChannels
)

// MaxLevel is the full-scale PWM level. Switched outputs (White, Heater)
// are either 0 or MaxLevel.
const MaxLevel = 255

var channelNames = [NumChannels]string{"IR", "WHITE", "PUMP", "VIB", "HEATER"}

func (c Channel) String() string {
	if c >= NumChannels {
		return "UNKNOWN"
	}
	return channelNames[c]
}

// Switched reports whether the channel is a relay output rather than PWM.
func (c Channel) Switched() bool {
	return c == White || c == Heater
}

// ParseChannel maps an upper-case channel name to its Channel.
func ParseChannel(name string) (Channel, bool) {
	for i, n := range channelNames {
		if n == name {
			return Channel(i), true
		}
	}
	return 0, false
}

// ErrSensorDisconnected is returned by a Sensor that cannot reach its probe.
var ErrSensorDisconnected = errors.New("temperature sensor disconnected")

// Driver writes actuator levels to the hardware.
// Relay outputs treat any nonzero level as on.
type Driver interface {
	Write(ch Channel, level uint8)
}

// Sensor reads the water temperature in degrees Celsius.
type Sensor interface {
	ReadCelsius() (float32, error)
}

// Actuators holds the commanded level of every output.
type Actuators [NumChannels]uint8

// On reports whether the channel is driven at all.
func (a Actuators) On(ch Channel) bool {
	return a[ch] != 0
}
