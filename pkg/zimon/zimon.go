// Package zimon implements the flat ZIMON command set: direct channel
// levels, a liveness check and temperature queries, with no experiment
// state of its own.
package zimon

import (
	"fmt"
	"strings"

	"github.com/itohio/zfishctrl/pkg/rig"
)

const (
	TokenReady    = "ZIMON_MEGA_READY"
	TokenCommands = "CMDS PING STATUS TEMP? IR WHITE VIB PUMP"
	TokenOK       = "ZIMON_OK"
	TokenTempErr  = "TEMP_ERR"
	TokenUnknown  = "UNKNOWN_CMD"
	TempPrefix    = "TEMP_C "
)

// Controller runs the ZIMON protocol on top of a rig.Driver and rig.Sensor.
type Controller struct {
	drv    rig.Driver
	sensor rig.Sensor
	lines  *rig.LineBuffer
	levels rig.Actuators
}

// New creates a controller.
func New(drv rig.Driver, sensor rig.Sensor) *Controller {
	return &Controller{
		drv:    drv,
		sensor: sensor,
		lines:  rig.NewLineBuffer(rig.DefaultMaxLine),
	}
}

// Begin switches every output off and returns the startup banner.
func (c *Controller) Begin(uint32) []string {
	for ch := rig.Channel(0); ch < rig.NumChannels; ch++ {
		c.write(ch, 0)
	}
	return []string{TokenReady, TokenCommands}
}

// Poll handles every complete line in rx. The protocol has no timers, so
// the tick is ignored.
func (c *Controller) Poll(_ uint32, rx []byte) []string {
	var out []string
	for _, b := range rx {
		line, res := c.lines.Feed(b)
		switch res {
		case rig.FeedLine:
			out = append(out, c.Handle(line))
		case rig.FeedOverflow:
			out = append(out, rig.TokenLineTooLong)
		}
	}
	return out
}

// Levels returns the current channel levels.
func (c *Controller) Levels() rig.Actuators { return c.levels }

// Handle executes one command line and returns its single response.
func (c *Controller) Handle(line string) string {
	f := strings.Fields(strings.ToUpper(line))
	if len(f) == 0 {
		return TokenUnknown
	}

	switch f[0] {
	case "PING":
		return TokenOK
	case "STATUS":
		return fmt.Sprintf("STATUS IR=%d WHITE=%d VIB=%d PUMP=%d",
			c.levels[rig.IR], c.levels[rig.White], c.levels[rig.Vib], c.levels[rig.Pump])
	case "TEMP?":
		v, err := rig.ReadTemperature(c.sensor)
		if err != nil {
			return TokenTempErr
		}
		return TempPrefix + rig.FormatCelsius(v)
	case "IR", "WHITE", "VIB", "PUMP":
		ch, _ := rig.ParseChannel(f[0])
		var arg string
		if len(f) > 1 {
			arg = f[1]
		}
		c.write(ch, rig.ParseLevel(arg))
		return f[0] + "_OK"
	}
	return TokenUnknown
}

func (c *Controller) write(ch rig.Channel, v uint8) {
	c.levels[ch] = v
	if c.drv != nil {
		c.drv.Write(ch, v)
	}
}
