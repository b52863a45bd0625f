// Package rig implements the zebrafish rig control loop: a serial command
// protocol, a temperature safety monitor and a stimulus pattern runner,
// all driven by one non-blocking Poll per loop iteration.
//
// The package has no hardware dependencies. Time is an injected
// millisecond tick, so the same code runs on the board and in tests.
package rig

import (
	"fmt"
	"strconv"
)

// Protocol tokens.
const (
	TokenReady          = "ZFISHCTRL READY"
	TokenPong           = "PONG"
	TokenStarted        = "EXPERIMENT_STARTED"
	TokenAlreadyRunning = "ALREADY_RUNNING"
	TokenStopped        = "EXPERIMENT_STOPPED"
	TokenFinished       = "EXPERIMENT_FINISHED"
	TokenEmergency      = "EMERGENCY TEMP_OVER"
	TokenPatternSet     = "PATTERN SET"
	TokenUnknown        = "UNKNOWN_CMD"
	TokenLineTooLong    = "ERR LINE_TOO_LONG"
	TokenToggleOn       = "STIM_TOGGLE ON"
	TokenToggleOff      = "STIM_TOGGLE OFF"
	EchoPrefix          = "CMD:"
	TempPrefix          = "TEMP "
)

// Config tunes the controller.
type Config struct {
	// Echo emits "CMD:<line>" before handling every command.
	Echo    bool
	MaxLine int
	// ReportInterval is the safety monitor period in milliseconds.
	ReportInterval uint32
	// TempCeiling is the cutoff temperature; readings at or above it trip.
	TempCeiling float32
	// LegacyPatternZero makes a 0 in SET PATTERN mean "leave unchanged".
	LegacyPatternZero bool
	Pattern           Pattern
}

// DefaultConfig returns the stock firmware settings.
func DefaultConfig() Config {
	return Config{
		Echo:           true,
		MaxLine:        DefaultMaxLine,
		ReportInterval: 2000,
		TempCeiling:    50.0,
		Pattern:        DefaultPattern(),
	}
}

// Controller owns all rig state. It is not safe for concurrent use: callers
// on a multi-threaded host must serialize Begin and Poll.
type Controller struct {
	cfg    Config
	drv    Driver
	sensor Sensor
	lines  *LineBuffer

	act        Actuators
	pattern    Pattern
	session    Session
	toggle     toggleTimer
	lastReport uint32

	out []string
}

// New creates a controller writing to drv and reading sensor.
func New(cfg Config, drv Driver, sensor Sensor) *Controller {
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = DefaultConfig().ReportInterval
	}
	if cfg.TempCeiling == 0 {
		cfg.TempCeiling = DefaultConfig().TempCeiling
	}
	return &Controller{
		cfg:     cfg,
		drv:     drv,
		sensor:  sensor,
		lines:   NewLineBuffer(cfg.MaxLine),
		pattern: cfg.Pattern,
	}
}

// Begin forces every output off, arms the safety monitor and returns the
// startup banner.
func (c *Controller) Begin(now uint32) []string {
	c.allOff()
	c.lastReport = now
	c.emit(TokenReady)
	return c.flush()
}

// Poll runs one loop iteration: the bytes in rx are parsed and handled,
// then the safety monitor and the stimulus runner get their turn. It
// returns the lines emitted during the iteration.
func (c *Controller) Poll(now uint32, rx []byte) []string {
	for _, b := range rx {
		line, res := c.lines.Feed(b)
		switch res {
		case FeedLine:
			c.handleLine(now, line)
		case FeedOverflow:
			c.emit(TokenLineTooLong)
		}
	}
	c.checkSafety(now)
	c.runStimulus(now)
	return c.flush()
}

// Actuators returns the current output levels.
func (c *Controller) Actuators() Actuators { return c.act }

// Pattern returns the configured stimulus pattern.
func (c *Controller) Pattern() Pattern { return c.pattern }

// Session returns the experiment session state.
func (c *Controller) Session() Session { return c.session }

// Status renders the STATUS response line.
func (c *Controller) Status() string {
	running := 0
	if c.session.Running {
		running = 1
	}
	return fmt.Sprintf("STATUS RUNNING:%d DURATION_MS:%d IR_PWM:%d PUMP_PWM:%d VIB_PWM:%d PAT_ON:%d PAT_OFF:%d",
		running, c.session.DurationMs,
		c.pattern.Level[IR], c.pattern.Level[Pump], c.pattern.Level[Vib],
		c.pattern.OnMs, c.pattern.OffMs)
}

func (c *Controller) handleLine(now uint32, line string) {
	if c.cfg.Echo {
		c.emit(EchoPrefix + line)
	}

	cmd := ParseCommand(line)
	switch cmd.Kind {
	case CmdPing:
		c.emit(TokenPong)
	case CmdStatus:
		c.emit(c.Status())
	case CmdTemp:
		v, err := ReadTemperature(c.sensor)
		if err != nil {
			c.emit(TempPrefix + "nan")
			return
		}
		c.emit(TempPrefix + FormatCelsius(v))
	case CmdStart:
		c.start(now, clampDuration(cmd.Duration))
	case CmdStop:
		c.stop()
		c.emit(TokenStopped)
	case CmdSetLevel:
		v := clampLevel(cmd.Level)
		c.pattern.Level[cmd.Channel] = v
		c.emit("SET " + cmd.Channel.String() + " PWM " + strconv.Itoa(int(v)))
	case CmdSetPattern:
		c.applyPattern(cmd.Pattern)
		c.emit(TokenPatternSet)
	case CmdManualLevel:
		c.write(cmd.Channel, clampLevel(cmd.Level))
		c.emit("MANUAL_" + cmd.Channel.String() + "_SET")
	case CmdManualSwitch:
		var v uint8
		if cmd.On {
			v = MaxLevel
		}
		c.write(cmd.Channel, v)
		c.emit("MANUAL_" + cmd.Channel.String() + "_SET")
	case CmdUnknown:
		c.emit(TokenUnknown)
	}
}

func (c *Controller) start(now, duration uint32) {
	if c.session.Running {
		c.emit(TokenAlreadyRunning)
		return
	}
	c.session = Session{Running: true, StartMs: now, DurationMs: duration}
	c.toggle = toggleTimer{on: false, next: now}
	c.emit(TokenStarted)
}

// stop ends the session and drives every output low.
func (c *Controller) stop() {
	c.session = Session{}
	c.toggle.on = false
	c.allOff()
}

func (c *Controller) applyPattern(u PatternUpdate) {
	if u.ChannelsSet {
		c.pattern.Enabled = u.Enabled
	}
	if v, ok := c.patternValue(u.OnMs); ok {
		c.pattern.OnMs = clampDuration(v)
	}
	if v, ok := c.patternValue(u.OffMs); ok {
		c.pattern.OffMs = clampDuration(v)
	}
	if v, ok := c.patternValue(u.IR); ok {
		c.pattern.Level[IR] = clampLevel(v)
	}
	if v, ok := c.patternValue(u.Pump); ok {
		c.pattern.Level[Pump] = clampLevel(v)
	}
	if v, ok := c.patternValue(u.Vib); ok {
		c.pattern.Level[Vib] = clampLevel(v)
	}
}

func (c *Controller) patternValue(o Optional) (int64, bool) {
	if !o.Set {
		return 0, false
	}
	if c.cfg.LegacyPatternZero && o.Value == 0 {
		return 0, false
	}
	return o.Value, true
}

// checkSafety reports the temperature every ReportInterval and trips the
// heater cutoff when the reading reaches the ceiling.
func (c *Controller) checkSafety(now uint32) {
	if now-c.lastReport < c.cfg.ReportInterval {
		return
	}
	c.lastReport = now

	v, err := ReadTemperature(c.sensor)
	if err != nil {
		c.emit(TempPrefix + "nan")
		return
	}
	c.emit(TempPrefix + FormatCelsius(v))

	if v >= c.cfg.TempCeiling {
		c.write(Heater, 0)
		c.emit(TokenEmergency)
		c.stop()
		c.emit(TokenStopped)
	}
}

// runStimulus advances the on/off pattern. Expiry wins over a toggle due
// in the same tick.
func (c *Controller) runStimulus(now uint32) {
	if !c.session.Running {
		return
	}
	if c.session.expired(now) {
		c.stop()
		c.emit(TokenFinished)
		return
	}
	if !c.toggle.due(now) {
		return
	}

	if c.toggle.on {
		c.patternOutputs(false)
		c.toggle = toggleTimer{on: false, next: now + c.pattern.OffMs}
		c.emit(TokenToggleOff)
		return
	}
	c.patternOutputs(true)
	c.toggle = toggleTimer{on: true, next: now + c.pattern.OnMs}
	c.emit(TokenToggleOn)
}

func (c *Controller) patternOutputs(on bool) {
	for ch := Channel(0); ch < NumChannels; ch++ {
		if !c.pattern.Enabled[ch] {
			continue
		}
		var v uint8
		if on {
			v = c.pattern.levelOf(ch)
		}
		c.write(ch, v)
	}
}

func (c *Controller) allOff() {
	for ch := Channel(0); ch < NumChannels; ch++ {
		c.write(ch, 0)
	}
}

func (c *Controller) write(ch Channel, level uint8) {
	c.act[ch] = level
	if c.drv != nil {
		c.drv.Write(ch, level)
	}
}

func (c *Controller) emit(line string) {
	c.out = append(c.out, line)
}

func (c *Controller) flush() []string {
	out := c.out
	c.out = nil
	return out
}
