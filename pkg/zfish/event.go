package zfish

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/zfishctrl/pkg/rig"
	"github.com/itohio/zfishctrl/pkg/zimon"
)

// ErrUnknownLine is returned by ParseLine for lines that are not part of
// either protocol.
var ErrUnknownLine = errors.New("unknown protocol line")

// Kind classifies a line received from the rig.
type Kind int

const (
	EventUnknown Kind = iota
	EventReady
	EventEcho
	EventPong
	EventStarted
	EventAlreadyRunning
	EventStopped
	EventFinished
	EventEmergency
	EventTemp
	EventStatus
	EventToggle
	EventSetLevel
	EventPatternSet
	EventManualSet
	EventUnknownCmd
	EventLineTooLong
	EventChannelOK
	EventCommandList
)

var kindNames = map[Kind]string{
	EventUnknown:        "unknown",
	EventReady:          "ready",
	EventEcho:           "echo",
	EventPong:           "pong",
	EventStarted:        "started",
	EventAlreadyRunning: "already_running",
	EventStopped:        "stopped",
	EventFinished:       "finished",
	EventEmergency:      "emergency",
	EventTemp:           "temp",
	EventStatus:         "status",
	EventToggle:         "toggle",
	EventSetLevel:       "set_level",
	EventPatternSet:     "pattern_set",
	EventManualSet:      "manual_set",
	EventUnknownCmd:     "unknown_cmd",
	EventLineTooLong:    "line_too_long",
	EventChannelOK:      "channel_ok",
	EventCommandList:    "command_list",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status is a decoded STATUS line. Fields not reported by the active
// protocol variant stay zero.
type Status struct {
	Running    bool
	DurationMs uint32
	IR         int
	White      int
	Pump       int
	Vib        int
	PatternOn  uint32
	PatternOff uint32
}

// Event is one line received from the rig.
type Event struct {
	Timestamp time.Time
	Kind      Kind
	Line      string

	Celsius   float64 // EventTemp
	TempValid bool    // false when the probe is disconnected
	On        bool    // EventToggle phase
	Channel   string  // EventSetLevel, EventManualSet, EventChannelOK
	Level     int     // EventSetLevel
	Command   string  // EventEcho
	Status    Status  // EventStatus
}

// Unsolicited reports whether the rig emits this event on its own rather
// than in reply to a command. TEMP lines are both.
func (e Event) Unsolicited() bool {
	switch e.Kind {
	case EventReady, EventEcho, EventFinished, EventEmergency, EventToggle, EventCommandList:
		return true
	}
	return false
}

// Answers reports whether e is an acknowledgement for the command line cmd.
func (e Event) Answers(cmd string) bool {
	f := strings.Fields(strings.ToUpper(cmd))
	if len(f) == 0 {
		return false
	}
	switch e.Kind {
	case EventUnknownCmd, EventLineTooLong:
		return true
	}

	switch f[0] {
	case "PING":
		return e.Kind == EventPong
	case "STATUS":
		return e.Kind == EventStatus
	case "TEMP?":
		return e.Kind == EventTemp
	case "START":
		return e.Kind == EventStarted || e.Kind == EventAlreadyRunning
	case "STOP":
		return e.Kind == EventStopped
	case "SET":
		return e.Kind == EventSetLevel || e.Kind == EventPatternSet
	case "MANUAL":
		return e.Kind == EventManualSet
	case "IR", "WHITE", "VIB", "PUMP":
		return e.Kind == EventChannelOK && e.Channel == f[0]
	}
	return false
}

// ParseLine decodes one line of either protocol variant. The timestamp is
// left for the caller to fill.
func ParseLine(line string) (Event, error) {
	e := Event{Line: line}

	switch line {
	case rig.TokenReady, zimon.TokenReady:
		e.Kind = EventReady
		return e, nil
	case rig.TokenPong, zimon.TokenOK:
		e.Kind = EventPong
		return e, nil
	case rig.TokenStarted:
		e.Kind = EventStarted
		return e, nil
	case rig.TokenAlreadyRunning:
		e.Kind = EventAlreadyRunning
		return e, nil
	case rig.TokenStopped:
		e.Kind = EventStopped
		return e, nil
	case rig.TokenFinished:
		e.Kind = EventFinished
		return e, nil
	case rig.TokenEmergency:
		e.Kind = EventEmergency
		return e, nil
	case rig.TokenPatternSet:
		e.Kind = EventPatternSet
		return e, nil
	case rig.TokenUnknown:
		e.Kind = EventUnknownCmd
		return e, nil
	case rig.TokenLineTooLong:
		e.Kind = EventLineTooLong
		return e, nil
	case rig.TokenToggleOn, rig.TokenToggleOff:
		e.Kind = EventToggle
		e.On = line == rig.TokenToggleOn
		return e, nil
	case zimon.TokenTempErr:
		e.Kind = EventTemp
		return e, nil
	}

	switch {
	case strings.HasPrefix(line, rig.EchoPrefix):
		e.Kind = EventEcho
		e.Command = strings.TrimPrefix(line, rig.EchoPrefix)
		return e, nil
	case strings.HasPrefix(line, rig.TempPrefix), strings.HasPrefix(line, zimon.TempPrefix):
		return parseTemp(e)
	case strings.HasPrefix(line, "STATUS "):
		return parseStatus(e)
	case strings.HasPrefix(line, "SET ") && strings.Contains(line, " PWM "):
		return parseSetLevel(e)
	case strings.HasPrefix(line, "MANUAL_") && strings.HasSuffix(line, "_SET"):
		e.Kind = EventManualSet
		e.Channel = strings.TrimSuffix(strings.TrimPrefix(line, "MANUAL_"), "_SET")
		return e, nil
	case strings.HasPrefix(line, "CMDS "):
		e.Kind = EventCommandList
		return e, nil
	case strings.HasSuffix(line, "_OK"):
		ch := strings.TrimSuffix(line, "_OK")
		if _, ok := rig.ParseChannel(ch); ok {
			e.Kind = EventChannelOK
			e.Channel = ch
			return e, nil
		}
	}

	return e, fmt.Errorf("%w: %q", ErrUnknownLine, line)
}

// parseTemp handles "TEMP <value|nan>" and "TEMP_C <value>".
func parseTemp(e Event) (Event, error) {
	e.Kind = EventTemp
	f := strings.Fields(e.Line)
	if len(f) != 2 {
		return e, fmt.Errorf("invalid temperature line %q", e.Line)
	}
	if f[1] == "nan" {
		return e, nil
	}
	v, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return e, fmt.Errorf("invalid temperature: %w", err)
	}
	e.Celsius = v
	e.TempValid = true
	return e, nil
}

// parseStatus handles both "STATUS KEY:n ..." and "STATUS KEY=n ...".
func parseStatus(e Event) (Event, error) {
	e.Kind = EventStatus
	for _, kv := range strings.Fields(e.Line)[1:] {
		key, val, ok := strings.Cut(kv, ":")
		if !ok {
			key, val, ok = strings.Cut(kv, "=")
		}
		if !ok {
			return e, fmt.Errorf("invalid status field %q", kv)
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return e, fmt.Errorf("invalid status value %q: %w", kv, err)
		}

		s := &e.Status
		switch key {
		case "RUNNING":
			s.Running = n != 0
		case "DURATION_MS":
			s.DurationMs = uint32(n)
		case "IR_PWM", "IR":
			s.IR = int(n)
		case "PUMP_PWM", "PUMP":
			s.Pump = int(n)
		case "VIB_PWM", "VIB":
			s.Vib = int(n)
		case "WHITE":
			s.White = int(n)
		case "PAT_ON":
			s.PatternOn = uint32(n)
		case "PAT_OFF":
			s.PatternOff = uint32(n)
		}
	}
	return e, nil
}

// parseSetLevel handles "SET <CH> PWM <n>".
func parseSetLevel(e Event) (Event, error) {
	e.Kind = EventSetLevel
	f := strings.Fields(e.Line)
	if len(f) != 4 {
		return e, fmt.Errorf("invalid set line %q", e.Line)
	}
	n, err := strconv.Atoi(f[3])
	if err != nil {
		return e, fmt.Errorf("invalid level: %w", err)
	}
	e.Channel = f[1]
	e.Level = n
	return e, nil
}
