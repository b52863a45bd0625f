package zfish

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/zfishctrl/pkg/rig"
)

// Command lines understood by the ZFISHCTRL firmware.
const (
	CmdPing   = "PING"
	CmdStatus = "STATUS"
	CmdTemp   = "TEMP?"
	CmdStop   = "STOP"
)

// Start builds a START command. A zero duration runs until STOP.
func Start(d time.Duration) string {
	if d <= 0 {
		return "START"
	}
	return "START " + strconv.FormatInt(d.Milliseconds(), 10)
}

// SetLevel builds "SET <IR|PUMP|VIB> <level>".
func SetLevel(ch rig.Channel, level int) string {
	return fmt.Sprintf("SET %s %d", ch, level)
}

// Manual builds a direct actuator write. Switched channels get ON/OFF.
func Manual(ch rig.Channel, level int) string {
	if ch.Switched() {
		state := "OFF"
		if level != 0 {
			state = "ON"
		}
		return fmt.Sprintf("MANUAL %s %s", ch, state)
	}
	return fmt.Sprintf("MANUAL %s %d", ch, level)
}

// PatternArgs are the SET PATTERN fields. Nil values are sent as "-" and
// leave the firmware's current value untouched.
type PatternArgs struct {
	Channels []rig.Channel // nil keeps the enabled set
	On       *time.Duration
	Off      *time.Duration
	IR       *int
	Pump     *int
	Vib      *int
}

// SetPattern builds a SET PATTERN command.
func SetPattern(p PatternArgs) string {
	var b strings.Builder
	b.WriteString("SET PATTERN ")

	if p.Channels == nil {
		b.WriteString("-")
	} else if len(p.Channels) == 0 {
		b.WriteString("NONE")
	} else {
		for i, ch := range p.Channels {
			if i > 0 {
				b.WriteByte('+')
			}
			b.WriteString(ch.String())
		}
	}

	writeDur := func(d *time.Duration) {
		b.WriteByte(' ')
		if d == nil {
			b.WriteByte('-')
			return
		}
		b.WriteString(strconv.FormatInt(d.Milliseconds(), 10))
	}
	writeInt := func(v *int) {
		b.WriteByte(' ')
		if v == nil {
			b.WriteByte('-')
			return
		}
		b.WriteString(strconv.Itoa(*v))
	}

	writeDur(p.On)
	writeDur(p.Off)
	writeInt(p.IR)
	writeInt(p.Pump)
	writeInt(p.Vib)
	return b.String()
}

// ZimonLevel builds a ZIMON "<CHANNEL> <level>" command.
func ZimonLevel(ch rig.Channel, level int) string {
	return fmt.Sprintf("%s %d", ch, level)
}
