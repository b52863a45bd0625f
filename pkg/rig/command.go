package rig

import "strings"

// Kind tags the variant of a parsed Command.
type Kind uint8

const (
	CmdUnknown Kind = iota
	CmdPing
	CmdStatus
	CmdTemp
	CmdStart
	CmdStop
	CmdSetLevel     // SET IR|PUMP|VIB <n>
	CmdSetPattern   // SET PATTERN ...
	CmdManualLevel  // MANUAL IR|PUMP|VIB <n>
	CmdManualSwitch // MANUAL WHITE|HEATER ON|OFF
)

// Optional is a numeric argument that may have been left out.
type Optional struct {
	Value int64
	Set   bool
}

// PatternUpdate carries the fields of a SET PATTERN command.
// Positional values given as "-" or not given at all are left unset.
type PatternUpdate struct {
	Enabled     [NumChannels]bool
	ChannelsSet bool
	OnMs        Optional
	OffMs       Optional
	IR          Optional
	Pump        Optional
	Vib         Optional
}

// Command is one decoded protocol line.
type Command struct {
	Kind     Kind
	Channel  Channel
	Level    int64 // raw value, clamped when applied
	On       bool
	Duration int64 // START argument in milliseconds, 0 = unbounded
	Pattern  PatternUpdate
}

// verbs lists the command words. No verb is a prefix of another.
var verbs = [...]struct {
	word string
	kind Kind
}{
	{"PING", CmdPing},
	{"STATUS", CmdStatus},
	{"TEMP?", CmdTemp},
	{"STOP", CmdStop},
	{"START", CmdStart},
	{"SET", CmdSetLevel},
	{"MANUAL", CmdManualLevel},
}

// ParseCommand decodes a command line. Matching is case-insensitive and the
// first token only has to start with a verb, so "PING?" is a PING. Arguments
// are whole whitespace separated tokens.
func ParseCommand(line string) Command {
	f := strings.Fields(strings.ToUpper(line))
	if len(f) == 0 {
		return Command{Kind: CmdUnknown}
	}

	for _, v := range verbs {
		if !strings.HasPrefix(f[0], v.word) {
			continue
		}
		switch v.kind {
		case CmdStart:
			return Command{Kind: CmdStart, Duration: parseInt(arg(f, 1))}
		case CmdSetLevel:
			return parseSet(f)
		case CmdManualLevel:
			return parseManual(f)
		}
		return Command{Kind: v.kind}
	}
	return Command{Kind: CmdUnknown}
}

func arg(f []string, i int) string {
	if i < len(f) {
		return f[i]
	}
	return ""
}

func parseSet(f []string) Command {
	switch arg(f, 1) {
	case "IR":
		return Command{Kind: CmdSetLevel, Channel: IR, Level: parseInt(arg(f, 2))}
	case "PUMP":
		return Command{Kind: CmdSetLevel, Channel: Pump, Level: parseInt(arg(f, 2))}
	case "VIB":
		return Command{Kind: CmdSetLevel, Channel: Vib, Level: parseInt(arg(f, 2))}
	case "PATTERN":
		return Command{Kind: CmdSetPattern, Pattern: parsePattern(f[2:])}
	}
	return Command{Kind: CmdUnknown}
}

func parseManual(f []string) Command {
	ch, ok := ParseChannel(arg(f, 1))
	if !ok {
		return Command{Kind: CmdUnknown}
	}
	if ch.Switched() {
		return Command{Kind: CmdManualSwitch, Channel: ch, On: parseSwitch(arg(f, 2))}
	}
	return Command{Kind: CmdManualLevel, Channel: ch, Level: parseInt(arg(f, 2))}
}

func parseSwitch(s string) bool {
	switch s {
	case "ON", "HIGH", "TRUE":
		return true
	}
	return parseInt(s) != 0
}

// parsePattern decodes "<channels> <onMs> <offMs> <ir> <pump> <vib>".
// The channel token enables every channel whose name it contains, so
// "IR+PUMP" and "IRPUMP" are the same.
func parsePattern(args []string) PatternUpdate {
	var u PatternUpdate

	if tok := arg(args, 0); tok != "" && tok != "-" {
		u.ChannelsSet = true
		for i, name := range channelNames {
			u.Enabled[i] = strings.Contains(tok, name)
		}
	}

	fields := []*Optional{&u.OnMs, &u.OffMs, &u.IR, &u.Pump, &u.Vib}
	for i, dst := range fields {
		tok := arg(args, i+1)
		if tok == "" || tok == "-" {
			continue
		}
		*dst = Optional{Value: parseInt(tok), Set: true}
	}
	return u
}
