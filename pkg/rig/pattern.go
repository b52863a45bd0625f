package rig

// Pattern is the repeating on/off cycle applied while an experiment runs.
type Pattern struct {
	Enabled [NumChannels]bool
	// Level holds the on-phase PWM level of IR, Pump and Vib. Switched
	// channels always go to MaxLevel.
	Level [NumChannels]uint8
	OnMs  uint32
	OffMs uint32
}

// DefaultPattern pulses IR at full power, one second on and one second off.
func DefaultPattern() Pattern {
	var p Pattern
	p.Enabled[IR] = true
	p.Level[IR] = MaxLevel
	p.OnMs = 1000
	p.OffMs = 1000
	return p
}

// levelOf returns the level a channel is driven at during the on phase.
func (p Pattern) levelOf(ch Channel) uint8 {
	if ch.Switched() {
		return MaxLevel
	}
	return p.Level[ch]
}

// Session describes the running experiment, if any.
type Session struct {
	Running    bool
	StartMs    uint32
	DurationMs uint32 // 0 runs until STOP
}

// expired reports whether a bounded session has reached its duration.
// Tick arithmetic is modular so a wrapping millisecond counter is fine.
func (s Session) expired(now uint32) bool {
	return s.Running && s.DurationMs > 0 && now-s.StartMs >= s.DurationMs
}

// toggleTimer is the stimulus runner's phase and next deadline.
type toggleTimer struct {
	on   bool
	next uint32
}

func (t toggleTimer) due(now uint32) bool {
	return int32(now-t.next) >= 0
}
