// Package schedule plays channel stimuli from the host against firmware
// speaking the ZIMON protocol, which only knows direct channel levels.
// Stimuli are expanded into a timeline of level changes ordered by offset
// from the start of the run.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/itohio/zfishctrl/pkg/config"
	"github.com/itohio/zfishctrl/pkg/rig"
)

// MaxRepeat caps how far a pulse train is expanded when the run has no end.
const MaxRepeat = 10 * time.Minute

// Channels are the outputs switched off when a run ends.
var Channels = []rig.Channel{rig.IR, rig.White, rig.Vib, rig.Pump}

// Stimulus drives one channel.
type Stimulus struct {
	Channel    rig.Channel
	Level      uint8
	Delay      time.Duration // first onset
	Duration   time.Duration // on time, 0 stays on
	Off        time.Duration // gap between pulses, 0 fires once
	Continuous bool          // on at the start, ignores the timings
}

// Step is one level change at an offset from the start of the run.
type Step struct {
	At      time.Duration
	Channel rig.Channel
	Level   uint8
}

func (s Step) String() string {
	return fmt.Sprintf("%v %s %d", s.At, s.Channel, s.Level)
}

// FromConfig converts the stimuli section of the configuration.
func FromConfig(cfgs []config.StimulusConfig) ([]Stimulus, error) {
	out := make([]Stimulus, 0, len(cfgs))
	for i, c := range cfgs {
		ch, ok := rig.ParseChannel(strings.ToUpper(c.Channel))
		if !ok || ch == rig.Heater {
			return nil, fmt.Errorf("stimulus %d: channel %q cannot be scheduled", i, c.Channel)
		}
		level := c.Level
		if level == 0 {
			level = rig.MaxLevel
		}
		out = append(out, Stimulus{
			Channel:    ch,
			Level:      uint8(min(max(level, 0), rig.MaxLevel)),
			Delay:      c.Delay,
			Duration:   c.Duration,
			Off:        c.Off,
			Continuous: c.Continuous,
		})
	}
	return out, nil
}

// Timeline expands stimuli into steps sorted by offset. Steps at or past a
// positive total are left out since the run switches everything off then.
// With no total, pulse trains stop repeating after MaxRepeat.
func Timeline(stimuli []Stimulus, total time.Duration) []Step {
	horizon := total
	if horizon <= 0 {
		horizon = MaxRepeat
	}
	inRun := func(at time.Duration) bool {
		return total <= 0 || at < total
	}

	var steps []Step
	for _, s := range stimuli {
		if s.Continuous {
			steps = append(steps, Step{Channel: s.Channel, Level: s.Level})
			continue
		}
		for on := s.Delay; on < horizon; on += s.Duration + s.Off {
			steps = append(steps, Step{At: on, Channel: s.Channel, Level: s.Level})
			if s.Duration <= 0 {
				break
			}
			if off := on + s.Duration; inRun(off) {
				steps = append(steps, Step{At: off, Channel: s.Channel})
			}
			if s.Off <= 0 {
				break
			}
		}
	}

	// Offs go first at the same offset so back to back stimuli on one
	// channel end up on.
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].At != steps[j].At {
			return steps[i].At < steps[j].At
		}
		return steps[i].Level == 0 && steps[j].Level != 0
	})
	return steps
}
