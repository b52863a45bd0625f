package sample

import (
	"log"
	"time"

	"github.com/itohio/zfishctrl/pkg/zfish"
)

// Sample represents one temperature reading tagged with the rig state at the
// moment it was reported.
type Sample struct {
	Timestamp time.Time
	Celsius   float64 // Water temperature (°C)
	Stimulus  bool    // Pattern outputs were in the On phase
	Running   bool    // An experiment session was active
}

// Converter is a function type that converts an Event channel to a Sample channel.
type Converter func(in <-chan zfish.Event) <-chan Sample

// state follows session and stimulus transitions in the event stream.
type state struct {
	running  bool
	stimulus bool
}

// update folds e into the state and reports whether e carried a valid
// temperature reading.
func (s *state) update(e zfish.Event) (Sample, bool) {
	switch e.Kind {
	case zfish.EventStarted:
		s.running = true
	case zfish.EventStopped, zfish.EventFinished, zfish.EventEmergency:
		s.running = false
		s.stimulus = false
	case zfish.EventToggle:
		s.stimulus = e.On
	case zfish.EventTemp:
		if !e.TempValid {
			return Sample{}, false
		}
		return Sample{
			Timestamp: e.Timestamp,
			Celsius:   e.Celsius,
			Stimulus:  s.stimulus,
			Running:   s.running,
		}, true
	}
	return Sample{}, false
}

// NewConverter creates a converter that emits one Sample for every valid
// temperature report. Readings from a disconnected probe are dropped.
func NewConverter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan zfish.Event) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var st state
			for e := range in {
				if e.Kind == zfish.EventTemp && !e.TempValid {
					log.Printf("Temperature probe disconnected at %s", e.Timestamp.Format(time.TimeOnly))
				}
				sample, ok := st.update(e)
				if !ok {
					continue
				}

				select {
				case out <- sample:
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}
