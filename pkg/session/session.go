package session

import (
	"sync"
	"time"

	"github.com/itohio/zfishctrl/pkg/rig"
	"github.com/itohio/zfishctrl/pkg/zfish"
)

// StopReason records how an experiment ended.
type StopReason int

const (
	ReasonRunning StopReason = iota
	ReasonStopped
	ReasonFinished
	ReasonEmergency
	ReasonDisconnected
)

func (r StopReason) String() string {
	switch r {
	case ReasonRunning:
		return "running"
	case ReasonStopped:
		return "stopped"
	case ReasonFinished:
		return "finished"
	case ReasonEmergency:
		return "emergency"
	case ReasonDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Record summarizes one experiment session as observed from the host.
type Record struct {
	Start     time.Time
	End       time.Time
	Requested time.Duration // 0 = unbounded
	Reason    StopReason
	Toggles   int // Transitions into the On phase
	Readings  int // Valid temperature reports
	MinC      float64
	MaxC      float64
	MeanC     float64
}

// Duration returns the wall-clock length of the session.
func (r Record) Duration() time.Duration {
	if r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Recorder folds the rig event stream into experiment records.
type Recorder struct {
	mu        sync.RWMutex
	current   *Record
	sum       float64
	records   []Record
	last      time.Time
	requested time.Duration // From the most recent START echo
	emergency bool          // EMERGENCY seen, waiting for EXPERIMENT_STOPPED

	callbacks []func(Record)
	cbMu      sync.RWMutex

	shutdown bool
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Run records events from the input channel until it closes. A session
// still open at that point is closed as disconnected.
func (r *Recorder) Run(input <-chan zfish.Event) {
	for e := range input {
		r.Record(e)
	}

	r.mu.Lock()
	var done *Record
	if r.current != nil {
		done = r.finish(r.last, ReasonDisconnected)
	}
	notify := !r.shutdown
	r.shutdown = true
	r.mu.Unlock()

	if done != nil && notify {
		r.notify(*done)
	}
}

// Record folds a single event into the recorder state.
func (r *Recorder) Record(e zfish.Event) {
	r.mu.Lock()
	done := r.record(e)
	notify := !r.shutdown
	r.mu.Unlock()

	if done != nil && notify {
		r.notify(*done)
	}
}

func (r *Recorder) record(e zfish.Event) *Record {
	if !e.Timestamp.IsZero() {
		r.last = e.Timestamp
	}

	switch e.Kind {
	case zfish.EventEcho:
		cmd := rig.ParseCommand(e.Command)
		if cmd.Kind == rig.CmdStart {
			r.requested = time.Duration(cmd.Duration) * time.Millisecond
		}
	case zfish.EventStarted:
		if r.current == nil {
			r.current = &Record{Start: e.Timestamp, Requested: r.requested}
			r.sum = 0
		}
	case zfish.EventAlreadyRunning:
		r.requested = 0
	case zfish.EventToggle:
		if r.current != nil && e.On {
			r.current.Toggles++
		}
	case zfish.EventTemp:
		if r.current != nil && e.TempValid {
			r.addReading(e.Celsius)
		}
	case zfish.EventEmergency:
		r.emergency = true
	case zfish.EventStopped:
		reason := ReasonStopped
		if r.emergency {
			reason = ReasonEmergency
		}
		r.emergency = false
		if r.current != nil {
			return r.finish(e.Timestamp, reason)
		}
	case zfish.EventFinished:
		if r.current != nil {
			return r.finish(e.Timestamp, ReasonFinished)
		}
	case zfish.EventReady:
		// The board rebooted under us.
		r.emergency = false
		if r.current != nil {
			return r.finish(e.Timestamp, ReasonDisconnected)
		}
	}
	return nil
}

func (r *Recorder) addReading(c float64) {
	cur := r.current
	if cur.Readings == 0 || c < cur.MinC {
		cur.MinC = c
	}
	if cur.Readings == 0 || c > cur.MaxC {
		cur.MaxC = c
	}
	cur.Readings++
	r.sum += c
	cur.MeanC = r.sum / float64(cur.Readings)
}

func (r *Recorder) finish(at time.Time, reason StopReason) *Record {
	done := *r.current
	done.End = at
	done.Reason = reason
	r.records = append(r.records, done)
	r.current = nil
	r.requested = 0
	return &done
}

// Records returns a copy of the completed sessions, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Record, len(r.records))
	copy(result, r.records)
	return result
}

// Current returns the session in progress, if any.
func (r *Recorder) Current() (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return Record{}, false
	}
	return *r.current, true
}

// OnRecord registers a callback invoked for every completed session.
func (r *Recorder) OnRecord(callback func(Record)) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, callback)
}

func (r *Recorder) notify(rec Record) {
	r.cbMu.RLock()
	callbacks := make([]func(Record), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(rec)
		}
	}
}
