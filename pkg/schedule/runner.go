package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itohio/zfishctrl/pkg/rig"
	"github.com/itohio/zfishctrl/pkg/session"
	"github.com/itohio/zfishctrl/pkg/zfish"
)

// AckTimeout bounds the wait for a <CH>_OK reply.
const AckTimeout = time.Second

// Entry logs one applied step.
type Entry struct {
	Intended time.Duration
	Actual   time.Duration
	Channel  rig.Channel
	Level    uint8
}

// Lag is how late the step went out.
func (e Entry) Lag() time.Duration { return e.Actual - e.Intended }

// Result describes a finished run.
type Result struct {
	Reason  session.StopReason
	Elapsed time.Duration
	Entries []Entry
}

// MaxLag returns the latest any step went out.
func (r Result) MaxLag() time.Duration {
	var lag time.Duration
	for _, e := range r.Entries {
		lag = max(lag, e.Lag())
	}
	return lag
}

// Runner plays a timeline against a device.
type Runner struct {
	dev     zfish.Device
	steps   []Step
	total   time.Duration
	forward func(zfish.Event)
}

// NewRunner prepares a run of total length, 0 runs until the context ends.
// Every event read from dev, replies included, is passed to forward.
func NewRunner(dev zfish.Device, stimuli []Stimulus, total time.Duration, forward func(zfish.Event)) *Runner {
	return &Runner{
		dev:     dev,
		steps:   Timeline(stimuli, total),
		total:   total,
		forward: forward,
	}
}

// Steps returns the expanded timeline.
func (r *Runner) Steps() []Step { return r.steps }

// Run applies each step once its offset has passed and ends when the total
// elapses or ctx is done. Every channel in Channels is switched off before
// it returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{Reason: session.ReasonFinished}
	start := time.Now()
	events := r.dev.Events()
	next := 0
	wake := time.After(0)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			res.Reason = session.ReasonStopped
			break loop
		case ev, ok := <-events:
			if !ok {
				res.Reason = session.ReasonDisconnected
				runErr = zfish.ErrNotConnected
				break loop
			}
			r.emit(ev)
			continue
		case <-wake:
		}

		for next < len(r.steps) && r.steps[next].At <= time.Since(start) {
			s := r.steps[next]
			actual := time.Since(start)
			if err := r.apply(ctx, s.Channel, s.Level); err != nil {
				res.Reason = session.ReasonStopped
				if errors.Is(err, zfish.ErrNotConnected) {
					res.Reason = session.ReasonDisconnected
				}
				if ctx.Err() == nil {
					runErr = err
				}
				break loop
			}
			res.Entries = append(res.Entries, Entry{Intended: s.At, Actual: actual, Channel: s.Channel, Level: s.Level})
			next++
		}

		elapsed := time.Since(start)
		if r.total > 0 && elapsed >= r.total {
			break loop
		}
		wake = r.wakeAfter(next, elapsed)
	}

	res.Elapsed = time.Since(start)
	if err := r.off(ctx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("switching outputs off: %w", err))
	}
	return res, runErr
}

// wakeAfter returns when the loop has something to do next, or nil when
// only the context can end the run.
func (r *Runner) wakeAfter(next int, elapsed time.Duration) <-chan time.Time {
	at := time.Duration(-1)
	if next < len(r.steps) {
		at = r.steps[next].At
	}
	if r.total > 0 && (at < 0 || r.total < at) {
		at = r.total
	}
	if at < 0 {
		return nil
	}
	return time.After(max(at-elapsed, 0))
}

func (r *Runner) apply(ctx context.Context, ch rig.Channel, level uint8) error {
	cmd := zfish.ZimonLevel(ch, int(level))
	actx, cancel := context.WithTimeout(ctx, AckTimeout)
	defer cancel()

	ev, err := zfish.Request(actx, r.dev, cmd, r.emit)
	if err != nil {
		return err
	}
	r.emit(ev)
	if ev.Kind != zfish.EventChannelOK {
		return fmt.Errorf("rig rejected %q: %s", cmd, ev.Line)
	}
	return nil
}

// off runs even after ctx is done, so it only inherits its values.
func (r *Runner) off(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, ch := range Channels {
		if err := r.apply(ctx, ch, 0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) emit(ev zfish.Event) {
	if r.forward != nil {
		r.forward(ev)
	}
}
