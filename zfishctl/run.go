package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/itohio/zfishctrl/pkg/config"
	"github.com/itohio/zfishctrl/pkg/rig"
	"github.com/itohio/zfishctrl/pkg/sample"
	"github.com/itohio/zfishctrl/pkg/schedule"
	"github.com/itohio/zfishctrl/pkg/session"
	"github.com/itohio/zfishctrl/pkg/zfish"
)

// runExperiment loads the configured pattern, starts one session and
// records it until the rig reports the end. Interrupting sends STOP.
// The zimon firmware has no sessions, so its stimuli are timed here.
func runExperiment(ctx context.Context, dev zfish.Device, cfg *config.Config, average, tracePoints int) error {
	if cfg.Protocol.Variant == config.ProtocolZimon {
		return runSchedule(ctx, dev, cfg)
	}

	rec := session.NewRecorder()
	recEvents := make(chan zfish.Event, 100)
	recDone := make(chan struct{})
	go func() {
		defer close(recDone)
		rec.Run(recEvents)
	}()

	sampleEvents := make(chan zfish.Event, 100)
	samples := sample.NewAveragingConverter(average, 500)(sampleEvents)
	var trace []sample.Sample
	traceDone := make(chan struct{})
	go func() {
		defer close(traceDone)
		for s := range samples {
			trace = append(trace, s)
		}
	}()

	forward := func(ev zfish.Event) {
		printEvent(ev)
		recEvents <- ev
		sampleEvents <- ev
	}
	var once sync.Once
	drain := func() {
		once.Do(func() {
			close(recEvents)
			close(sampleEvents)
			<-recDone
			<-traceDone
		})
	}
	defer drain()

	for _, cmd := range []string{zfish.SetPattern(patternArgs(cfg.Pattern)), zfish.Start(cfg.Experiment.Duration)} {
		rctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		ev, err := zfish.Request(rctx, dev, cmd, forward)
		cancel()
		if err != nil {
			return err
		}
		forward(ev)
		switch ev.Kind {
		case zfish.EventUnknownCmd, zfish.EventLineTooLong:
			return fmt.Errorf("rig rejected %q: %s", cmd, ev.Line)
		case zfish.EventAlreadyRunning:
			return errors.New("an experiment is already running, send STOP first")
		}
	}

	if err := follow(ctx, dev, forward); err != nil {
		return err
	}

	drain()

	records := rec.Records()
	for _, r := range records {
		fmt.Printf("Session %s after %v: %d toggles, %d readings",
			r.Reason, r.Duration().Round(time.Millisecond), r.Toggles, r.Readings)
		if r.Readings > 0 {
			fmt.Printf(", %.2f..%.2f°C (mean %.2f)", r.MinC, r.MaxC, r.MeanC)
		}
		fmt.Println()
	}
	printTrace(trace, tracePoints)

	if cfg.Experiment.RecordFile != "" && len(records) > 0 {
		if err := session.AppendCSV(cfg.Experiment.RecordFile, records); err != nil {
			return err
		}
		fmt.Printf("Recorded to %s\n", cfg.Experiment.RecordFile)
	}
	return nil
}

func runSchedule(ctx context.Context, dev zfish.Device, cfg *config.Config) error {
	stimuli, err := schedule.FromConfig(cfg.Stimuli)
	if err != nil {
		return err
	}
	if len(stimuli) == 0 {
		return errors.New("no stimuli configured for the zimon protocol")
	}

	r := schedule.NewRunner(dev, stimuli, cfg.Experiment.Duration, printEvent)
	log.Printf("Scheduling %d level changes over %v", len(r.Steps()), cfg.Experiment.Duration)

	res, err := r.Run(ctx)
	fmt.Printf("Schedule %s after %v: %d of %d steps, max lag %v\n",
		res.Reason, res.Elapsed.Round(time.Millisecond), len(res.Entries), len(r.Steps()),
		res.MaxLag().Round(time.Millisecond))
	return err
}

// follow forwards events until the session ends. On interrupt it asks the
// rig to stop and waits briefly for the acknowledgement.
func follow(ctx context.Context, dev zfish.Device, forward func(zfish.Event)) error {
	done := ctx.Done()
	var giveUp <-chan time.Time

	for {
		select {
		case <-done:
			log.Printf("Interrupted, stopping experiment")
			if err := dev.Send(zfish.CmdStop); err != nil {
				return err
			}
			done = nil
			giveUp = time.After(2 * time.Second)
		case <-giveUp:
			return errors.New("rig did not acknowledge STOP")
		case ev, ok := <-dev.Events():
			if !ok {
				return zfish.ErrNotConnected
			}
			forward(ev)
			switch ev.Kind {
			case zfish.EventFinished, zfish.EventStopped:
				return nil
			}
		}
	}
}

func patternArgs(p config.PatternConfig) zfish.PatternArgs {
	args := zfish.PatternArgs{
		Channels: []rig.Channel{},
		On:       &p.OnDuration,
		Off:      &p.OffDuration,
		IR:       &p.IRPWM,
		Pump:     &p.PumpPWM,
		Vib:      &p.VibPWM,
	}
	for _, name := range p.Channels {
		if ch, ok := rig.ParseChannel(strings.ToUpper(name)); ok {
			args.Channels = append(args.Channels, ch)
		}
	}
	return args
}

func printTrace(trace []sample.Sample, points int) {
	if points <= 0 || len(trace) == 0 {
		return
	}
	var b strings.Builder
	for i, s := range sample.TraceSamples(nil, trace, points) {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.1f", s.Celsius)
	}
	fmt.Printf("Temperature trace: %s\n", b.String())
}
