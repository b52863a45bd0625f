package main

import (
	"context"
	"fmt"
	"time"

	"github.com/itohio/zfishctrl/pkg/sample"
	"github.com/itohio/zfishctrl/pkg/zfish"
)

// monitor prints every line from the rig until interrupted, plus a smoothed
// temperature whenever a reading arrives.
func monitor(ctx context.Context, dev zfish.Device, average int) error {
	events := make(chan zfish.Event, 100)
	samples := sample.NewAveragingConverter(average, 100)(events)
	defer func() {
		close(events)
		for range samples {
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-dev.Events():
			if !ok {
				return zfish.ErrNotConnected
			}
			printEvent(ev)
			events <- ev
		case s := <-samples:
			if average > 1 {
				fmt.Printf("%s avg %.2f°C\n", s.Timestamp.Format("15:04:05.000"), s.Celsius)
			}
		}
	}
}

// send issues each command in turn and prints its reply.
func send(ctx context.Context, dev zfish.Device, cmds []string) error {
	if len(cmds) == 0 {
		return fmt.Errorf("nothing to send")
	}

	for _, cmd := range cmds {
		rctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		ev, err := zfish.Request(rctx, dev, cmd, printEvent)
		cancel()
		if err != nil {
			return err
		}
		printEvent(ev)
		if ev.Kind == zfish.EventUnknownCmd || ev.Kind == zfish.EventLineTooLong {
			return fmt.Errorf("rig rejected %q: %s", cmd, ev.Line)
		}
	}
	return nil
}
