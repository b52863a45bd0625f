package sample

import (
	"log"
	"time"

	"github.com/itohio/zfishctrl/pkg/zfish"
)

// NewAveragingConverter creates a converter that smooths temperature reports
// over a sliding window of the last windowSize readings. One Sample is
// emitted per valid reading, carrying the newest timestamp and rig state.
func NewAveragingConverter(windowSize int, bufSize int) Converter {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan zfish.Event) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var st state
			var buffer []Sample
			for e := range in {
				sample, ok := st.update(e)
				if !ok {
					continue
				}

				buffer = append(buffer, sample)
				if len(buffer) > windowSize {
					buffer = buffer[1:] // Remove oldest
				}

				select {
				case out <- averageSamples(buffer):
				case <-time.After(time.Second):
					log.Printf("Averaging converter output channel full")
				}
			}
		}()

		return out
	}
}

// averageSamples averages the temperature of samples. The most recent
// sample's timestamp and state flags are kept.
func averageSamples(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	var sum float64
	for _, s := range samples {
		sum += s.Celsius
	}

	avg := samples[len(samples)-1]
	avg.Celsius = sum / float64(len(samples))
	return avg
}
