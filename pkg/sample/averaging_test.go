package sample

import (
	"testing"
	"time"

	"github.com/itohio/zfishctrl/pkg/zfish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAveragingConverter_SlidingWindow(t *testing.T) {
	now := time.Now()
	samples := feed(NewAveragingConverter(3, 10),
		temp(now, 24.0),
		temp(now.Add(time.Second), 25.0),
		zfish.Event{Kind: zfish.EventStarted},
		temp(now.Add(2*time.Second), 26.0),
		temp(now.Add(3*time.Second), 30.0),
	)

	require.Len(t, samples, 4)
	assert.InDelta(t, 24.0, samples[0].Celsius, 1e-9)
	assert.InDelta(t, 24.5, samples[1].Celsius, 1e-9)
	assert.InDelta(t, 25.0, samples[2].Celsius, 1e-9)
	assert.InDelta(t, 27.0, samples[3].Celsius, 1e-9)

	// Newest timestamp and state win.
	assert.Equal(t, now.Add(3*time.Second), samples[3].Timestamp)
	assert.False(t, samples[1].Running)
	assert.True(t, samples[3].Running)
}

func TestNewAveragingConverter_InvalidWindowSize(t *testing.T) {
	now := time.Now()
	samples := feed(NewAveragingConverter(0, 0),
		temp(now, 24.0),
		temp(now.Add(time.Second), 26.0),
	)

	require.Len(t, samples, 2)
	assert.Equal(t, 26.0, samples[1].Celsius, "window of one passes readings through")
}

func TestNewAveragingConverter_EmptyChannel(t *testing.T) {
	in := make(chan zfish.Event)
	out := NewAveragingConverter(3, 10)(in)

	close(in)

	_, ok := <-out
	assert.False(t, ok, "Output channel should be closed")
}

func TestAverageSamples(t *testing.T) {
	now := time.Now()
	assert.Equal(t, Sample{}, averageSamples(nil))

	avg := averageSamples([]Sample{
		{Timestamp: now, Celsius: 20},
		{Timestamp: now.Add(time.Second), Celsius: 22, Stimulus: true},
	})
	assert.Equal(t, Sample{Timestamp: now.Add(time.Second), Celsius: 21, Stimulus: true}, avg)
}
