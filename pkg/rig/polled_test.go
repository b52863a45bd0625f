package rig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeThermometer reports 85.00 until a conversion has been requested, like a
// DS18B20 fresh from power-on.
type fakeThermometer struct {
	converted  float32
	converting bool
	requests   int
	reads      int
	absent     bool
}

func newFakeThermometer(celsius float32) *fakeThermometer {
	return &fakeThermometer{converted: celsius}
}

func (p *fakeThermometer) Request() error {
	if p.absent {
		return errors.New("no presence pulse")
	}
	p.requests++
	p.converting = true
	return nil
}

func (p *fakeThermometer) Read() (float32, error) {
	if p.absent {
		return 0, errors.New("crc mismatch")
	}
	p.reads++
	if !p.converting {
		return 85, nil
	}
	return p.converted, nil
}

type clock struct{ ms uint32 }

func (c *clock) now() uint32 { return c.ms }

func TestPolledSensor_WaitsForConversion(t *testing.T) {
	therm := newFakeThermometer(24.5)
	clk := &clock{}
	s := NewPolledSensor(therm, clk.now, DS18B20ConversionMs)
	s.Start()

	// TEMP? right after boot must not report the power-on value.
	clk.ms = 100
	_, err := s.ReadCelsius()
	assert.ErrorIs(t, err, ErrSensorDisconnected)
	assert.Zero(t, therm.reads)

	clk.ms = 750
	v, err := s.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, float32(24.5), v)
	assert.Equal(t, 2, therm.requests, "next conversion starts after each read")

	// A read inside the next conversion window returns the cached value.
	therm.converted = 26
	clk.ms = 900
	v, err = s.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, float32(24.5), v)
	assert.Equal(t, 1, therm.reads)

	clk.ms = 2750
	v, err = s.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, float32(26), v)
}

func TestPolledSensor_Reconnect(t *testing.T) {
	therm := newFakeThermometer(25)
	therm.absent = true
	clk := &clock{}
	s := NewPolledSensor(therm, clk.now, DS18B20ConversionMs)
	s.Start()

	clk.ms = 2000
	_, err := s.ReadCelsius()
	assert.ErrorIs(t, err, ErrSensorDisconnected)

	// Plugged back in: the first read only starts a conversion.
	therm.absent = false
	clk.ms = 4000
	_, err = s.ReadCelsius()
	assert.ErrorIs(t, err, ErrSensorDisconnected)
	assert.Zero(t, therm.reads)

	clk.ms = 6000
	v, err := s.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, float32(25), v)
}

func TestPolledSensor_ReadFailureDropsCache(t *testing.T) {
	therm := newFakeThermometer(25)
	clk := &clock{}
	s := NewPolledSensor(therm, clk.now, DS18B20ConversionMs)
	s.Start()

	clk.ms = 1000
	_, err := s.ReadCelsius()
	require.NoError(t, err)

	therm.absent = true
	clk.ms = 3000
	_, err = s.ReadCelsius()
	assert.ErrorIs(t, err, ErrSensorDisconnected)

	clk.ms = 3100
	_, err = s.ReadCelsius()
	assert.ErrorIs(t, err, ErrSensorDisconnected, "stale reading is not reused")
}

func TestPolledSensor_TickWrap(t *testing.T) {
	therm := newFakeThermometer(23)
	clk := &clock{ms: ^uint32(0) - 100}
	s := NewPolledSensor(therm, clk.now, DS18B20ConversionMs)
	s.Start()

	clk.ms = 200 // 301ms later, across the wrap
	_, err := s.ReadCelsius()
	assert.ErrorIs(t, err, ErrSensorDisconnected)

	clk.ms = 700
	v, err := s.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, float32(23), v)
}
