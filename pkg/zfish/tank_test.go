package zfish

import (
	"testing"
	"time"

	"github.com/itohio/zfishctrl/pkg/config"
	"github.com/itohio/zfishctrl/pkg/rig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTank_HeaterApproachesTarget(t *testing.T) {
	tank := NewTank(config.MockConfig{
		Ambient:      25,
		StartTemp:    25,
		HeaterRise:   10,
		TimeConstant: 10 * time.Second,
	})

	tank.Write(rig.Heater, rig.MaxLevel)
	tank.Advance(10 * time.Second)
	// One time constant covers ~63% of the step.
	assert.InDelta(t, 31.32, tank.Temperature(), 0.01)

	for i := 0; i < 100; i++ {
		tank.Advance(time.Second)
	}
	assert.InDelta(t, 35.0, tank.Temperature(), 0.01)

	tank.Write(rig.Heater, 0)
	for i := 0; i < 200; i++ {
		tank.Advance(time.Second)
	}
	assert.InDelta(t, 25.0, tank.Temperature(), 0.01)
}

func TestTank_Sensor(t *testing.T) {
	tank := NewTank(config.MockConfig{Ambient: 20, StartTemp: 21})

	v, err := tank.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, float32(21), v)

	tank.SetDetached(true)
	_, err = tank.ReadCelsius()
	assert.ErrorIs(t, err, rig.ErrSensorDisconnected)

	tank.SetDetached(false)
	tank.SetTemperature(55)
	v, err = tank.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, float32(55), v)
}

func TestTank_Levels(t *testing.T) {
	tank := NewTank(config.MockConfig{})
	tank.Write(rig.IR, 12)
	tank.Write(rig.White, rig.MaxLevel)
	assert.Equal(t, rig.Actuators{12, 255, 0, 0, 0}, tank.Levels())
}

func TestTank_StartsAtAmbient(t *testing.T) {
	tank := NewTank(config.MockConfig{Ambient: 22})
	assert.Equal(t, float32(22), tank.Temperature())
}
