package zfish

import (
	"testing"
	"time"

	"github.com/itohio/zfishctrl/pkg/rig"
	"github.com/stretchr/testify/assert"
)

func TestCommandBuilders(t *testing.T) {
	on := 250 * time.Millisecond
	ir := 100

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"start unbounded", Start(0), "START"},
		{"start", Start(90 * time.Second), "START 90000"},
		{"set level", SetLevel(rig.Pump, 12), "SET PUMP 12"},
		{"manual level", Manual(rig.Vib, 3), "MANUAL VIB 3"},
		{"manual on", Manual(rig.Heater, 1), "MANUAL HEATER ON"},
		{"manual off", Manual(rig.White, 0), "MANUAL WHITE OFF"},
		{"pattern keep all", SetPattern(PatternArgs{}), "SET PATTERN - - - - - -"},
		{"pattern", SetPattern(PatternArgs{Channels: []rig.Channel{rig.IR, rig.Vib}, On: &on, IR: &ir}), "SET PATTERN IR+VIB 250 - 100 - -"},
		{"pattern none", SetPattern(PatternArgs{Channels: []rig.Channel{}}), "SET PATTERN NONE - - - - -"},
		{"zimon", ZimonLevel(rig.White, 80), "WHITE 80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestSetPattern_ParsedByFirmware(t *testing.T) {
	on := 250 * time.Millisecond
	off := time.Duration(0)
	ir, vib := 100, 7

	cmd := rig.ParseCommand(SetPattern(PatternArgs{
		Channels: []rig.Channel{rig.IR, rig.Vib},
		On:       &on,
		Off:      &off,
		IR:       &ir,
		Vib:      &vib,
	}))

	assert.Equal(t, rig.CmdSetPattern, cmd.Kind)
	u := cmd.Pattern
	assert.True(t, u.ChannelsSet)
	assert.Equal(t, [rig.NumChannels]bool{true, false, false, true, false}, u.Enabled)
	assert.Equal(t, rig.Optional{Value: 250, Set: true}, u.OnMs)
	assert.Equal(t, rig.Optional{Value: 0, Set: true}, u.OffMs)
	assert.Equal(t, rig.Optional{Value: 100, Set: true}, u.IR)
	assert.False(t, u.Pump.Set)
	assert.Equal(t, rig.Optional{Value: 7, Set: true}, u.Vib)
}
