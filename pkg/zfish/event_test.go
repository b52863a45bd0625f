package zfish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Event
		wantErr bool
	}{
		{name: "ready", line: "ZFISHCTRL READY", want: Event{Kind: EventReady}},
		{name: "zimon ready", line: "ZIMON_MEGA_READY", want: Event{Kind: EventReady}},
		{name: "pong", line: "PONG", want: Event{Kind: EventPong}},
		{name: "zimon ok", line: "ZIMON_OK", want: Event{Kind: EventPong}},
		{name: "echo", line: "CMD:set ir 5", want: Event{Kind: EventEcho, Command: "set ir 5"}},
		{name: "started", line: "EXPERIMENT_STARTED", want: Event{Kind: EventStarted}},
		{name: "already", line: "ALREADY_RUNNING", want: Event{Kind: EventAlreadyRunning}},
		{name: "stopped", line: "EXPERIMENT_STOPPED", want: Event{Kind: EventStopped}},
		{name: "finished", line: "EXPERIMENT_FINISHED", want: Event{Kind: EventFinished}},
		{name: "emergency", line: "EMERGENCY TEMP_OVER", want: Event{Kind: EventEmergency}},
		{name: "temp", line: "TEMP 24.50", want: Event{Kind: EventTemp, Celsius: 24.5, TempValid: true}},
		{name: "temp nan", line: "TEMP nan", want: Event{Kind: EventTemp}},
		{name: "zimon temp", line: "TEMP_C 30.25", want: Event{Kind: EventTemp, Celsius: 30.25, TempValid: true}},
		{name: "zimon temp err", line: "TEMP_ERR", want: Event{Kind: EventTemp}},
		{name: "toggle on", line: "STIM_TOGGLE ON", want: Event{Kind: EventToggle, On: true}},
		{name: "toggle off", line: "STIM_TOGGLE OFF", want: Event{Kind: EventToggle}},
		{name: "set level", line: "SET PUMP PWM 42", want: Event{Kind: EventSetLevel, Channel: "PUMP", Level: 42}},
		{name: "pattern", line: "PATTERN SET", want: Event{Kind: EventPatternSet}},
		{name: "manual", line: "MANUAL_IR_SET", want: Event{Kind: EventManualSet, Channel: "IR"}},
		{name: "channel ok", line: "WHITE_OK", want: Event{Kind: EventChannelOK, Channel: "WHITE"}},
		{name: "unknown cmd", line: "UNKNOWN_CMD", want: Event{Kind: EventUnknownCmd}},
		{name: "too long", line: "ERR LINE_TOO_LONG", want: Event{Kind: EventLineTooLong}},
		{name: "cmd list", line: "CMDS PING STATUS TEMP? IR WHITE VIB PUMP", want: Event{Kind: EventCommandList}},
		{name: "status", line: "STATUS RUNNING:1 DURATION_MS:60000 IR_PWM:200 PUMP_PWM:10 VIB_PWM:0 PAT_ON:500 PAT_OFF:1500",
			want: Event{Kind: EventStatus, Status: Status{Running: true, DurationMs: 60000, IR: 200, Pump: 10, PatternOn: 500, PatternOff: 1500}}},
		{name: "zimon status", line: "STATUS IR=1 WHITE=2 VIB=3 PUMP=4",
			want: Event{Kind: EventStatus, Status: Status{IR: 1, White: 2, Vib: 3, Pump: 4}}},
		{name: "bad temp", line: "TEMP hot", wantErr: true},
		{name: "bad status", line: "STATUS RUNNING", wantErr: true},
		{name: "bad set", line: "SET IR PWM x", wantErr: true},
		{name: "garbage", line: "hello", wantErr: true},
		{name: "laser ok", line: "LASER_OK", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want.Line = tt.line
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_UnknownIsErrUnknownLine(t *testing.T) {
	_, err := ParseLine("BANANA")
	assert.ErrorIs(t, err, ErrUnknownLine)
}

func TestEvent_Answers(t *testing.T) {
	tests := []struct {
		cmd  string
		line string
		want bool
	}{
		{"PING", "PONG", true},
		{"ping", "ZIMON_OK", true},
		{"STATUS", "STATUS IR=1 WHITE=0 VIB=0 PUMP=0", true},
		{"TEMP?", "TEMP 20.00", true},
		{"TEMP?", "TEMP_ERR", true},
		{"START 1000", "EXPERIMENT_STARTED", true},
		{"START", "ALREADY_RUNNING", true},
		{"START", "STIM_TOGGLE ON", false},
		{"STOP", "EXPERIMENT_STOPPED", true},
		{"STOP", "CMD:STOP", false},
		{"SET IR 5", "SET IR PWM 5", true},
		{"SET PATTERN IR 1 1", "PATTERN SET", true},
		{"MANUAL WHITE ON", "MANUAL_WHITE_SET", true},
		{"IR 10", "IR_OK", true},
		{"IR 10", "PUMP_OK", false},
		{"FOO", "UNKNOWN_CMD", true},
		{"PING", "EXPERIMENT_FINISHED", false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.line, func(t *testing.T) {
			ev, _ := ParseLine(tt.line)
			assert.Equal(t, tt.want, ev.Answers(tt.cmd))
		})
	}
}

func TestEvent_Unsolicited(t *testing.T) {
	for _, line := range []string{"ZFISHCTRL READY", "CMD:PING", "EXPERIMENT_FINISHED", "EMERGENCY TEMP_OVER", "STIM_TOGGLE OFF"} {
		ev, err := ParseLine(line)
		require.NoError(t, err)
		assert.True(t, ev.Unsolicited(), line)
	}
	ev, _ := ParseLine("PONG")
	assert.False(t, ev.Unsolicited())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "emergency", EventEmergency.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
