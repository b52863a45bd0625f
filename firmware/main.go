//go:build tinygo

//go:generate tinygo flash -target=arduino

package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/onewire"

	"github.com/itohio/zfishctrl/pkg/rig"
	"github.com/itohio/zfishctrl/pkg/zimon"
)

// variant selects the command dialect at build time:
//
//	tinygo flash -target=arduino -ldflags="-X main.variant=zimon" ./firmware
var variant = "zfishctrl"

// firmware is the cooperative loop shared by both dialects.
type firmware interface {
	Begin(now uint32) []string
	Poll(now uint32, rx []byte) []string
}

var (
	uart = machine.UART0
	boot time.Time

	// Serial receive scratch buffer, drained every loop iteration
	rxBuffer [64]byte
)

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})
	boot = time.Now()

	outputs := configureOutputs()
	thermo := configureProbe()

	var fw firmware
	if variant == "zimon" {
		fw = zimon.New(outputs, thermo)
	} else {
		fw = rig.New(rig.DefaultConfig(), outputs, thermo)
	}

	writeLines(fw.Begin(millis()))

	for {
		n := 0
		for uart.Buffered() > 0 && n < len(rxBuffer) {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			rxBuffer[n] = b
			n++
		}

		writeLines(fw.Poll(millis(), rxBuffer[:n]))

		time.Sleep(time.Millisecond)
	}
}

// millis returns milliseconds since boot. It wraps after ~49.7 days, which
// the controller tolerates.
func millis() uint32 {
	return uint32(time.Since(boot) / time.Millisecond)
}

func writeLines(lines []string) {
	for _, line := range lines {
		uart.Write([]byte(line))
		uart.Write([]byte("\r\n"))
	}
}

// pwmTimer is the subset of the machine PWM peripheral the rig uses.
type pwmTimer interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Set(channel uint8, value uint32)
	Top() uint32
}

// outputs drives the five actuator pins.
type outputs struct {
	timer1 pwmTimer
	timer2 pwmTimer
	irCh   uint8
	pumpCh uint8
	vibCh  uint8
}

func configureOutputs() *outputs {
	o := &outputs{timer1: machine.Timer1, timer2: machine.Timer2}

	for _, t := range []pwmTimer{o.timer1, o.timer2} {
		if err := t.Configure(machine.PWMConfig{Period: PWM_PERIOD_NS}); err != nil {
			println("pwm configure:", err.Error())
		}
	}
	var err error
	if o.irCh, err = o.timer1.Channel(PIN_IR); err != nil {
		println("pwm IR:", err.Error())
	}
	if o.pumpCh, err = o.timer1.Channel(PIN_PUMP); err != nil {
		println("pwm PUMP:", err.Error())
	}
	if o.vibCh, err = o.timer2.Channel(PIN_VIB); err != nil {
		println("pwm VIB:", err.Error())
	}

	PIN_WHITE.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_HEATER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_WHITE.Low()
	PIN_HEATER.Low()

	return o
}

// Write implements rig.Driver.
func (o *outputs) Write(ch rig.Channel, level uint8) {
	switch ch {
	case rig.IR:
		o.timer1.Set(o.irCh, scale(o.timer1, level))
	case rig.Pump:
		o.timer1.Set(o.pumpCh, scale(o.timer1, level))
	case rig.Vib:
		o.timer2.Set(o.vibCh, scale(o.timer2, level))
	case rig.White:
		PIN_WHITE.Set(level > 0)
	case rig.Heater:
		PIN_HEATER.Set(level > 0)
	}
}

func scale(t pwmTimer, level uint8) uint32 {
	return uint32(level) * t.Top() / rig.MaxLevel
}

// probe drives the DS18B20 conversion and scratchpad steps. Timing lives
// in rig.PolledSensor.
type probe struct {
	sensor ds18b20.Device
	wire   onewire.Device
	rom    []uint8
}

func configureProbe() *rig.PolledSensor {
	wire := onewire.New(PIN_ONEWIRE)
	p := &probe{wire: wire, sensor: ds18b20.New(wire)}
	s := rig.NewPolledSensor(p, millis, rig.DS18B20ConversionMs)
	s.Start()
	return s
}

// Request implements rig.Thermometer, looking the probe up again after it
// went missing.
func (p *probe) Request() error {
	if p.rom == nil {
		rom, err := p.wire.ReadAddress()
		if err != nil {
			return err
		}
		if len(rom) != 8 {
			return rig.ErrSensorDisconnected
		}
		p.rom = rom
	}
	p.sensor.RequestTemperature(p.rom)
	return nil
}

// Read implements rig.Thermometer.
func (p *probe) Read() (float32, error) {
	milli, err := p.sensor.ReadTemperature(p.rom)
	if err != nil {
		p.rom = nil
		return 0, err
	}
	return float32(milli) / 1000, nil
}
