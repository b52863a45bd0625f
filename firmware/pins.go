//go:build tinygo

package main

import "machine"

const (
	// PWM outputs. D9/D10 share Timer1, D3 sits on Timer2.
	PIN_IR   = machine.D9
	PIN_PUMP = machine.D10
	PIN_VIB  = machine.D3

	// Relay outputs
	PIN_WHITE  = machine.D7
	PIN_HEATER = machine.D8

	// DS18B20 data line (4.7k pull-up to 5V)
	PIN_ONEWIRE = machine.D2

	// PWM period in nanoseconds (~490 Hz, the Uno analogWrite default)
	PWM_PERIOD_NS = 2_040_000

	UART_BAUD_RATE = 115200
)
