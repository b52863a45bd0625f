package rig

import (
	"math"
	"strconv"

	"github.com/chewxy/math32"
)

// parseInt reads an optionally signed decimal prefix of s. Anything that is
// not a number yields 0, and trailing garbage is ignored ("12ms" is 12).
// Values saturate at the int32 range.
func parseInt(s string) int64 {
	i := 0
	neg := false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}

	var v int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		v = v*10 + int64(s[i]-'0')
		if v > math.MaxInt32 {
			v = math.MaxInt32 + 1
		}
	}

	if neg {
		v = -v
		if v < math.MinInt32 {
			v = math.MinInt32
		}
	} else if v > math.MaxInt32 {
		v = math.MaxInt32
	}
	return v
}

func clampLevel(v int64) uint8 {
	if v < 0 {
		return 0
	}
	if v > MaxLevel {
		return MaxLevel
	}
	return uint8(v)
}

func clampDuration(v int64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// FormatCelsius renders a reading with two decimals, or "nan" when the
// reading is not a number.
func FormatCelsius(v float32) string {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return "nan"
	}
	return strconv.FormatFloat(float64(v), 'f', 2, 32)
}

// ParseLevel reads a PWM level argument, clamped to 0-255.
func ParseLevel(s string) uint8 {
	return clampLevel(parseInt(s))
}

// ReadTemperature reads s and folds NaN readings into ErrSensorDisconnected.
func ReadTemperature(s Sensor) (float32, error) {
	v, err := s.ReadCelsius()
	if err != nil {
		return math32.NaN(), err
	}
	if math32.IsNaN(v) {
		return v, ErrSensorDisconnected
	}
	return v, nil
}
