package rig

// Thermometer is a sensor with a separate conversion step, like the
// DS18B20: Request starts a conversion, Read fetches its result.
type Thermometer interface {
	Request() error
	Read() (float32, error)
}

// PolledSensor adapts a Thermometer to Sensor without blocking. Each read
// returns the conversion started by the previous one and starts the next.
// Until a conversion has had conversionMs to finish, the last good reading
// is returned, or ErrSensorDisconnected if there is none, so the sensor's
// power-on scratchpad is never reported.
type PolledSensor struct {
	dev          Thermometer
	millis       func() uint32
	conversionMs uint32

	pending     bool
	requestedAt uint32
	last        float32
	valid       bool
}

// DS18B20ConversionMs is the worst-case 12-bit conversion time.
const DS18B20ConversionMs = 750

// NewPolledSensor wraps dev. millis returns the current tick.
func NewPolledSensor(dev Thermometer, millis func() uint32, conversionMs uint32) *PolledSensor {
	return &PolledSensor{dev: dev, millis: millis, conversionMs: conversionMs}
}

// ReadCelsius implements Sensor.
func (s *PolledSensor) ReadCelsius() (float32, error) {
	now := s.millis()

	if !s.pending {
		s.start(now)
		return s.cached()
	}
	if now-s.requestedAt < s.conversionMs {
		return s.cached()
	}

	v, err := s.dev.Read()
	if err != nil {
		// Sensor gone: rediscover on the next read.
		s.pending = false
		s.valid = false
		return 0, ErrSensorDisconnected
	}
	s.last, s.valid = v, true
	s.start(now)
	return v, nil
}

// Start begins the first conversion, typically at boot.
func (s *PolledSensor) Start() {
	s.start(s.millis())
}

func (s *PolledSensor) start(now uint32) {
	if err := s.dev.Request(); err != nil {
		s.pending = false
		s.valid = false
		return
	}
	s.pending = true
	s.requestedAt = now
}

func (s *PolledSensor) cached() (float32, error) {
	if !s.valid {
		return 0, ErrSensorDisconnected
	}
	return s.last, nil
}
