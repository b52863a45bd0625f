package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/zfishctrl/pkg/rig"
)

// Protocol variants spoken by the firmware.
const (
	ProtocolZfish = "zfishctrl"
	ProtocolZimon = "zimon"
)

// Config represents the application configuration.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Protocol   ProtocolConfig   `yaml:"protocol"`
	Safety     SafetyConfig     `yaml:"safety"`
	Pattern    PatternConfig    `yaml:"pattern"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Stimuli    []StimulusConfig `yaml:"stimuli"`
	Mock       MockConfig       `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ProtocolConfig selects and tunes the command protocol.
type ProtocolConfig struct {
	Variant           string `yaml:"variant"`             // "zfishctrl" or "zimon"
	Quiet             bool   `yaml:"quiet"`               // Suppress CMD:<line> echo
	MaxLine           int    `yaml:"max_line"`            // Longest accepted command line in bytes
	LegacyPatternZero bool   `yaml:"legacy_pattern_zero"` // 0 in SET PATTERN leaves the field unchanged
}

// SafetyConfig contains the temperature monitor parameters.
type SafetyConfig struct {
	TempCeiling    float64       `yaml:"temp_ceiling"`    // Cutoff temperature (°C)
	ReportInterval time.Duration `yaml:"report_interval"` // Temperature report period
}

// PatternConfig is the stimulus pattern loaded at startup.
type PatternConfig struct {
	Channels    []string      `yaml:"channels"` // Enabled channels, e.g. [IR, PUMP]
	IRPWM       int           `yaml:"ir_pwm"`
	PumpPWM     int           `yaml:"pump_pwm"`
	VibPWM      int           `yaml:"vib_pwm"`
	OnDuration  time.Duration `yaml:"on_duration"`
	OffDuration time.Duration `yaml:"off_duration"`
}

// ExperimentConfig contains host-side experiment run parameters.
type ExperimentConfig struct {
	Duration   time.Duration `yaml:"duration"`    // 0 runs until stopped
	RecordFile string        `yaml:"record_file"` // CSV file for experiment records
}

// StimulusConfig is one host-timed channel stimulus for the zimon variant.
// Delay is the first onset. Duration is the on time, 0 leaves the channel
// on. Off is the gap between repeated pulses, 0 gives a single pulse.
type StimulusConfig struct {
	Channel    string        `yaml:"channel"`
	Level      int           `yaml:"level"` // 0 = full
	Delay      time.Duration `yaml:"delay"`
	Duration   time.Duration `yaml:"duration"`
	Off        time.Duration `yaml:"off"`
	Continuous bool          `yaml:"continuous"` // On from the start until the run ends
}

// MockConfig contains simulated rig configuration.
type MockConfig struct {
	Ambient        float64       `yaml:"ambient"`         // Room/water baseline temperature (°C)
	StartTemp      float64       `yaml:"start_temp"`      // Initial tank temperature (°C), 0 = ambient
	HeaterRise     float64       `yaml:"heater_rise"`     // Steady-state rise with the heater on (°C)
	TimeConstant   time.Duration `yaml:"time_constant"`   // Thermal time constant of the tank
	Tick           time.Duration `yaml:"tick"`            // Simulated firmware loop period
	SensorDetached bool          `yaml:"sensor_detached"` // Simulate a missing temperature probe
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Protocol: ProtocolConfig{
			Variant: ProtocolZfish,
			MaxLine: rig.DefaultMaxLine,
		},
		Safety: SafetyConfig{
			TempCeiling:    50.0,
			ReportInterval: 2 * time.Second,
		},
		Pattern: PatternConfig{
			Channels:    []string{"IR"},
			IRPWM:       255,
			OnDuration:  time.Second,
			OffDuration: time.Second,
		},
		Experiment: ExperimentConfig{
			Duration:   time.Minute,
			RecordFile: "experiments.csv",
		},
		Mock: MockConfig{
			Ambient:      26.0,
			HeaterRise:   8.0,
			TimeConstant: time.Minute,
			Tick:         10 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the firmware cannot represent.
func (c *Config) Validate() error {
	switch c.Protocol.Variant {
	case ProtocolZfish, ProtocolZimon:
	default:
		return fmt.Errorf("unknown protocol variant %q", c.Protocol.Variant)
	}
	for _, name := range c.Pattern.Channels {
		if _, ok := rig.ParseChannel(strings.ToUpper(name)); !ok {
			return fmt.Errorf("unknown pattern channel %q", name)
		}
	}
	if c.Pattern.OnDuration < 0 || c.Pattern.OffDuration < 0 {
		return fmt.Errorf("pattern durations must not be negative")
	}
	for i, s := range c.Stimuli {
		if err := s.validate(); err != nil {
			return fmt.Errorf("stimulus %d: %w", i, err)
		}
	}
	return nil
}

func (s StimulusConfig) validate() error {
	ch, ok := rig.ParseChannel(strings.ToUpper(s.Channel))
	if !ok || ch == rig.Heater {
		return fmt.Errorf("channel %q cannot be scheduled", s.Channel)
	}
	if s.Level < 0 || s.Level > rig.MaxLevel {
		return fmt.Errorf("level %d out of range", s.Level)
	}
	if s.Delay < 0 || s.Duration < 0 || s.Off < 0 {
		return fmt.Errorf("timings must not be negative")
	}
	if s.Off > 0 && s.Duration == 0 {
		return fmt.Errorf("repeating pulses need a duration")
	}
	return nil
}

// Rig converts the configuration into controller settings.
func (c *Config) Rig() rig.Config {
	rc := rig.DefaultConfig()
	rc.Echo = !c.Protocol.Quiet
	rc.MaxLine = c.Protocol.MaxLine
	rc.LegacyPatternZero = c.Protocol.LegacyPatternZero
	rc.TempCeiling = float32(c.Safety.TempCeiling)
	rc.ReportInterval = uint32(c.Safety.ReportInterval / time.Millisecond)

	var p rig.Pattern
	for _, name := range c.Pattern.Channels {
		if ch, ok := rig.ParseChannel(strings.ToUpper(name)); ok {
			p.Enabled[ch] = true
		}
	}
	p.Level[rig.IR] = pwm(c.Pattern.IRPWM)
	p.Level[rig.Pump] = pwm(c.Pattern.PumpPWM)
	p.Level[rig.Vib] = pwm(c.Pattern.VibPWM)
	p.OnMs = uint32(c.Pattern.OnDuration / time.Millisecond)
	p.OffMs = uint32(c.Pattern.OffDuration / time.Millisecond)
	rc.Pattern = p

	return rc
}

func pwm(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > rig.MaxLevel {
		return rig.MaxLevel
	}
	return uint8(v)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Protocol.Variant == "" {
		c.Protocol.Variant = def.Protocol.Variant
	}
	c.Protocol.Variant = strings.ToLower(c.Protocol.Variant)
	if c.Protocol.MaxLine <= 0 {
		c.Protocol.MaxLine = def.Protocol.MaxLine
	}

	if c.Safety.TempCeiling == 0 {
		c.Safety.TempCeiling = def.Safety.TempCeiling
	}
	if c.Safety.ReportInterval == 0 {
		c.Safety.ReportInterval = def.Safety.ReportInterval
	}

	if len(c.Pattern.Channels) == 0 {
		c.Pattern.Channels = def.Pattern.Channels
	}

	if c.Experiment.RecordFile == "" {
		c.Experiment.RecordFile = def.Experiment.RecordFile
	}

	for i := range c.Stimuli {
		c.Stimuli[i].Channel = strings.ToUpper(c.Stimuli[i].Channel)
		if c.Stimuli[i].Level == 0 {
			c.Stimuli[i].Level = rig.MaxLevel
		}
	}

	if c.Mock.Tick == 0 {
		c.Mock.Tick = def.Mock.Tick
	}
	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
	if c.Mock.Ambient == 0 {
		c.Mock.Ambient = def.Mock.Ambient
	}
	if c.Mock.StartTemp == 0 {
		c.Mock.StartTemp = c.Mock.Ambient
	}
}
