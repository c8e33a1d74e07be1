package server

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration.
type Config struct {
	Sensor    SensorConfig    `yaml:"sensor" json:"sensor"`
	Filter    FilterConfig    `yaml:"filter" json:"filter"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Recording RecordingConfig `yaml:"recording" json:"recording"`
}

// SensorConfig selects the device and its sample-rate variant.
type SensorConfig struct {
	Port string `yaml:"port" json:"port"` // empty: enumerate FTDI candidates
	Rate string `yaml:"rate" json:"rate"` // "high" (500/100 Hz) or "low" (250/50 Hz)
}

// FilterConfig holds the filter chain parameters.
type FilterConfig struct {
	LowCut  float64 `yaml:"low_cut" json:"lowCut"`   // Hz
	HighCut float64 `yaml:"high_cut" json:"highCut"` // Hz
	Notch   float64 `yaml:"notch" json:"notch"`      // 50 or 60 Hz
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

type RecordingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sensor: SensorConfig{
			Rate: "high",
		},
		Filter: FilterConfig{
			LowCut:  10,
			HighCut: 100,
			Notch:   50,
		},
		Server: ServerConfig{
			ListenAddr: ":8090",
		},
		Recording: RecordingConfig{
			Enabled: false,
			Path:    "emg_recording.edf",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies environment variable
// overrides. Falls back to defaults if the file is missing or unparsable.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: EMG_PORT, EMG_RATE, EMG_LOW_CUT, EMG_HIGH_CUT, EMG_NOTCH,
// LISTEN_ADDR, REC_ENABLED, REC_PATH.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EMG_PORT"); v != "" {
		c.Sensor.Port = v
	}
	if v := os.Getenv("EMG_RATE"); v != "" {
		c.Sensor.Rate = v
	}
	if v := os.Getenv("EMG_LOW_CUT"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Filter.LowCut = n
		}
	}
	if v := os.Getenv("EMG_HIGH_CUT"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Filter.HighCut = n
		}
	}
	if v := os.Getenv("EMG_NOTCH"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Filter.Notch = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("REC_ENABLED"); v != "" {
		c.Recording.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("REC_PATH"); v != "" {
		c.Recording.Path = v
	}
}
