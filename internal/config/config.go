// Package config defines the YAML configuration surface of leanplay.
// Defaults and validation live here so the rest of the code can assume a
// well-formed config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration.
type Config struct {
	Sensors   SensorsConfig   `yaml:"sensors"`
	Chains    ChainsConfig    `yaml:"chains"`
	Gaze      GazeConfig      `yaml:"gaze"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Transport TransportConfig `yaml:"transport"`
	Server    ServerConfig    `yaml:"server"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Store     StoreConfig     `yaml:"store"`
}

// SensorConfig describes one pressure-sensor link.
type SensorConfig struct {
	// Kind is "ws", "serial" or "none".
	Kind string `yaml:"kind"`
	// URL is the websocket endpoint for kind "ws".
	URL string `yaml:"url,omitempty"`
	// Device and BaudRate configure kind "serial".
	Device   string `yaml:"device,omitempty"`
	BaudRate int    `yaml:"baud_rate,omitempty"`
}

type SensorsConfig struct {
	Steering SensorConfig `yaml:"steering"`
	Volume   SensorConfig `yaml:"volume"`
}

// ChainConfig configures one calibration and classification chain.
type ChainConfig struct {
	// Strategy is "asymmetric" or "symmetric".
	Strategy        string  `yaml:"strategy"`
	PhaseDurationMS int     `yaml:"phase_duration_ms"`
	TickMS          int     `yaml:"tick_ms"`
	FullThreshold   float64 `yaml:"full_threshold"`
}

type ChainsConfig struct {
	Steering ChainConfig `yaml:"steering"`
	Volume   ChainConfig `yaml:"volume"`
}

type GazeConfig struct {
	Enabled      bool    `yaml:"enabled"`
	DeviceID     int     `yaml:"device_id"`
	CascadeFile  string  `yaml:"cascade_file"`
	IntervalMS   int     `yaml:"interval_ms"`
	Window       int     `yaml:"window"`
	OnThreshold  float64 `yaml:"on_threshold"`
	OffThreshold float64 `yaml:"off_threshold"`
}

type PlaybackConfig struct {
	TickMS          int     `yaml:"tick_ms"`
	FastForwardRate float64 `yaml:"fast_forward_rate"`
	RewindStepMS    int     `yaml:"rewind_step_ms"`
	VolumeStep      float64 `yaml:"volume_step"`
}

type TransportConfig struct {
	// Kind is "mpv" or "mock".
	Kind       string `yaml:"kind"`
	SocketPath string `yaml:"socket_path,omitempty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerURL   string `yaml:"broker_url,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns a fully-populated Config with defaults.
func Default() Config {
	chain := ChainConfig{
		PhaseDurationMS: 3000,
		TickMS:          100,
		FullThreshold:   0.99,
	}

	steering := chain
	steering.Strategy = "asymmetric"
	volume := chain
	volume.Strategy = "symmetric"

	return Config{
		Sensors: SensorsConfig{
			Steering: SensorConfig{Kind: "ws", URL: "ws://127.0.0.1:8181/steering"},
			Volume:   SensorConfig{Kind: "none"},
		},
		Chains: ChainsConfig{
			Steering: steering,
			Volume:   volume,
		},
		Gaze: GazeConfig{
			Enabled:      false,
			DeviceID:     0,
			CascadeFile:  "haarcascade_frontalface_default.xml",
			IntervalMS:   100,
			Window:       8,
			OnThreshold:  0.65,
			OffThreshold: 0.45,
		},
		Playback: PlaybackConfig{
			TickMS:          250,
			FastForwardRate: 2.0,
			RewindStepMS:    1000,
			VolumeStep:      0.05,
		},
		Transport: TransportConfig{
			Kind:       "mpv",
			SocketPath: "/tmp/mpv.sock",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8182",
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			ClientID:    "leanplay",
			TopicPrefix: "leanplay",
		},
		Store: StoreConfig{
			Path: "leanplay.db",
		},
	}
}

// Load reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	return cfg, nil
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	if err := validateSensor("sensors.steering", c.Sensors.Steering); err != nil {
		return err
	}
	if err := validateSensor("sensors.volume", c.Sensors.Volume); err != nil {
		return err
	}

	if err := validateChain("chains.steering", c.Chains.Steering); err != nil {
		return err
	}
	if err := validateChain("chains.volume", c.Chains.Volume); err != nil {
		return err
	}

	if c.Gaze.Enabled {
		if c.Gaze.CascadeFile == "" {
			return errors.New("gaze.cascade_file must not be empty when gaze is enabled")
		}
		if c.Gaze.IntervalMS <= 0 {
			return errors.New("gaze.interval_ms must be > 0")
		}
		if c.Gaze.Window <= 0 {
			return errors.New("gaze.window must be > 0")
		}
		if c.Gaze.OffThreshold >= c.Gaze.OnThreshold {
			return errors.New("gaze.off_threshold must be < gaze.on_threshold")
		}
	}

	if c.Playback.TickMS <= 0 {
		return errors.New("playback.tick_ms must be > 0")
	}
	if c.Playback.FastForwardRate <= 1.0 {
		return errors.New("playback.fast_forward_rate must be > 1")
	}
	if c.Playback.RewindStepMS <= 0 {
		return errors.New("playback.rewind_step_ms must be > 0")
	}
	if c.Playback.VolumeStep <= 0 || c.Playback.VolumeStep > 1 {
		return errors.New("playback.volume_step must be in (0,1]")
	}

	switch c.Transport.Kind {
	case "mpv":
		if c.Transport.SocketPath == "" {
			return errors.New("transport.socket_path must not be empty for mpv")
		}
	case "mock":
	default:
		return fmt.Errorf("transport.kind must be \"mpv\" or \"mock\", got %q", c.Transport.Kind)
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}

	if c.MQTT.Enabled {
		if c.MQTT.BrokerURL == "" {
			return errors.New("mqtt.enabled is true but mqtt.broker_url is empty")
		}
		if c.MQTT.ClientID == "" {
			return errors.New("mqtt.client_id must not be empty")
		}
	}

	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}

	return nil
}

func validateSensor(name string, s SensorConfig) error {
	switch s.Kind {
	case "ws":
		if s.URL == "" {
			return fmt.Errorf("%s.url must not be empty for kind ws", name)
		}
	case "serial":
		if s.Device == "" {
			return fmt.Errorf("%s.device must not be empty for kind serial", name)
		}
		if s.BaudRate < 0 {
			return fmt.Errorf("%s.baud_rate must be >= 0", name)
		}
	case "none":
	default:
		return fmt.Errorf("%s.kind must be \"ws\", \"serial\" or \"none\", got %q", name, s.Kind)
	}
	return nil
}

func validateChain(name string, c ChainConfig) error {
	if c.Strategy != "asymmetric" && c.Strategy != "symmetric" {
		return fmt.Errorf("%s.strategy must be \"asymmetric\" or \"symmetric\", got %q", name, c.Strategy)
	}
	if c.PhaseDurationMS <= 0 {
		return fmt.Errorf("%s.phase_duration_ms must be > 0", name)
	}
	if c.TickMS <= 0 {
		return fmt.Errorf("%s.tick_ms must be > 0", name)
	}
	if c.FullThreshold <= 0 || c.FullThreshold > 1 {
		return fmt.Errorf("%s.full_threshold must be in (0,1]", name)
	}
	return nil
}

// PhaseDuration returns the chain's phase duration.
func (c ChainConfig) PhaseDuration() time.Duration {
	return time.Duration(c.PhaseDurationMS) * time.Millisecond
}

// Tick returns the chain's calibration tick interval.
func (c ChainConfig) Tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// Interval returns the gaze sampling interval.
func (g GazeConfig) Interval() time.Duration {
	return time.Duration(g.IntervalMS) * time.Millisecond
}

// Tick returns the playback control interval.
func (p PlaybackConfig) Tick() time.Duration {
	return time.Duration(p.TickMS) * time.Millisecond
}

// RewindStep returns the discrete rewind seek step.
func (p PlaybackConfig) RewindStep() time.Duration {
	return time.Duration(p.RewindStepMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
