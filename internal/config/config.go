// Package config loads the JSON settings file. Missing fields keep
// their defaults, so a file only needs what it changes.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"pokecon/internal/binding"
	"pokecon/internal/transport"
)

const DEFAULT_PATH = "conf/pokecon.json"

type Config struct {
	Serial       SerialConfig   `json:"serial"`
	Capture      CaptureConfig  `json:"capture"`
	TemplatesDir string         `json:"templates_dir"`
	ScriptsDir   string         `json:"scripts_dir"`
	AnnotateDir  string         `json:"annotate_dir,omitempty"`
	Keyboard     KeyboardConfig `json:"keyboard"`
	Gamepad      GamepadConfig  `json:"gamepad"`
	Log          LogConfig      `json:"log"`
}

type SerialConfig struct {
	Port       string `json:"port"`
	Baud       int    `json:"baud"`
	ShowSerial bool   `json:"show_serial"`
}

// CaptureConfig points at an image file an external grabber refreshes.
// An empty Source disables image-aware commands.
type CaptureConfig struct {
	Source        string   `json:"source"`
	Interval      Duration `json:"interval"`
	ScreenshotDir string   `json:"screenshot_dir"`
}

// KeyboardConfig selects the evdev keyboard; empty Device is off.
type KeyboardConfig struct {
	Device string `json:"device"`
	Grab   bool   `json:"grab"`
}

// GamepadConfig selects a joystick; a negative Index is off.
type GamepadConfig struct {
	Index    int     `json:"index"`
	Deadzone float64 `json:"deadzone"`
}

// LogConfig sets the level and, if Listen is set, the address of the
// websocket log stream.
type LogConfig struct {
	Level  string `json:"level"`
	Listen string `json:"listen,omitempty"`
}

// Duration is a time.Duration written as "100ms" in JSON.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "duration must be a string such as \"100ms\"")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrap(err, "parse duration")
	}
	d.Duration = v
	return nil
}

func Default() *Config {
	return &Config{
		Serial: SerialConfig{Baud: transport.BAUD_RATE},
		Capture: CaptureConfig{
			Interval:      Duration{100 * time.Millisecond},
			ScreenshotDir: "screenshot",
		},
		TemplatesDir: "templates",
		ScriptsDir:   "scripts",
		Gamepad:      GamepadConfig{Index: -1, Deadzone: binding.DEFAULT_DEADZONE},
		Log:          LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return errors.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Capture.Interval.Duration <= 0 {
		return errors.New("capture.interval must be positive")
	}
	if c.Gamepad.Deadzone < 0 || c.Gamepad.Deadzone >= 1 {
		return errors.Errorf("gamepad.deadzone must be in [0, 1), got %v", c.Gamepad.Deadzone)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// Save writes the config, creating its directory.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0o644), "write config")
}
