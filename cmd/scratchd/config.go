package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"scratchd/turntable"
)

// Config is the top-level configuration of the scratchd daemon.
//
// Distances are given in dp and converted with display.density, so the same
// file behaves alike on screens of different pixel density.
type Config struct {
	Display DisplayConfig `yaml:"display" toml:"display"`
	Gesture GestureConfig `yaml:"gesture" toml:"gesture"`
	Pitch   PitchConfig   `yaml:"pitch" toml:"pitch"`
	Platter PlatterConfig `yaml:"platter" toml:"platter"`
	Input   InputConfig   `yaml:"input" toml:"input"`
	Audio   AudioConfig   `yaml:"audio" toml:"audio"`
	IPC     IPCConfig     `yaml:"ipc" toml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http" toml:"http"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

type DisplayConfig struct {
	// Density is pixels per dp.
	Density float64 `yaml:"density" toml:"density"`

	ViewWidth     int `yaml:"view_width" toml:"view_width"`
	ViewHeight    int `yaml:"view_height" toml:"view_height"`
	ContentWidth  int `yaml:"content_width" toml:"content_width"`
	ContentHeight int `yaml:"content_height" toml:"content_height"`

	// Distance of the platter centre from the right/bottom edge; -1 centres it.
	OffsetXDP float64 `yaml:"offset_x_dp" toml:"offset_x_dp"`
	OffsetYDP float64 `yaml:"offset_y_dp" toml:"offset_y_dp"`
}

type GestureConfig struct {
	ScratchThresholdDP   float64 `yaml:"scratch_threshold_dp" toml:"scratch_threshold_dp"`
	SampleThresholdDP    float64 `yaml:"sample_threshold_dp" toml:"sample_threshold_dp"`
	SeparateAxisTriggers bool    `yaml:"separate_axis_triggers" toml:"separate_axis_triggers"`
}

type PitchConfig struct {
	VelocityMinDP float64 `yaml:"velocity_min_dp" toml:"velocity_min_dp"`
	VelocityMidDP float64 `yaml:"velocity_mid_dp" toml:"velocity_mid_dp"`
	VelocityMaxDP float64 `yaml:"velocity_max_dp" toml:"velocity_max_dp"`

	Min float64 `yaml:"min" toml:"min"`
	Mid float64 `yaml:"mid" toml:"mid"`
	Max float64 `yaml:"max" toml:"max"`
}

type PlatterConfig struct {
	TickMS            int     `yaml:"tick_ms" toml:"tick_ms"`
	SpinDegrees       float64 `yaml:"spin_degrees" toml:"spin_degrees"`
	PullBackFactor    float64 `yaml:"pull_back_factor" toml:"pull_back_factor"`
	PullBackOffset    float64 `yaml:"pull_back_offset" toml:"pull_back_offset"`
	PullBackThreshold float64 `yaml:"pull_back_threshold" toml:"pull_back_threshold"`
}

type InputConfig struct {
	Enabled bool     `yaml:"enabled" toml:"enabled"`
	Devices []string `yaml:"devices" toml:"devices"`
}

type AudioConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Dir        string `yaml:"dir" toml:"dir"`
	SampleRate int    `yaml:"sample_rate" toml:"sample_rate"`
	Quality    int    `yaml:"quality" toml:"quality"`
	BufferMS   int    `yaml:"buffer_ms" toml:"buffer_ms"`

	InitialSample string             `yaml:"initial_sample" toml:"initial_sample"`
	Samples       []turntable.Sample `yaml:"samples" toml:"samples"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path" toml:"socket_path"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Port    int    `yaml:"port" toml:"port"`
	WSPath  string `yaml:"ws_path" toml:"ws_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// defaultCatalog is the sample set shipped with the daemon.
func defaultCatalog() []turntable.Sample {
	return []turntable.Sample{
		{DisplayName: "Uuh", MainClip: "uuh.wav", ForwardClip: "uuh_fw.wav", BackwardClip: "uuh_bw.wav"},
		{DisplayName: "Bass", MainClip: "bass.wav", ForwardClip: "bass_fw.wav", BackwardClip: "bass_bw.wav"},
		{DisplayName: "Fresh", MainClip: "fresh.wav", ForwardClip: "fresh_fw.wav", BackwardClip: "fresh_bw.wav"},
	}
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Display: DisplayConfig{
			Density:       1.0,
			ViewWidth:     defaultViewWidth,
			ViewHeight:    defaultViewHeight,
			ContentWidth:  defaultContentSize,
			ContentHeight: defaultContentSize,
			OffsetXDP:     turntable.OffsetDefault,
			OffsetYDP:     turntable.OffsetDefault,
		},
		Gesture: GestureConfig{
			ScratchThresholdDP: turntable.DefaultScratchThresholdDP,
			SampleThresholdDP:  turntable.DefaultSampleThresholdDP,
		},
		Pitch: PitchConfig{
			VelocityMinDP: 100,
			VelocityMidDP: 800,
			VelocityMaxDP: 3000,
			Min:           0.5,
			Mid:           1.0,
			Max:           2.0,
		},
		Platter: PlatterConfig{
			TickMS:            int(turntable.DefaultTickInterval / time.Millisecond),
			SpinDegrees:       turntable.DefaultSpinDegrees,
			PullBackFactor:    turntable.DefaultPullBackFactor,
			PullBackOffset:    turntable.DefaultPullBackOffset,
			PullBackThreshold: turntable.DefaultPullBackThreshold,
		},
		Input: InputConfig{
			Enabled: false,
			Devices: []string{"/dev/input/event0"},
		},
		Audio: AudioConfig{
			Enabled:    true,
			Dir:        "~/.local/share/scratchd/samples",
			SampleRate: 44100,
			Quality:    4,
			BufferMS:   50,
			Samples:    defaultCatalog(),
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/scratchd.sock",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Port:    3002,
			WSPath:  "/ws",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads a YAML or TOML config file on top of the defaults.
// The format follows the extension: ".toml" is TOML, anything else YAML.
// Unknown fields are rejected in both formats.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	path = ExpandPath(path)
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return decodeTOML(b)
	}
	return decodeYAML(b)
}

func decodeYAML(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments may follow the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

func decodeTOML(b []byte) (Config, error) {
	cfg := DefaultConfig()

	// Array tables would be appended to the default lists; start them empty
	// and restore the defaults only when the file leaves them out.
	cfg.Input.Devices = nil
	cfg.Audio.Samples = nil

	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("decode config toml: %s", strict.String())
		}
		return Config{}, fmt.Errorf("decode config toml: %w", err)
	}

	def := DefaultConfig()
	if cfg.Input.Devices == nil {
		cfg.Input.Devices = def.Input.Devices
	}
	if cfg.Audio.Samples == nil {
		cfg.Audio.Samples = def.Audio.Samples
	}
	return cfg, nil
}

// FlagOverrides holds command-line values that take precedence over the
// config file. A nil pointer means the flag was not given.
type FlagOverrides struct {
	Density *float64

	ViewWidth  *int
	ViewHeight *int

	SeparateAxisTriggers *bool

	InputEnabled *bool
	InputDevices *[]string

	AudioEnabled  *bool
	AudioDir      *string
	InitialSample *string

	IPCSocketPath *string

	HTTPEnabled *bool
	HTTPPort    *int

	LogLevel  *string
	LogFormat *string
}

// Apply merges the overrides into cfg. Non-nil pointers are applied even when
// they hold a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Density != nil {
		cfg.Display.Density = *o.Density
	}
	if o.ViewWidth != nil {
		cfg.Display.ViewWidth = *o.ViewWidth
	}
	if o.ViewHeight != nil {
		cfg.Display.ViewHeight = *o.ViewHeight
	}
	if o.SeparateAxisTriggers != nil {
		cfg.Gesture.SeparateAxisTriggers = *o.SeparateAxisTriggers
	}

	if o.InputEnabled != nil {
		cfg.Input.Enabled = *o.InputEnabled
	}
	if o.InputDevices != nil {
		cfg.Input.Devices = append([]string(nil), (*o.InputDevices)...)
		cfg.Input.Enabled = true
	}

	if o.AudioEnabled != nil {
		cfg.Audio.Enabled = *o.AudioEnabled
	}
	if o.AudioDir != nil {
		cfg.Audio.Dir = *o.AudioDir
	}
	if o.InitialSample != nil {
		cfg.Audio.InitialSample = *o.InitialSample
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPEnabled != nil {
		cfg.HTTP.Enabled = *o.HTTPEnabled
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks config invariants that are not covered by the engine's own
// validation (see ToDeckConfig).
func (c *Config) Validate() error {
	// Display
	if c.Display.Density <= 0 {
		return errors.New("display.density must be > 0")
	}
	if c.Display.ViewWidth <= 0 || c.Display.ViewHeight <= 0 {
		return errors.New("display.view_width and display.view_height must be > 0")
	}
	if c.Display.ContentWidth <= 0 || c.Display.ContentHeight <= 0 {
		return errors.New("display.content_width and display.content_height must be > 0")
	}
	if c.Display.OffsetXDP < 0 && c.Display.OffsetXDP != turntable.OffsetDefault {
		return errors.New("display.offset_x_dp must be >= 0 or -1")
	}
	if c.Display.OffsetYDP < 0 && c.Display.OffsetYDP != turntable.OffsetDefault {
		return errors.New("display.offset_y_dp must be >= 0 or -1")
	}

	// Platter
	if c.Platter.TickMS <= 0 {
		return errors.New("platter.tick_ms must be > 0")
	}

	// Input
	if c.Input.Enabled {
		if len(c.Input.Devices) == 0 {
			return errors.New("input.devices must not be empty when input is enabled")
		}
		for i, dev := range c.Input.Devices {
			if dev == "" {
				return fmt.Errorf("input.devices[%d] is empty", i)
			}
		}
	}

	// Audio
	if c.Audio.Enabled {
		if c.Audio.SampleRate <= 0 {
			return errors.New("audio.sample_rate must be > 0")
		}
		if c.Audio.Quality < 1 || c.Audio.Quality > 64 {
			return errors.New("audio.quality must be between 1 and 64")
		}
		if c.Audio.BufferMS <= 0 {
			return errors.New("audio.buffer_ms must be > 0")
		}
	}
	seen := make(map[string]struct{}, len(c.Audio.Samples))
	for i, s := range c.Audio.Samples {
		if s.DisplayName == "" {
			return fmt.Errorf("audio.samples[%d].name is empty", i)
		}
		if _, dup := seen[s.DisplayName]; dup {
			return fmt.Errorf("audio.samples[%d]: duplicate name %q", i, s.DisplayName)
		}
		seen[s.DisplayName] = struct{}{}
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// HTTP
	if c.HTTP.Enabled {
		if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
			return errors.New("http.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(c.HTTP.WSPath, "/") {
			return errors.New("http.ws_path must start with /")
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q", "text", "json")
	}

	return validateEngine(c)
}

// validateEngine runs the engine validation so bad curves or thresholds are
// reported as config errors at startup.
func validateEngine(c *Config) error {
	dc, err := c.ToDeckConfig()
	if err != nil {
		return err
	}
	return dc.Validate()
}

// Units returns the dp converter for the configured display.
func (c *Config) Units() (turntable.UnitConverter, error) {
	return turntable.NewUnitConverter(c.Display.Density)
}

// ToDeckConfig converts the dp-based file configuration into engine pixels.
func (c *Config) ToDeckConfig() (turntable.DeckConfig, error) {
	u, err := c.Units()
	if err != nil {
		return turntable.DeckConfig{}, fmt.Errorf("display.density: %w", err)
	}
	px := func(dp float64) float64 { return float64(u.ToPixels(dp)) }

	return turntable.DeckConfig{
		Tracker: turntable.TrackerConfig{
			ScratchThresholdPx:   px(c.Gesture.ScratchThresholdDP),
			SampleThresholdPx:    px(c.Gesture.SampleThresholdDP),
			SeparateAxisTriggers: c.Gesture.SeparateAxisTriggers,
		},
		Pitch: turntable.PitchCurve{
			VelocityMin: px(c.Pitch.VelocityMinDP),
			VelocityMid: px(c.Pitch.VelocityMidDP),
			VelocityMax: px(c.Pitch.VelocityMaxDP),
			PitchMin:    c.Pitch.Min,
			PitchMid:    c.Pitch.Mid,
			PitchMax:    c.Pitch.Max,
		},
		Platter: turntable.PlatterConfig{
			TickInterval:      time.Duration(c.Platter.TickMS) * time.Millisecond,
			SpinDegrees:       c.Platter.SpinDegrees,
			PullBackFactor:    c.Platter.PullBackFactor,
			PullBackOffset:    c.Platter.PullBackOffset,
			PullBackThreshold: c.Platter.PullBackThreshold,
		},
		InitialSample: c.Audio.InitialSample,
	}, nil
}

// Layout returns the view geometry with offsets converted to pixels.
func (c *Config) Layout() (turntable.Layout, error) {
	u, err := c.Units()
	if err != nil {
		return turntable.Layout{}, err
	}
	offset := func(dp float64) int {
		if dp == turntable.OffsetDefault {
			return turntable.OffsetDefault
		}
		return u.ToPixels(dp)
	}
	return turntable.Layout{
		ViewWidth:     c.Display.ViewWidth,
		ViewHeight:    c.Display.ViewHeight,
		ContentWidth:  c.Display.ContentWidth,
		ContentHeight: c.Display.ContentHeight,
		OffsetX:       offset(c.Display.OffsetXDP),
		OffsetY:       offset(c.Display.OffsetYDP),
	}, nil
}

// Catalog returns the configured samples.
func (c *Config) Catalog() turntable.Catalog {
	return turntable.Catalog(c.Audio.Samples)
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
