// scratchd is a turntable scratch daemon. It turns pointer gestures on a
// virtual record into pitched sample playback and drives the record's
// rotation for any connected renderer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/gopxl/beep/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"scratchd/internal/sampler"
	"scratchd/turntable"
)

var version = "dev"

// broadcastQueueSize buffers state updates between effects and the hub.
const broadcastQueueSize = 256

// cliFlags holds raw flag values. Only flags the user actually set become
// overrides.
type cliFlags struct {
	configPath string

	density       float64
	viewWidth     int
	viewHeight    int
	separateAxis  bool
	input         bool
	devices       []string
	audio         bool
	audioDir      string
	initialSample string
	socketPath    string
	http          bool
	httpPort      int
	logLevel      string
	logFormat     string
}

func (f *cliFlags) register(cmd *cobra.Command) {
	def := DefaultConfig()
	fs := cmd.Flags()

	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML or TOML config file")
	fs.Float64Var(&f.density, "density", def.Display.Density, "display density (pixels per dp)")
	fs.IntVar(&f.viewWidth, "view-width", def.Display.ViewWidth, "view width in pixels")
	fs.IntVar(&f.viewHeight, "view-height", def.Display.ViewHeight, "view height in pixels")
	fs.BoolVar(&f.separateAxis, "separate-axis-triggers", def.Gesture.SeparateAxisTriggers, "track scratch and sample triggers independently")
	fs.BoolVar(&f.input, "input", def.Input.Enabled, "read touches from evdev devices")
	fs.StringSliceVar(&f.devices, "input-device", nil, "evdev touch device (repeatable, implies --input)")
	fs.BoolVar(&f.audio, "audio", def.Audio.Enabled, "play samples on the default audio device")
	fs.StringVar(&f.audioDir, "samples-dir", def.Audio.Dir, "directory holding sample clips")
	fs.StringVar(&f.initialSample, "sample", "", "sample to select on start")
	fs.StringVar(&f.socketPath, "ipc-socket", def.IPC.SocketPath, "unix socket for IPC")
	fs.BoolVar(&f.http, "http", def.HTTP.Enabled, "serve the state websocket")
	fs.IntVar(&f.httpPort, "http-port", def.HTTP.Port, "http listener port")
	fs.StringVar(&f.logLevel, "log-level", def.Logging.Level, "log level: error, warn, info, debug")
	fs.StringVar(&f.logFormat, "log-format", def.Logging.Format, "log format: text or json")
}

// overrides converts the flags that were set into FlagOverrides.
func (f *cliFlags) overrides(changed func(name string) bool) FlagOverrides {
	var o FlagOverrides
	if changed("density") {
		o.Density = &f.density
	}
	if changed("view-width") {
		o.ViewWidth = &f.viewWidth
	}
	if changed("view-height") {
		o.ViewHeight = &f.viewHeight
	}
	if changed("separate-axis-triggers") {
		o.SeparateAxisTriggers = &f.separateAxis
	}
	if changed("input") {
		o.InputEnabled = &f.input
	}
	if changed("input-device") {
		o.InputDevices = &f.devices
	}
	if changed("audio") {
		o.AudioEnabled = &f.audio
	}
	if changed("samples-dir") {
		o.AudioDir = &f.audioDir
	}
	if changed("sample") {
		o.InitialSample = &f.initialSample
	}
	if changed("ipc-socket") {
		o.IPCSocketPath = &f.socketPath
	}
	if changed("http") {
		o.HTTPEnabled = &f.http
	}
	if changed("http-port") {
		o.HTTPPort = &f.httpPort
	}
	if changed("log-level") {
		o.LogLevel = &f.logLevel
	}
	if changed("log-format") {
		o.LogFormat = &f.logFormat
	}
	return o
}

func main() {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:   "scratchd",
		Short: "Turntable scratch daemon",
		Long: `scratchd turns drags on a virtual record into scratch sounds.

Vertical drags turn the record and play the active sample forwards or
backwards with a pitch that follows drag speed; a horizontal swipe fires
the sample's one-shot clip. Input comes from evdev touch devices, the IPC
socket or websocket renderers.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(&flags, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	flags.register(cmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers defaults, the optional config file and flags.
func loadConfig(flags *cliFlags, changed func(string) bool) (Config, error) {
	cfg := DefaultConfig()
	if flags.configPath != "" {
		var err error
		cfg, err = LoadConfigFile(flags.configPath)
		if err != nil {
			return Config{}, err
		}
	}
	flags.overrides(changed).Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg Config) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := setupLogger(os.Stdout, level, cfg.Logging.Format)

	deckCfg, err := cfg.ToDeckConfig()
	if err != nil {
		return err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return err
	}

	events := make(chan Event, eventQueueSize)
	broadcasts := make(chan StateBroadcast, broadcastQueueSize)
	fx := effectTargets{}
	if cfg.HTTP.Enabled {
		// Without the websocket nobody consumes broadcasts.
		fx.broadcasts = broadcasts
	}

	if cfg.Audio.Enabled {
		player, err := newPlayer(cfg.Audio, logger)
		if err != nil {
			logger.Warn("audio unavailable, running silent", "error", err)
		} else {
			fx.player = player
			defer func() {
				player.Stop()
				player.Wait()
			}()
		}
	}

	// Touch devices are opened before anything starts so permission errors
	// fail fast.
	var devices []touchDevice
	if cfg.Input.Enabled {
		devices, err = openTouchDevices(cfg.Input.Devices, cfg.Display.ViewWidth, cfg.Display.ViewHeight, logger)
		if err != nil {
			return fmt.Errorf("%w (run as root or add user to 'input' group)", err)
		}
	}

	collector := &commandCollector{}
	deck, err := turntable.NewDeck(deckCfg, cfg.Catalog(), collector, collector, newLoopScheduler(ctx, events), logger.With("component", "deck"))
	if err != nil {
		closeTouchDevices(devices)
		return err
	}
	deck.SetLayout(layout)
	deck.Resume()

	logger.Info("scratchd starting",
		"version", version,
		"sample", deck.Snapshot().Sample,
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.Enabled,
		"input_devices", len(devices),
		"audio", fx.player != nil,
	)

	g, ctx := errgroup.WithContext(ctx)
	fx.done = ctx.Done()

	g.Go(func() error {
		runDaemon(ctx, events, deck, collector, fx, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger.With("component", "ipc"))
	})

	if cfg.HTTP.Enabled {
		wsLogger := logger.With("component", "ws")
		srv := NewServer(wsLogger, events, ServerConfig{})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.HTTP.WSPath)

		g.Go(func() error {
			srv.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, srv.Hub(), broadcasts, wsLogger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(ctx, cfg.HTTP.Port, mux, logger.With("component", "http"))
		})
	}

	if len(devices) > 0 {
		g.Go(func() error {
			return runInput(ctx, devices, events, logger.With("component", "input"))
		})
	}

	err = g.Wait()
	logger.Info("scratchd stopped")
	return err
}

// newPlayer opens the audio device and returns a sampler for it.
func newPlayer(cfg AudioConfig, logger *slog.Logger) (*sampler.Player, error) {
	rate := beep.SampleRate(cfg.SampleRate)
	out, err := sampler.NewSpeakerOutput(rate, time.Duration(cfg.BufferMS)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return sampler.New(
		sampler.Config{SampleRate: rate, Quality: cfg.Quality},
		out,
		sampler.FileDecoder(ExpandPath(cfg.Dir)),
		logger.With("component", "sampler"),
	), nil
}
