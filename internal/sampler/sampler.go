// Package sampler plays turntable clips through beep with a variable
// playback rate. Only one clip sounds at a time.
package sampler

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"scratchd/turntable"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultSampleRate = beep.SampleRate(44100)
	DefaultQuality    = 4
	DefaultBufferTime = 50 * time.Millisecond
)

// Output is where the player sends its streams.
type Output interface {
	Play(s beep.Streamer)
	Clear()
}

// speakerOutput drives the default audio device.
type speakerOutput struct{}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Clear()               { speaker.Clear() }

// NewSpeakerOutput initialises the speaker at rate and returns it as an Output.
func NewSpeakerOutput(rate beep.SampleRate, bufferTime time.Duration) (Output, error) {
	if bufferTime <= 0 {
		bufferTime = DefaultBufferTime
	}
	if err := speaker.Init(rate, rate.N(bufferTime)); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}
	return speakerOutput{}, nil
}

// DecodeFunc opens and decodes a clip.
type DecodeFunc func(clip turntable.ClipRef) (beep.Streamer, beep.Format, error)

// FileDecoder returns a DecodeFunc resolving clips relative to dir and
// picking the codec from the file extension (.wav or .mp3).
func FileDecoder(dir string) DecodeFunc {
	return func(clip turntable.ClipRef) (beep.Streamer, beep.Format, error) {
		path := string(clip)
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, beep.Format{}, err
		}

		var (
			s      beep.StreamSeekCloser
			format beep.Format
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".wav":
			s, format, err = wav.Decode(f)
		case ".mp3":
			s, format, err = mp3.Decode(f)
		default:
			err = fmt.Errorf("unsupported clip format %q", filepath.Ext(path))
		}
		if err != nil {
			f.Close()
			return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return s, format, nil
	}
}

// Config tunes a Player.
type Config struct {
	SampleRate beep.SampleRate
	// Quality is the beep resampling quality, 1 (fast) to 64 (best).
	Quality int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Quality <= 0 {
		c.Quality = DefaultQuality
	}
	return c
}

// Player is a turntable.SamplePlayer backed by in-memory beep buffers.
//
// Load decodes in the background; clips that are not decoded yet are
// skipped by Play. Only the clips of the most recently loaded sample are kept.
type Player struct {
	cfg    Config
	out    Output
	decode DecodeFunc
	logger *slog.Logger

	mu     sync.Mutex
	gen    uint64
	sample string
	clips  map[turntable.ClipRef]*beep.Buffer

	wg sync.WaitGroup
}

var _ turntable.SamplePlayer = (*Player)(nil)

// New returns a player. logger may be nil.
func New(cfg Config, out Output, decode DecodeFunc, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Player{
		cfg:    cfg.withDefaults(),
		out:    out,
		decode: decode,
		logger: logger,
		clips:  make(map[turntable.ClipRef]*beep.Buffer),
	}
}

// Format is the format of every buffered clip.
func (p *Player) Format() beep.Format {
	return beep.Format{SampleRate: p.cfg.SampleRate, NumChannels: 2, Precision: 2}
}

// Load replaces the buffered clips with those of s. It returns immediately.
func (p *Player) Load(s turntable.Sample) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.sample = s.DisplayName
	p.clips = make(map[turntable.ClipRef]*beep.Buffer)
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loadClips(gen, s)
	}()
}

func (p *Player) loadClips(gen uint64, s turntable.Sample) {
	start := time.Now()
	for _, clip := range s.Clips() {
		if clip == "" {
			continue
		}
		buf, err := p.bufferClip(clip)
		if err != nil {
			p.logger.Warn("clip load failed", "sample", s.DisplayName, "clip", string(clip), "error", err)
			continue
		}

		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			p.logger.Debug("sample load superseded", "sample", s.DisplayName)
			return
		}
		p.clips[clip] = buf
		p.mu.Unlock()
	}
	p.logger.Debug("sample loaded", "sample", s.DisplayName, "elapsed", time.Since(start))
}

func (p *Player) bufferClip(clip turntable.ClipRef) (*beep.Buffer, error) {
	s, format, err := p.decode(clip)
	if err != nil {
		return nil, err
	}
	if c, ok := s.(io.Closer); ok {
		defer c.Close()
	}

	var src beep.Streamer = s
	if format.SampleRate != p.cfg.SampleRate {
		src = beep.Resample(p.cfg.Quality, format.SampleRate, p.cfg.SampleRate, s)
	}

	buf := beep.NewBuffer(p.Format())
	buf.Append(src)
	if err := s.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

// Loaded reports whether clip is buffered and playable.
func (p *Player) Loaded(clip turntable.ClipRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.clips[clip]
	return ok
}

// Play stops whatever is sounding and starts clip at the given rate.
func (p *Player) Play(clip turntable.ClipRef, pitch float64) {
	p.mu.Lock()
	buf, ok := p.clips[clip]
	p.mu.Unlock()
	if !ok {
		p.logger.Debug("clip not loaded, skipping", "clip", string(clip))
		return
	}
	if pitch <= 0 {
		pitch = 1
	}

	stream := beep.ResampleRatio(p.cfg.Quality, pitch, buf.Streamer(0, buf.Len()))
	p.out.Clear()
	p.out.Play(stream)
}

// Stop silences the output.
func (p *Player) Stop() { p.out.Clear() }

// Wait blocks until every pending Load has finished.
func (p *Player) Wait() { p.wg.Wait() }
