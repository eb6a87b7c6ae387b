package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"mixdeck.click/internal/audio"
	"mixdeck.click/internal/config"
	"mixdeck.click/internal/fs"
	"mixdeck.click/internal/mixer"
	"mixdeck.click/internal/soundbank"
	"mixdeck.click/internal/tracking"
)

// fadeGrace is how long a stop request waits past the fade before halting
const fadeGrace = 500 * time.Millisecond

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// mixSession is one open engine plus everything attached to it
type mixSession struct {
	engine   *mixer.Engine
	recorder *tracking.Recorder
	headless *audio.HeadlessDevice // set when nothing pulls buffers on its own
	idle     chan struct{}
}

// openSession opens an engine on device with the configured channel and
// volume settings, attaching the history recorder when enabled
func (c *CLI) openSession(cmd *cobra.Command, cfg *config.Config, device audio.Device, spec audio.Spec) (*mixSession, error) {
	engine, err := mixer.Open(mixer.Options{
		Spec:     spec,
		Device:   device,
		Fs:       c.library(cmd),
		Channels: cfg.MixChannels,
	})
	if err != nil {
		return nil, err
	}

	s := &mixSession{engine: engine, idle: make(chan struct{}, 1)}
	if h, ok := device.(*audio.HeadlessDevice); ok {
		s.headless = h
	}

	engine.ReserveChannels(cfg.ReservedChannels)
	engine.MasterVolume(cfg.MasterVolume)
	engine.VolumeMusic(cfg.MusicVolume)
	if cfg.MusicCommand != "" {
		if err := engine.SetMusicCMD(cfg.MusicCommand); err != nil {
			engine.Close()
			return nil, err
		}
	}

	engine.ChannelFinished(func(int) { s.poke() })
	engine.HookMusicFinished(s.poke)

	c.initializeHistory(cfg)
	if c.historyDB != nil {
		s.recorder = tracking.NewRecorder(c.historyDB, c.session(), tracking.DefaultRecorderBuffer)
		engine.AddObserver(s.recorder.Observe)
	}

	return s, nil
}

// library is the filesystem sounds are loaded from, narrowed to --root
func (c *CLI) library(cmd *cobra.Command) afero.Fs {
	root, _ := cmd.Flags().GetString("root")
	return fs.SoundLibrary(c.fs, root)
}

// resolveSounds maps names through the --bank sound bank. Without a bank
// the names are file paths already.
func (c *CLI) resolveSounds(cmd *cobra.Command, names []string) ([]string, error) {
	location, _ := cmd.Flags().GetString("bank")
	if location == "" {
		return names, nil
	}

	bank, err := soundbank.Open(c.library(cmd), location)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, name := range names {
		if paths[i], err = bank.Resolve(name); err != nil {
			return nil, err
		}
	}
	slog.Debug("sounds resolved from bank", "bank", bank.Name(), "names", names, "paths", paths)
	return paths, nil
}

func (s *mixSession) poke() {
	select {
	case s.idle <- struct{}{}:
	default:
	}
}

func (s *mixSession) busy() bool {
	return s.engine.Playing(mixer.AllChannels) > 0 || s.engine.PlayingMusic()
}

// wait blocks until every channel and the music have stopped. Cancelling
// ctx fades everything out over fadeOutMs, or halts it when fadeOutMs is 0.
// Headless devices are pumped as fast as possible.
func (s *mixSession) wait(ctx context.Context, fadeOutMs int, tick func()) {
	var deadline <-chan time.Time
	stopping := false

	stop := func() {
		stopping = true
		if fadeOutMs <= 0 {
			s.engine.HaltChannel(mixer.AllChannels)
			s.engine.HaltMusic()
			return
		}
		slog.Debug("fading out before exit", "fade_ms", fadeOutMs)
		s.engine.FadeOutChannel(mixer.AllChannels, fadeOutMs)
		s.engine.FadeOutMusic(fadeOutMs)
		deadline = time.After(time.Duration(fadeOutMs)*time.Millisecond + fadeGrace)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for s.busy() {
		if s.headless != nil {
			if !stopping && ctx.Err() != nil {
				stop()
			}
			if _, err := s.headless.Pump(); err != nil {
				slog.Error("headless pump failed", "error", err)
				return
			}
			continue
		}

		select {
		case <-s.idle:
		case <-ticker.C:
			if tick != nil {
				tick()
			}
		case <-ctx.Done():
			if !stopping {
				stop()
			}
		case <-deadline:
			slog.Warn("fade did not finish in time, halting")
			s.engine.HaltChannel(mixer.AllChannels)
			s.engine.HaltMusic()
		}
	}
}

// close shuts the engine down and flushes the history recorder
func (s *mixSession) close() {
	if err := s.engine.Close(); err != nil {
		slog.Error("error closing mixer", "error", err)
	}
	if s.recorder != nil {
		s.recorder.Close()
		if n := s.recorder.Dropped(); n > 0 {
			slog.Warn("history dropped events", "count", n)
		}
	}
}

// channelFlags are the per-chunk playback flags shared by play and render
type channelFlags struct {
	channel  int
	loops    int
	fadeIn   int
	fadeOut  int
	duration int
	volume   int
	pan      string
	distance uint8
	angle    int
	reverse  bool
}

func (f *channelFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&f.channel, "channel", mixer.AllChannels, "Channel to play on (-1 = first free)")
	flags.IntVar(&f.loops, "loops", 0, "Extra repetitions (-1 = forever)")
	flags.IntVar(&f.fadeIn, "fade-in", 0, "Fade in over this many milliseconds")
	flags.IntVar(&f.fadeOut, "fade-out", 0, "Fade out over this many milliseconds when stopped")
	flags.IntVar(&f.duration, "duration", 0, "Stop each sound after this many milliseconds (0 = no limit)")
	flags.IntVar(&f.volume, "volume", -1, "Chunk volume 0-128 (-1 = leave at full)")
	flags.StringVar(&f.pan, "pan", "", "Stereo panning as LEFT,RIGHT (0-255 each)")
	flags.Uint8Var(&f.distance, "distance", 0, "Distance attenuation 0 (near) to 255 (far)")
	flags.IntVar(&f.angle, "angle", 0, "Position angle in degrees, 0 = front, 90 = right")
	flags.BoolVar(&f.reverse, "reverse", false, "Swap left and right")
}

func (f *channelFlags) validate() error {
	if f.volume > mixer.MaxVolume {
		return fmt.Errorf("volume must be between 0 and %d, got %d", mixer.MaxVolume, f.volume)
	}
	if f.fadeIn < 0 || f.fadeOut < 0 || f.duration < 0 {
		return fmt.Errorf("fade and duration values must be >= 0")
	}
	if f.loops < -1 {
		return fmt.Errorf("loops must be >= -1, got %d", f.loops)
	}
	if _, _, err := parsePan(f.pan); err != nil {
		return err
	}
	return nil
}

// parsePan reads "LEFT,RIGHT"; an empty string means centered
func parsePan(value string) (left, right uint8, err error) {
	if value == "" {
		return 255, 255, nil
	}
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("pan must be LEFT,RIGHT, got %q", value)
	}
	l, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid left pan %q: %w", parts[0], err)
	}
	r, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid right pan %q: %w", parts[1], err)
	}
	return uint8(l), uint8(r), nil
}

// startChunk plays chunk and applies the positional flags to its channel
func (f *channelFlags) startChunk(e *mixer.Engine, chunk *mixer.Chunk) (int, error) {
	if f.volume >= 0 {
		chunk.Volume(f.volume)
	}

	ch, err := e.FadeInChannelTimed(f.channel, chunk, f.loops, f.fadeIn, f.duration)
	if err != nil {
		return -1, err
	}

	left, right, _ := parsePan(f.pan)
	if err := e.SetPanning(ch, left, right); err != nil {
		return ch, err
	}
	if f.angle != 0 {
		err = e.SetPosition(ch, f.angle, f.distance)
	} else {
		err = e.SetDistance(ch, f.distance)
	}
	if err != nil {
		return ch, err
	}
	if f.reverse {
		if err := e.SetReverseStereo(ch, true); errors.Is(err, mixer.ErrMonoOutput) {
			slog.Warn("ignoring --reverse on mono output")
		} else if err != nil {
			return ch, err
		}
	}
	return ch, nil
}

// startChunks loads every path and starts it. Sounds are started with the
// device paused so positional effects apply from the first buffer.
func (f *channelFlags) startChunks(e *mixer.Engine, paths []string) ([]*mixer.Chunk, error) {
	e.PauseAudio(true)
	defer e.PauseAudio(false)

	var chunks []*mixer.Chunk
	for _, path := range paths {
		chunk, err := e.LoadWAV(path)
		if err != nil {
			return chunks, fmt.Errorf("failed to load %s: %w", path, err)
		}
		chunks = append(chunks, chunk)

		ch, err := f.startChunk(e, chunk)
		if err != nil {
			return chunks, fmt.Errorf("failed to play %s: %w", path, err)
		}
		slog.Info("sound started", "path", path, "channel", ch, "loops", f.loops)
	}
	return chunks, nil
}
