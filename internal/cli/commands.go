package cli

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mixdeck.click/internal/audio"
	"mixdeck.click/internal/config"
	"mixdeck.click/internal/mixer"
)

// prepare loads the configuration and installs logging for a subcommand
func prepare(cmd *cobra.Command) (*CLI, *config.Config, error) {
	cli, err := mustCLI(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := cli.loadAndValidateConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	cli.setupLogging(cfg, cmd.ErrOrStderr())
	return cli, cfg, nil
}

// openDevice opens the configured backend for live playback
func (c *CLI) openDevice(cfg *config.Config) (audio.Device, audio.Spec, error) {
	want, err := c.configManager.ToSpec(cfg)
	if err != nil {
		return nil, audio.Spec{}, err
	}
	device, got, err := c.backendFactory.OpenDevice(cfg.AudioBackend, want)
	if err != nil {
		return nil, audio.Spec{}, err
	}
	slog.Debug("audio device ready", "backend", device.Name(), "frequency", got.Frequency, "format", got.Format.String())
	return device, got, nil
}

func newPlayCommand() *cobra.Command {
	var flags channelFlags

	cmd := &cobra.Command{
		Use:   "play FILE...",
		Short: "Play sound effects on mixer channels",
		Long: `Load each file as a sound chunk and play them together, one channel each.

Examples:
  mixdeck play click.wav
  mixdeck play --loops 2 --pan 255,40 step.wav
  mixdeck play --angle 270 --distance 128 far-left.ogg
  mixdeck play --loops -1 --fade-in 500 --fade-out 1000 ambience.wav
  mixdeck play --bank sounds/retro.json ui/click coin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			cli, cfg, err := prepare(cmd)
			if err != nil {
				return err
			}
			return cli.runPlay(cmd, cfg, &flags, args)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runPlay(cmd *cobra.Command, cfg *config.Config, flags *channelFlags, paths []string) error {
	device, spec, err := c.openDevice(cfg)
	if err != nil {
		return err
	}
	session, err := c.openSession(cmd, cfg, device, spec)
	if err != nil {
		return err
	}
	defer session.close()

	paths, err = c.resolveSounds(cmd, paths)
	if err != nil {
		return err
	}
	chunks, err := flags.startChunks(session.engine, paths)
	defer func() {
		for _, chunk := range chunks {
			session.engine.FreeChunk(chunk)
		}
	}()
	if err != nil {
		return err
	}

	progress := c.newProgress(cmd.OutOrStdout())
	session.wait(cmd.Context(), flags.fadeOut, func() {
		progress.update(session.engine)
	})
	progress.finish()

	fmt.Fprintf(cmd.OutOrStdout(), "played %d sound(s) in %s\n", len(paths), formatMs(session.engine.Ticks()))
	return nil
}

func newMusicCommand() *cobra.Command {
	var (
		loops    int
		fadeIn   int
		fadeOut  int
		position float64
		volume   int
		command  string
	)

	cmd := &cobra.Command{
		Use:   "music FILE",
		Short: "Stream a music track",
		Long: `Stream one music file through the mixer's music slot. WAV, AIFF, MP3, OGG
and FLAC are decoded in-process; with --command the file is handed to an
external player instead.

Examples:
  mixdeck music theme.ogg
  mixdeck music --loops -1 --fade-in 2000 --fade-out 3000 theme.mp3
  mixdeck music --position 30 level2.flac
  mixdeck music --command "mpg123 -q" theme.mp3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if volume > mixer.MaxVolume {
				return fmt.Errorf("volume must be between 0 and %d, got %d", mixer.MaxVolume, volume)
			}
			cli, cfg, err := prepare(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("command") {
				cfg.MusicCommand = command
			}
			if volume >= 0 {
				cfg.MusicVolume = volume
			}
			return cli.runMusic(cmd, cfg, args[0], loops, fadeIn, fadeOut, position)
		},
	}

	cmd.Flags().IntVar(&loops, "loops", 1, "Number of times to play (-1 = forever)")
	cmd.Flags().IntVar(&fadeIn, "fade-in", 0, "Fade in over this many milliseconds")
	cmd.Flags().IntVar(&fadeOut, "fade-out", 0, "Fade out over this many milliseconds when stopped")
	cmd.Flags().Float64Var(&position, "position", 0, "Start position in seconds")
	cmd.Flags().IntVar(&volume, "volume", -1, "Music volume 0-128 (-1 = config value)")
	cmd.Flags().StringVar(&command, "command", "", "External player command line")

	return cmd
}

func (c *CLI) runMusic(cmd *cobra.Command, cfg *config.Config, path string, loops, fadeIn, fadeOut int, position float64) error {
	device, spec, err := c.openDevice(cfg)
	if err != nil {
		return err
	}
	session, err := c.openSession(cmd, cfg, device, spec)
	if err != nil {
		return err
	}
	defer session.close()

	resolved, err := c.resolveSounds(cmd, []string{path})
	if err != nil {
		return err
	}
	path = resolved[0]

	m, err := session.engine.LoadMUS(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	defer session.engine.FreeMusic(m)

	if err := session.engine.FadeInMusicPos(m, loops, fadeIn, position); err != nil {
		return fmt.Errorf("failed to play %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if d := session.engine.MusicDuration(m); d > 0 {
		fmt.Fprintf(out, "%s (%s, %s)\n", m.Name(), m.Type(), formatMs(int64(d*1000)))
	} else {
		fmt.Fprintf(out, "%s (%s)\n", m.Name(), m.Type())
	}

	progress := c.newProgress(out)
	session.wait(cmd.Context(), fadeOut, func() {
		progress.update(session.engine)
	})
	progress.finish()
	return nil
}

func newRenderCommand() *cobra.Command {
	var (
		flags     channelFlags
		music     string
		seconds   float64
		frequency int
		format    string
		mono      bool
	)

	cmd := &cobra.Command{
		Use:   "render OUTPUT.wav [FILE...]",
		Short: "Mix sounds offline into a WAV file",
		Long: `Mix the given sounds, and optionally a music track, without an audio device
and write the result to a WAV file. Rendering stops when everything has
finished or after --seconds.

Examples:
  mixdeck render out.wav click.wav boom.wav
  mixdeck render --music theme.ogg --seconds 10 out.wav
  mixdeck render --frequency 48000 --format f32 --pan 255,0 out.wav step.wav`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			if len(args) == 1 && music == "" {
				return fmt.Errorf("nothing to render: give sound files or --music")
			}
			if seconds <= 0 && (flags.loops < 0) {
				return fmt.Errorf("--seconds is required when looping forever")
			}
			cli, cfg, err := prepare(cmd)
			if err != nil {
				return err
			}
			if frequency > 0 {
				cfg.Frequency = frequency
			}
			if format != "" {
				cfg.Format = format
			}
			if mono {
				cfg.OutputChannels = 1
			}
			return cli.runRender(cmd, cfg, &flags, args[0], args[1:], music, seconds)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&music, "music", "", "Music file to mix under the sounds")
	cmd.Flags().Float64Var(&seconds, "seconds", 0, "Maximum length of the output (0 = until everything stops)")
	cmd.Flags().IntVar(&frequency, "frequency", 0, "Output frequency (0 = config value)")
	cmd.Flags().StringVar(&format, "format", "", "Output sample format (u8, s16, s24, s32, f32)")
	cmd.Flags().BoolVar(&mono, "mono", false, "Render a single output channel")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, cfg *config.Config, flags *channelFlags, output string, paths []string, music string, seconds float64) error {
	spec, err := c.configManager.ToSpec(cfg)
	if err != nil {
		return err
	}

	session, err := c.openSession(cmd, cfg, audio.NewHeadlessDevice(), spec)
	if err != nil {
		return err
	}
	defer session.close()
	e := session.engine

	paths, err = c.resolveSounds(cmd, paths)
	if err != nil {
		return err
	}
	if music != "" {
		resolved, err := c.resolveSounds(cmd, []string{music})
		if err != nil {
			return err
		}
		music = resolved[0]
	}

	chunks, err := flags.startChunks(e, paths)
	defer func() {
		for _, chunk := range chunks {
			e.FreeChunk(chunk)
		}
	}()
	if err != nil {
		return err
	}

	if music != "" {
		m, err := e.LoadMUS(music)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", music, err)
		}
		defer e.FreeMusic(m)
		if m.Type() == mixer.MusicCMD {
			return fmt.Errorf("cannot render %s: external music commands do not pass through the mixer", music)
		}
		if err := e.FadeInMusic(m, 1, 0); err != nil {
			return fmt.Errorf("failed to play %s: %w", music, err)
		}
	}

	file, err := c.fs.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer file.Close()

	got := e.QuerySpec()
	writer, err := audio.NewWAVWriter(file, got)
	if err != nil {
		return err
	}

	maxFrames := int64(math.MaxInt64)
	if seconds > 0 {
		maxFrames = int64(seconds * float64(got.Frequency))
	}

	for session.busy() && writer.Frames() < maxFrames {
		if err := cmd.Context().Err(); err != nil {
			slog.Warn("render interrupted", "frames", writer.Frames())
			break
		}
		frames := min(int64(got.ChunkSize), maxFrames-writer.Frames())
		buf, err := session.headless.PumpFrames(int(frames))
		if err != nil {
			return err
		}
		if err := writer.Write(buf); err != nil {
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return err
	}

	ms := writer.Frames() * 1000 / int64(got.Frequency)
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %s: %d frames (%s) at %d Hz %s, %d channel(s)\n",
		output, writer.Frames(), formatMs(ms), got.Frequency, got.Format, got.Channels)
	return nil
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported file formats and audio backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := mustCLI(cmd)
			if err != nil {
				return err
			}
			cli.printFormats(cmd.OutOrStdout())
			return nil
		},
	}
}

func (c *CLI) printFormats(w io.Writer) {
	registry := audio.NewDefaultRegistry()
	fmt.Fprintf(w, "Decoders:       %s\n", strings.Join(registry.GetSupportedFormats(), ", "))

	var music []string
	for _, t := range []mixer.MusicType{mixer.MusicWAV, mixer.MusicOGG, mixer.MusicMP3, mixer.MusicFLAC} {
		music = append(music, t.String())
	}
	fmt.Fprintf(w, "Music types:    %s (mod, mid and opus are recognized but not decoded)\n", strings.Join(music, ", "))
	fmt.Fprintf(w, "Sample formats: u8, s16, s24, s32, f32\n")
	fmt.Fprintf(w, "Backends:       %s\n", strings.Join(c.backendFactory.GetSupportedBackends(), ", "))
	fmt.Fprintf(w, "Preferred:      %s\n", strings.Join(c.backendFactory.PreferredBackends(), ", "))
}

// formatMs renders a millisecond count as seconds with millisecond precision
func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Millisecond).String()
}
