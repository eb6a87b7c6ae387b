package mixer

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"mixdeck.click/internal/audio"
)

// MusicType identifies how a Music is played
type MusicType int

const (
	MusicNone MusicType = iota
	MusicCMD
	MusicWAV
	MusicMOD
	MusicMID
	MusicOGG
	MusicMP3
	musicMP3MAD // retired decoder slot, keeps the numbering stable
	MusicFLAC
	musicMODPlug // retired decoder slot
	MusicOpus
)

func (t MusicType) String() string {
	switch t {
	case MusicCMD:
		return "cmd"
	case MusicWAV:
		return "wav"
	case MusicMOD:
		return "mod"
	case MusicMID:
		return "mid"
	case MusicOGG:
		return "ogg"
	case MusicMP3:
		return "mp3"
	case MusicFLAC:
		return "flac"
	case MusicOpus:
		return "opus"
	default:
		return "none"
	}
}

func musicTypeFor(formatName string) MusicType {
	switch formatName {
	case audio.FormatNameWAV, audio.FormatNameAIFF:
		return MusicWAV
	case audio.FormatNameMP3:
		return MusicMP3
	case audio.FormatNameOGG:
		return MusicOGG
	case audio.FormatNameFLAC:
		return MusicFLAC
	case audio.FormatNameOpus:
		return MusicOpus
	case audio.FormatNameMIDI:
		return MusicMID
	case audio.FormatNameMOD:
		return MusicMOD
	default:
		return MusicNone
	}
}

// Music is a streamed track. Only one plays at a time.
type Music struct {
	name    string
	typ     MusicType
	stream  *audio.Stream     // decoded types
	source  audio.AudioSource // MusicCMD
	command string            // MusicCMD, captured at load time
	freed   bool
}

// Name returns the base name of the file the music was loaded from
func (m *Music) Name() string {
	return m.name
}

// Type returns how the music is played
func (m *Music) Type() MusicType {
	return m.typ
}

type musicState struct {
	current  *Music
	player   *audio.CommandPlayer
	paused   bool
	pausedAt int64
	loops    int // plays left including the current one, -1 forever
	volume   int
	startMs  int64

	fading    Fading
	fadeStart int64
	fadeLen   int64

	command  string
	finished func()
	hook     func(samples []float32)
	buf      []float32
}

// LoadMUS opens a music file from the engine filesystem. With a music
// command set the file is handed to that command instead of being decoded.
func (e *Engine) LoadMUS(path string) (*Music, error) {
	e.mu.Lock()
	command := e.music.command
	e.mu.Unlock()

	if command != "" {
		if _, err := e.fs.Stat(path); err != nil {
			return nil, fmt.Errorf("open music %s: %w", path, err)
		}
		slog.Debug("music loaded for command", "path", path, "command", audio.CommandName(command))
		return &Music{
			name:    filepath.Base(path),
			typ:     MusicCMD,
			source:  audio.NewFileSource(e.fs, path),
			command: command,
		}, nil
	}

	file, err := e.fs.Open(path)
	if err != nil {
		slog.Error("failed to open music", "path", path, "error", err)
		return nil, fmt.Errorf("open music %s: %w", path, err)
	}
	defer file.Close()
	return e.LoadMUSReader(path, file)
}

// LoadMUSReader reads a whole music file from r into memory and prepares
// a decoder for it. name is used for format detection.
func (e *Engine) LoadMUSReader(name string, r io.Reader) (*Music, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", audio.ErrReadFailure, name, err)
	}

	header := data
	if len(header) > 512 {
		header = header[:512]
	}
	formatName := audio.Sniff(name, header)
	typ := musicTypeFor(formatName)
	switch typ {
	case MusicNone:
		return nil, fmt.Errorf("%w: cannot identify %s", ErrUnsupportedMusic, name)
	case MusicMOD, MusicMID, MusicOpus:
		return nil, fmt.Errorf("%w: no %s decoder for %s", ErrUnsupportedMusic, typ, name)
	}

	stream, err := audio.OpenStream(audio.NewMemoryReadSeekCloser(data), formatName, e.QuerySpec())
	if err != nil {
		return nil, fmt.Errorf("load music %s: %w", name, err)
	}

	slog.Debug("music loaded",
		"name", name,
		"type", typ.String(),
		"bytes", len(data),
		"duration", stream.Duration())

	return &Music{name: filepath.Base(name), typ: typ, stream: stream}, nil
}

// LoadMUSBytes is LoadMUSReader over an in-memory file
func (e *Engine) LoadMUSBytes(name string, data []byte) (*Music, error) {
	return e.LoadMUSReader(name, bytes.NewReader(data))
}

// FreeMusic releases m. If m is fading out the call waits for the fade to
// finish; if it is playing it is halted without the finished hook.
func (e *Engine) FreeMusic(m *Music) {
	if m == nil {
		return
	}
	e.mu.Lock()
	if m.freed {
		e.mu.Unlock()
		return
	}
	e.waitFadeOut(m)
	if e.music.current == m {
		e.haltMusic(ReasonFreed, false)
	}
	m.freed = true
	stream := m.stream
	m.stream = nil
	e.unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			slog.Debug("failed to close music stream", "name", m.name, "error", err)
		}
	}
	slog.Debug("music freed", "name", m.name)
}

// waitFadeOut blocks while target (any music when nil) is fading out.
// Paused music never progresses, so it does not block.
func (e *Engine) waitFadeOut(target *Music) {
	for !e.closed &&
		e.music.current != nil &&
		(target == nil || e.music.current == target) &&
		e.music.fading == FadingOut &&
		!e.music.paused {
		e.cond.Wait()
	}
}

// PlayMusic starts m from the beginning. loops -1 repeats forever, 0 and 1
// play once, n plays n times.
func (e *Engine) PlayMusic(m *Music, loops int) error {
	return e.FadeInMusicPos(m, loops, 0, 0)
}

// FadeInMusic is PlayMusic with the volume rising from silence over ms
func (e *Engine) FadeInMusic(m *Music, loops, ms int) error {
	return e.FadeInMusicPos(m, loops, ms, 0)
}

// FadeInMusicPos starts m at position seconds, fading in over ms. Music
// already playing is halted first; if it is fading out the call waits
// until the fade completes.
func (e *Engine) FadeInMusicPos(m *Music, loops, ms int, position float64) error {
	if m == nil {
		return ErrNilMusic
	}

	e.mu.Lock()
	e.waitFadeOut(nil)
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if m.freed {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMusicFreed, m.name)
	}
	if e.music.current != nil {
		e.haltMusic(ReasonReplaced, false)
	}

	if loops == 0 {
		loops = 1
	}
	if err := e.startMusic(m, position); err != nil {
		e.unlock()
		return err
	}

	now := e.nowMs()
	s := &e.music
	s.current = m
	s.loops = loops
	s.paused = false
	s.startMs = now
	s.fading = NoFading
	if ms > 0 {
		s.fading = FadingIn
		s.fadeStart = now
		s.fadeLen = int64(ms)
	}
	e.unlock()

	slog.Info("music started", "name", m.name, "type", m.typ.String(), "loops", loops, "fade_ms", ms)
	return nil
}

// startMusic prepares m to produce audio from position seconds. Called
// with the engine locked.
func (e *Engine) startMusic(m *Music, position float64) error {
	if m.typ == MusicCMD {
		if position > 0 {
			return fmt.Errorf("%w: %s", ErrSeekUnsupported, m.typ)
		}
		player, err := e.startCommand(m)
		if err != nil {
			return err
		}
		e.music.player = player
		return nil
	}

	if err := m.stream.Rewind(); err != nil {
		return fmt.Errorf("rewind %s: %w", m.name, err)
	}
	if position > 0 {
		if err := m.stream.Seek(seconds(position)); err != nil {
			return fmt.Errorf("seek %s: %w", m.name, err)
		}
	}
	return nil
}

func (e *Engine) startCommand(m *Music) (*audio.CommandPlayer, error) {
	var player *audio.CommandPlayer
	ready := make(chan struct{})
	p, err := audio.StartCommand(m.command, m.source, func(error) {
		<-ready
		e.commandExited(m, player)
	})
	if err != nil {
		return nil, fmt.Errorf("start music command for %s: %w", m.name, err)
	}
	player = p
	close(ready)
	return p, nil
}

// commandExited restarts or ends command music once its process exits
func (e *Engine) commandExited(m *Music, player *audio.CommandPlayer) {
	e.mu.Lock()
	s := &e.music
	if e.closed || s.current != m || s.player != player {
		// Halted or replaced; nothing to advance
		e.mu.Unlock()
		return
	}

	if s.loops == -1 || s.loops > 1 {
		if s.loops > 1 {
			s.loops--
		}
		next, err := e.startCommand(m)
		if err == nil {
			s.player = next
			e.mu.Unlock()
			return
		}
		slog.Error("failed to restart music command", "name", m.name, "error", err)
	}
	s.player = nil
	e.haltMusic(ReasonFinished, true)
	e.unlock()
}

func seconds(position float64) time.Duration {
	return time.Duration(position * float64(time.Second))
}

// haltMusic stops the current music and queues the finished hook when
// hook is set. Called with the engine locked.
func (e *Engine) haltMusic(reason StopReason, hook bool) {
	s := &e.music
	m := s.current
	if m == nil {
		return
	}

	if player := s.player; player != nil {
		s.player = nil
		e.queue(player.Terminate)
	}
	played := e.nowMs() - s.startMs
	s.current = nil
	s.paused = false
	s.fading = NoFading
	s.loops = 0

	if fn := s.finished; hook && fn != nil {
		e.queue(fn)
	}
	e.emit(Event{
		Kind:     EventMusicStopped,
		Channel:  -1,
		Name:     m.name,
		Reason:   reason,
		PlayedMs: played,
	})
	e.cond.Broadcast()

	slog.Debug("music stopped", "name", m.name, "reason", string(reason), "played_ms", played)
}

// HaltMusic stops the music and runs the finished hook
func (e *Engine) HaltMusic() {
	e.mu.Lock()
	e.haltMusic(ReasonHalted, true)
	e.unlock()
}

// FadeOutMusic ramps the music down over ms and then halts it. A fade
// already in progress continues from its current level. It reports
// whether music was playing.
func (e *Engine) FadeOutMusic(ms int) bool {
	e.mu.Lock()
	s := &e.music
	if s.current == nil {
		e.mu.Unlock()
		return false
	}
	if ms <= 0 {
		e.haltMusic(ReasonHalted, true)
		e.unlock()
		return true
	}

	now := e.nowMs()
	if s.paused {
		now = s.pausedAt
	}
	level := e.musicFadeLevel(now)
	s.fading = FadingOut
	s.fadeLen = int64(ms)
	s.fadeStart = now - int64(float64(ms)*(1-level))
	e.mu.Unlock()
	return true
}

// musicFadeLevel returns the current fade multiplier in [0, 1]
func (e *Engine) musicFadeLevel(now int64) float64 {
	s := &e.music
	if s.fading == NoFading {
		return 1
	}
	if s.fadeLen <= 0 {
		if s.fading == FadingOut {
			return 0
		}
		return 1
	}
	progress := float64(now-s.fadeStart) / float64(s.fadeLen)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	if s.fading == FadingOut {
		return 1 - progress
	}
	return progress
}

// VolumeMusic sets the music volume and returns the previous value. A
// negative volume only queries.
func (e *Engine) VolumeMusic(volume int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.music.volume
	if volume < 0 {
		return prev
	}
	if volume > MaxVolume {
		volume = MaxVolume
	}
	e.music.volume = volume
	return prev
}

// PauseMusic pauses playing music. Fades are frozen while paused.
func (e *Engine) PauseMusic() {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &e.music
	if s.current == nil || s.paused {
		return
	}
	if s.player != nil {
		if err := s.player.Pause(); err != nil {
			slog.Warn("failed to pause music command", "error", err)
		}
	}
	s.paused = true
	s.pausedAt = e.nowMs()
	e.cond.Broadcast()
}

// ResumeMusic continues paused music
func (e *Engine) ResumeMusic() {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &e.music
	if s.current == nil || !s.paused {
		return
	}
	if s.player != nil {
		if err := s.player.Resume(); err != nil {
			slog.Warn("failed to resume music command", "error", err)
		}
	}
	if s.fading != NoFading {
		s.fadeStart += e.nowMs() - s.pausedAt
	}
	s.paused = false
}

// RewindMusic restarts the current music from the beginning
func (e *Engine) RewindMusic() error {
	return e.SetMusicPosition(0)
}

// SetMusicPosition seeks the current music to position seconds. Formats
// without seeking fail and are left untouched.
func (e *Engine) SetMusicPosition(position float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.music.current
	if m == nil {
		return ErrMusicNotPlaying
	}
	if m.stream == nil {
		return fmt.Errorf("%w: %s", ErrSeekUnsupported, m.typ)
	}
	if err := m.stream.Seek(seconds(position)); err != nil {
		return fmt.Errorf("%w: %v", ErrSeekUnsupported, err)
	}
	return nil
}

// GetMusicPosition returns the playback position of m (the current music
// when nil) in seconds, or -1 when it cannot be determined
func (e *Engine) GetMusicPosition(m *Music) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m == nil {
		m = e.music.current
	}
	if m == nil || m.stream == nil {
		return -1
	}
	return m.stream.Position().Seconds()
}

// MusicDuration returns the length of m (the current music when nil) in
// seconds, or -1 when unknown
func (e *Engine) MusicDuration(m *Music) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m == nil {
		m = e.music.current
	}
	if m == nil || m.stream == nil {
		return -1
	}
	d := m.stream.Duration()
	if d < 0 {
		return -1
	}
	return d.Seconds()
}

// GetMusicType returns the type of m, or of the current music when nil
func (e *Engine) GetMusicType(m *Music) MusicType {
	if m != nil {
		return m.typ
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.music.current == nil {
		return MusicNone
	}
	return e.music.current.typ
}

// FadingMusic returns the fade state of the music
func (e *Engine) FadingMusic() Fading {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.music.current == nil {
		return NoFading
	}
	return e.music.fading
}

// PlayingMusic reports whether music is active, paused or not
func (e *Engine) PlayingMusic() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.music.current != nil
}

// PausedMusic reports whether the music is paused
func (e *Engine) PausedMusic() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.music.current != nil && e.music.paused
}

// HookMusicFinished sets a callback run when music stops by halting,
// fading out or reaching its end. It is not run when music is replaced or
// freed.
func (e *Engine) HookMusicFinished(fn func()) {
	e.mu.Lock()
	e.music.finished = fn
	e.mu.Unlock()
}

// HookMusic replaces music decoding with fn, which fills the zeroed music
// buffer each tick. Channels are mixed on top. nil restores normal music.
func (e *Engine) HookMusic(fn func(samples []float32)) {
	e.mu.Lock()
	e.music.hook = fn
	e.mu.Unlock()
}

// SetMusicCMD routes music loaded afterwards through an external command
// that receives the file path as its last argument. An empty command
// restores internal decoding. Current music is halted.
func (e *Engine) SetMusicCMD(command string) error {
	if command != "" {
		name := audio.CommandName(command)
		if !audio.CommandExists(name) {
			return fmt.Errorf("%w: music command %q not found", audio.ErrBackendNotAvailable, name)
		}
	}

	e.mu.Lock()
	e.haltMusic(ReasonHalted, true)
	e.music.command = command
	e.unlock()

	slog.Info("music command set", "command", audio.CommandName(command))
	return nil
}

// mixMusic renders the music (or the music hook) into out. Called with the
// engine locked.
func (e *Engine) mixMusic(out []float32) {
	s := &e.music
	if s.hook != nil {
		s.hook(out)
		return
	}
	m := s.current
	if m == nil || s.paused {
		return
	}

	now := e.nowMs()
	if s.fading != NoFading && now-s.fadeStart >= s.fadeLen {
		if s.fading == FadingOut {
			e.haltMusic(ReasonFaded, true)
			return
		}
		s.fading = NoFading
	}
	if m.stream == nil {
		return
	}

	if cap(s.buf) < len(out) {
		s.buf = make([]float32, len(out))
	}
	buf := s.buf[:len(out)]
	channels := e.spec.Channels

	filled := 0
	ended := false
	rewound := false
	for filled < len(buf) {
		frames, _ := m.stream.Read(buf[filled:])
		filled += frames * channels
		if filled >= len(buf) {
			break
		}
		// Short read: the stream ended inside this tick
		if (frames == 0 && rewound) || (s.loops != -1 && s.loops <= 1) {
			ended = true
			break
		}
		if s.loops > 1 {
			s.loops--
		}
		if err := m.stream.Rewind(); err != nil {
			slog.Warn("failed to loop music", "name", m.name, "error", err)
			ended = true
			break
		}
		rewound = true
	}

	gain := float32(s.volume) / MaxVolume * float32(e.musicFadeLevel(now))
	for i := 0; i < filled; i++ {
		out[i] += buf[i] * gain
	}

	if ended {
		e.haltMusic(ReasonFinished, true)
	}
}
