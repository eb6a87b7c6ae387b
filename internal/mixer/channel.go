package mixer

import (
	"fmt"
	"log/slog"
)

// Fading is the fade state of a channel or of the music
type Fading int

const (
	NoFading Fading = iota
	FadingOut
	FadingIn
)

func (f Fading) String() string {
	switch f {
	case FadingOut:
		return "fading_out"
	case FadingIn:
		return "fading_in"
	default:
		return "none"
	}
}

type channel struct {
	chunk  *Chunk // last chunk assigned, kept after the channel stops
	pos    int    // byte offset into chunk
	loops  int    // remaining restarts, -1 forever
	active bool
	paused bool

	pausedAt int64
	volume   int
	expire   int64 // engine ms, 0 when unset

	fading          Fading
	fadeStart       int64
	fadeLen         int64
	fadeVolume      int
	fadeVolumeReset int

	tag      int
	startSeq uint64
	startMs  int64

	effects []Effect
}

func newChannel() *channel {
	return &channel{volume: MaxVolume, tag: NoGroup}
}

// AllocateChannels resizes the channel array and returns the new count.
// A negative n only queries. Shrinking halts the removed channels, firing
// their callbacks; growing adds idle channels at full volume.
func (e *Engine) AllocateChannels(n int) int {
	e.mu.Lock()
	if n < 0 || n == len(e.channels) {
		count := len(e.channels)
		e.mu.Unlock()
		return count
	}

	if n < len(e.channels) {
		for i := n; i < len(e.channels); i++ {
			e.stopChannel(i, ReasonHalted)
			e.clearEffects(i)
		}
		e.channels = e.channels[:n]
	} else {
		for len(e.channels) < n {
			e.channels = append(e.channels, newChannel())
		}
	}
	if e.reserved > n {
		e.reserved = n
	}
	slog.Debug("channels allocated", "count", n, "reserved", e.reserved)
	e.unlock()
	return n
}

// ReserveChannels keeps channels [0, n) out of automatic selection by
// play calls on channel -1. It returns the number actually reserved.
func (e *Engine) ReserveChannels(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > len(e.channels) {
		n = len(e.channels)
	}
	e.reserved = n
	return n
}

// Volume sets the volume of ch and returns the previous value. With ch -1
// every channel is set and the average previous volume is returned. A
// negative volume only queries.
func (e *Engine) Volume(ch, volume int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if volume > MaxVolume {
		volume = MaxVolume
	}
	if ch == AllChannels {
		if len(e.channels) == 0 {
			return 0
		}
		total := 0
		for _, c := range e.channels {
			total += c.volume
			if volume >= 0 {
				c.volume = volume
			}
		}
		return total / len(e.channels)
	}
	if !e.validChannel(ch) {
		return 0
	}
	c := e.channels[ch]
	prev := c.volume
	if volume >= 0 {
		c.volume = volume
	}
	return prev
}

// MasterVolume scales every channel, but not the music. A negative value
// only queries.
func (e *Engine) MasterVolume(volume int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.masterVolume
	if volume < 0 {
		return prev
	}
	if volume > MaxVolume {
		volume = MaxVolume
	}
	e.masterVolume = volume
	return prev
}

// PlayChannel plays chunk on ch, or on the first free unreserved channel
// when ch is -1, and returns the channel used. loops -1 repeats forever;
// otherwise the chunk plays loops+1 times.
func (e *Engine) PlayChannel(ch int, chunk *Chunk, loops int) (int, error) {
	return e.FadeInChannelTimed(ch, chunk, loops, 0, -1)
}

// PlayChannelTimed is PlayChannel limited to ticks milliseconds when ticks > 0
func (e *Engine) PlayChannelTimed(ch int, chunk *Chunk, loops, ticks int) (int, error) {
	return e.FadeInChannelTimed(ch, chunk, loops, 0, ticks)
}

// FadeInChannel plays chunk ramping its volume up from silence over ms on
// the first iteration
func (e *Engine) FadeInChannel(ch int, chunk *Chunk, loops, ms int) (int, error) {
	return e.FadeInChannelTimed(ch, chunk, loops, ms, -1)
}

// FadeInChannelTimed combines FadeInChannel with a playback limit
func (e *Engine) FadeInChannelTimed(ch int, chunk *Chunk, loops, ms, ticks int) (int, error) {
	if chunk == nil {
		return -1, ErrNilChunk
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return -1, ErrClosed
	}
	// FreeChunk marks chunks freed under the lock
	if chunk.freed.Load() {
		e.mu.Unlock()
		return -1, fmt.Errorf("%w: %s", ErrChunkFreed, chunk.name)
	}
	if frame := e.spec.FrameSize(); len(chunk.buf)%frame != 0 {
		e.mu.Unlock()
		return -1, fmt.Errorf("%w: %s is %d bytes, not a multiple of %d", ErrBadFrame, chunk.name, len(chunk.buf), frame)
	}

	if ch == AllChannels {
		ch = e.freeChannel()
		if ch < 0 {
			e.mu.Unlock()
			slog.Debug("no free channel for chunk", "name", chunk.name)
			return -1, ErrNoFreeChannels
		}
	} else if !e.validChannel(ch) {
		e.mu.Unlock()
		return -1, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}

	// A busy channel is stopped first so its callback and effects see the old chunk
	e.stopChannel(ch, ReasonReplaced)

	now := e.nowMs()
	e.seq++
	c := e.channels[ch]
	c.chunk = chunk
	c.pos = 0
	c.loops = loops
	c.active = true
	c.paused = false
	c.expire = 0
	if ticks > 0 {
		c.expire = now + int64(ticks)
	}
	c.fading = NoFading
	if ms > 0 {
		c.fading = FadingIn
		c.fadeVolume = c.volume
		c.fadeVolumeReset = c.volume
		c.volume = 0
		c.fadeStart = now
		c.fadeLen = int64(ms)
	}
	c.startSeq = e.seq
	c.startMs = now
	e.unlock()

	return ch, nil
}

func (e *Engine) freeChannel() int {
	for i := e.reserved; i < len(e.channels); i++ {
		if !e.channels[i].active {
			return i
		}
	}
	return -1
}

// each runs fn for ch, or for every channel when ch is -1, and returns how
// many times fn reported a change. Invalid channels are ignored.
func (e *Engine) each(ch int, fn func(i int, c *channel) bool) int {
	if ch == AllChannels {
		count := 0
		for i, c := range e.channels {
			if fn(i, c) {
				count++
			}
		}
		return count
	}
	if !e.validChannel(ch) {
		return 0
	}
	if fn(ch, e.channels[ch]) {
		return 1
	}
	return 0
}

// Pause pauses ch, or every channel when ch is -1. Idle channels are
// left alone.
func (e *Engine) Pause(ch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.nowMs()
	e.each(ch, func(_ int, c *channel) bool {
		if !c.active || c.paused {
			return false
		}
		c.paused = true
		c.pausedAt = now
		return true
	})
}

// Resume continues paused channels. Pending expirations and fades are
// pushed back by the time spent paused.
func (e *Engine) Resume(ch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.nowMs()
	e.each(ch, func(_ int, c *channel) bool {
		if !c.active || !c.paused {
			return false
		}
		delta := now - c.pausedAt
		if c.expire > 0 {
			c.expire += delta
		}
		if c.fading != NoFading {
			c.fadeStart += delta
		}
		c.paused = false
		return true
	})
}

// Paused reports 1 if ch is paused, or the number of paused channels when
// ch is -1
func (e *Engine) Paused(ch int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.each(ch, func(_ int, c *channel) bool {
		return c.active && c.paused
	})
}

// Playing reports 1 if ch has a chunk assigned (paused counts), or the
// number of such channels when ch is -1
func (e *Engine) Playing(ch int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.each(ch, func(_ int, c *channel) bool {
		return c.active
	})
}

// HaltChannel stops ch, or every channel when ch is -1, and returns how
// many were playing
func (e *Engine) HaltChannel(ch int) int {
	e.mu.Lock()
	count := e.each(ch, func(i int, _ *channel) bool {
		return e.stopChannel(i, ReasonHalted)
	})
	e.unlock()
	return count
}

// ExpireChannel halts ch after ticks milliseconds of mixed audio. ticks <= 0
// cancels a pending expiration. It returns the number of channels updated.
func (e *Engine) ExpireChannel(ch, ticks int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.nowMs()
	return e.each(ch, func(_ int, c *channel) bool {
		c.expire = 0
		if ticks > 0 {
			c.expire = now + int64(ticks)
		}
		return true
	})
}

// FadeOutChannel ramps ch, or every channel when ch is -1, down to silence
// over ms and then halts it. Only playing channels with a non-zero volume
// that are not already fading out are affected; the count is returned.
func (e *Engine) FadeOutChannel(ch, ms int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.each(ch, func(_ int, c *channel) bool {
		return e.fadeOut(c, ms)
	})
}

func (e *Engine) fadeOut(c *channel, ms int) bool {
	if !c.active || c.volume <= 0 || c.fading == FadingOut {
		return false
	}
	if c.fading == NoFading {
		c.fadeVolumeReset = c.volume
	}
	c.fadeVolume = c.volume
	c.fadeStart = e.nowMs()
	c.fadeLen = int64(ms)
	c.fading = FadingOut
	return true
}

// FadingChannel returns the fade state of ch
func (e *Engine) FadingChannel(ch int) Fading {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel(ch) {
		return NoFading
	}
	return e.channels[ch].fading
}

// GetChunk returns the chunk most recently played on ch, or nil
func (e *Engine) GetChunk(ch int) *Chunk {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel(ch) {
		return nil
	}
	return e.channels[ch].chunk
}

// stopChannel ends playback on channel i and queues the finished callback,
// effect cleanup and stop event. It reports whether the channel was playing.
func (e *Engine) stopChannel(i int, reason StopReason) bool {
	c := e.channels[i]
	if !c.active {
		return false
	}

	played := e.nowMs() - c.startMs
	name := ""
	if c.chunk != nil {
		name = c.chunk.name
	}

	if c.fading != NoFading {
		c.volume = c.fadeVolumeReset
	}
	c.fading = NoFading
	c.active = false
	c.paused = false
	c.expire = 0
	c.loops = 0
	c.pos = 0

	if fn := e.channelFinished; fn != nil {
		e.queue(func() { fn(i) })
	}
	e.clearEffects(i)
	e.emit(Event{
		Kind:     EventChannelStopped,
		Channel:  i,
		Name:     name,
		Reason:   reason,
		PlayedMs: played,
	})

	slog.Debug("channel stopped", "channel", i, "name", name, "reason", string(reason), "played_ms", played)
	return true
}
