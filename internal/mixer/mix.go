package mixer

import (
	"mixdeck.click/internal/audio"
)

// Mix renders one device buffer into out. It is the RenderFunc handed to
// the device; headless callers may drive it directly. Music is rendered
// first, then every channel, then the ChannelPost chain and the post-mix
// callback. Finished callbacks raised during the tick run after the engine
// lock is released.
func (e *Engine) Mix(out []byte) {
	e.mu.Lock()
	format := e.spec.Format
	if e.closed {
		e.mu.Unlock()
		audio.Silence(format, out)
		return
	}

	frameSize := e.spec.FrameSize()
	frames := len(out) / frameSize
	samples := frames * e.spec.Channels

	mix := e.scratch(&e.mixBuf, samples)
	e.mixMusic(mix)
	e.mixChannels(mix, frameSize)

	e.runEffects(ChannelPost, e.postEffects, mix)
	if e.postMix != nil {
		e.postMix(mix)
	}

	audio.Silence(format, out)
	audio.EncodeSamples(format, mix, out)

	e.frames += int64(frames)
	e.cond.Broadcast()
	e.unlock()
}

// scratch returns a zeroed slice of n samples backed by *buf
func (e *Engine) scratch(buf *[]float32, n int) []float32 {
	if cap(*buf) < n {
		*buf = make([]float32, n)
	}
	s := (*buf)[:n]
	clear(s)
	return s
}

func (e *Engine) mixChannels(mix []float32, frameSize int) {
	now := e.nowMs()
	master := float32(e.masterVolume) / MaxVolume

	for i, c := range e.channels {
		if !c.active || c.paused {
			continue
		}

		if c.expire > 0 && c.expire <= now {
			e.stopChannel(i, ReasonExpired)
			continue
		}
		if c.fading != NoFading && e.updateFade(i, c, now) {
			continue
		}

		buf := e.scratch(&e.chanBuf, len(mix))
		filled, finished := e.readChunk(c, buf, frameSize)

		e.runEffects(i, c.effects, buf[:filled])

		gain := float32(c.volume) / MaxVolume * float32(c.chunk.volume.Load()) / MaxVolume * master
		for j := 0; j < filled; j++ {
			mix[j] += buf[j] * gain
		}

		if finished {
			e.stopChannel(i, ReasonFinished)
		}
	}
}

// updateFade advances the fade of channel i and reports whether the
// channel was halted because a fade-out completed
func (e *Engine) updateFade(i int, c *channel, now int64) bool {
	elapsed := now - c.fadeStart
	if elapsed >= c.fadeLen {
		c.volume = c.fadeVolumeReset
		if c.fading == FadingOut {
			e.stopChannel(i, ReasonFaded)
			return true
		}
		c.fading = NoFading
		return false
	}

	if c.fading == FadingOut {
		c.volume = int(int64(c.fadeVolume) * (c.fadeLen - elapsed) / c.fadeLen)
	} else {
		c.volume = int(int64(c.fadeVolume) * elapsed / c.fadeLen)
	}
	return false
}

// readChunk decodes the next tick of c into buf, restarting the chunk for
// pending loops. It returns the samples written and whether the chunk
// reached its end with no loops left.
func (e *Engine) readChunk(c *channel, buf []float32, frameSize int) (int, bool) {
	data := c.chunk.buf
	playable := len(data) / frameSize * frameSize
	format := e.spec.Format
	bps := format.BytesPerSample()

	filled := 0
	for filled < len(buf) {
		if c.pos >= playable {
			if c.loops == 0 || playable == 0 {
				return filled, true
			}
			if c.loops > 0 {
				c.loops--
			}
			c.pos = 0
			if c.fading == FadingIn {
				// Fade-in covers the first iteration only
				c.volume = c.fadeVolumeReset
				c.fading = NoFading
			}
		}

		want := (len(buf) - filled) * bps
		end := c.pos + want
		if end > playable {
			end = playable
		}
		n := audio.DecodeSamples(format, data[c.pos:end], buf[filled:])
		filled += n
		c.pos += n * bps
	}

	finished := c.pos >= playable && c.loops == 0
	return filled, finished
}
