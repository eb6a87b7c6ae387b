package mixer

import (
	"fmt"
	"log/slog"
)

// Effect processes one tick of interleaved float samples in place. On a
// channel the samples are the chunk audio before any volume is applied; on
// ChannelPost they are the summed output.
//
// Process runs on the audio thread with the engine locked. It must not
// block or call back into the engine.
//
// Effects are matched by ==, so implementations should be pointer types.
type Effect interface {
	Process(ch int, samples []float32)
}

// EffectDoner is implemented by effects that want to know when they are
// removed from a channel, either explicitly or because playback ended.
// Done runs after the engine lock is released.
type EffectDoner interface {
	Done(ch int)
}

type funcEffect struct {
	process func(ch int, samples []float32)
	done    func(ch int)
}

func (f *funcEffect) Process(ch int, samples []float32) {
	if f.process != nil {
		f.process(ch, samples)
	}
}

func (f *funcEffect) Done(ch int) {
	if f.done != nil {
		f.done(ch)
	}
}

// NewEffect builds an effect from a pair of callbacks. Either may be nil.
// Every call returns a distinct registration handle.
func NewEffect(process func(ch int, samples []float32), done func(ch int)) Effect {
	return &funcEffect{process: process, done: done}
}

func (e *Engine) chain(ch int) (*[]Effect, error) {
	if ch == ChannelPost {
		return &e.postEffects, nil
	}
	if !e.validChannel(ch) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	return &e.channels[ch].effects, nil
}

// RegisterEffect appends effect to the chain of ch. The same effect may be
// registered more than once; each registration runs independently.
// Effects on a regular channel are dropped when its playback ends, while
// those on ChannelPost stay until unregistered.
func (e *Engine) RegisterEffect(ch int, effect Effect) error {
	if effect == nil {
		return ErrNilEffect
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	effects, err := e.chain(ch)
	if err != nil {
		return err
	}
	*effects = append(*effects, effect)
	return nil
}

// UnregisterEffect removes the first registration of effect from ch
func (e *Engine) UnregisterEffect(ch int, effect Effect) error {
	if effect == nil {
		return ErrNilEffect
	}
	e.mu.Lock()
	effects, err := e.chain(ch)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !e.removeEffect(ch, effects, effect) {
		e.mu.Unlock()
		return fmt.Errorf("%w: channel %d", ErrEffectNotFound, ch)
	}
	e.forgetBuiltin(ch, effect)
	e.unlock()
	return nil
}

// UnregisterAllEffects clears the chain of ch, including built-in effects
func (e *Engine) UnregisterAllEffects(ch int) error {
	e.mu.Lock()
	if _, err := e.chain(ch); err != nil {
		e.mu.Unlock()
		return err
	}
	e.clearEffects(ch)
	e.unlock()
	return nil
}

// RegisteredEffects returns a copy of the chain of ch in processing order
func (e *Engine) RegisteredEffects(ch int) []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()
	effects, err := e.chain(ch)
	if err != nil {
		return nil
	}
	return append([]Effect(nil), (*effects)...)
}

// SetPostMix installs a callback that sees the final mix after the
// ChannelPost chain. nil removes it.
func (e *Engine) SetPostMix(fn func(samples []float32)) {
	e.mu.Lock()
	e.postMix = fn
	e.mu.Unlock()
}

func (e *Engine) removeEffect(ch int, effects *[]Effect, effect Effect) bool {
	for i, registered := range *effects {
		if registered != effect {
			continue
		}
		*effects = append((*effects)[:i:i], (*effects)[i+1:]...)
		e.queueDone(ch, effect)
		return true
	}
	return false
}

// clearEffects empties the chain of ch and queues every Done callback in
// registration order
func (e *Engine) clearEffects(ch int) {
	effects, err := e.chain(ch)
	if err != nil || len(*effects) == 0 {
		delete(e.positions, ch)
		delete(e.reversers, ch)
		return
	}
	removed := *effects
	*effects = nil
	for _, effect := range removed {
		e.queueDone(ch, effect)
	}
	delete(e.positions, ch)
	delete(e.reversers, ch)
	slog.Debug("effects cleared", "channel", ch, "count", len(removed))
}

func (e *Engine) queueDone(ch int, effect Effect) {
	if doner, ok := effect.(EffectDoner); ok {
		e.queue(func() { doner.Done(ch) })
	}
}

func (e *Engine) forgetBuiltin(ch int, effect Effect) {
	if p, ok := e.positions[ch]; ok && Effect(p) == effect {
		delete(e.positions, ch)
	}
	if r, ok := e.reversers[ch]; ok && Effect(r) == effect {
		delete(e.reversers, ch)
	}
}

func (e *Engine) runEffects(ch int, effects []Effect, samples []float32) {
	for _, effect := range effects {
		effect.Process(ch, samples)
	}
}
