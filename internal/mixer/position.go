package mixer

import (
	"fmt"
	"log/slog"
)

// positionEffect is the shared built-in behind SetPanning, SetDistance and
// SetPosition. One instance exists per channel at most.
type positionEffect struct {
	left, right uint8
	distance    uint8
	angle       int
	outChannels int
}

func (p *positionEffect) neutral() bool {
	return p.left == 255 && p.right == 255 && p.distance == 0 && p.angle == 0
}

// angleGains maps a listener angle (0 ahead, 90 right, 180 behind, 270 left)
// to left and right gains in [0, 255]
func angleGains(angle int) (left, right float32) {
	a := float32(angle)
	switch {
	case angle < 90:
		return 255 - 255*a/89, 255
	case angle < 180:
		return 255 * (a - 90) / 89, 255
	case angle < 270:
		return 255, 255 - 255*(a-180)/89
	default:
		return 255, 255 * (a - 270) / 89
	}
}

func (p *positionEffect) gains() (left, right float32) {
	dist := float32(255-int(p.distance)) / 255
	if p.outChannels < 2 {
		return dist, dist
	}
	al, ar := angleGains(p.angle)
	left = float32(p.left) / 255 * clampUnit(al/255) * dist
	right = float32(p.right) / 255 * clampUnit(ar/255) * dist
	return left, right
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (p *positionEffect) Process(_ int, samples []float32) {
	left, right := p.gains()
	if p.outChannels < 2 {
		for i := range samples {
			samples[i] *= left
		}
		return
	}
	for i := 0; i+1 < len(samples); i += 2 {
		samples[i] *= left
		samples[i+1] *= right
	}
}

type reverseStereoEffect struct {
	ch int
}

func (*reverseStereoEffect) Process(_ int, samples []float32) {
	for i := 0; i+1 < len(samples); i += 2 {
		samples[i], samples[i+1] = samples[i+1], samples[i]
	}
}

func normalizeAngle(angle int) int {
	return ((angle % 360) + 360) % 360
}

// updatePosition applies fn to the positional effect of ch, registering it
// on first use and unregistering it once every parameter is neutral
func (e *Engine) updatePosition(ch int, fn func(p *positionEffect)) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	effects, err := e.chain(ch)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	p, registered := e.positions[ch]
	if !registered {
		p = &positionEffect{left: 255, right: 255, outChannels: e.spec.Channels}
	}
	fn(p)

	switch {
	case p.neutral() && registered:
		e.removeEffect(ch, effects, p)
		delete(e.positions, ch)
		slog.Debug("positional effect removed", "channel", ch)
	case !p.neutral() && !registered:
		*effects = append(*effects, p)
		e.positions[ch] = p
		slog.Debug("positional effect registered", "channel", ch)
	}
	e.unlock()
	return nil
}

// SetPanning sets the left and right gains of ch (255 is full volume).
// Setting both to 255 removes the panning. On mono output panning has no
// effect and succeeds.
func (e *Engine) SetPanning(ch int, left, right uint8) error {
	if e.QuerySpec().Channels < 2 {
		return nil
	}
	return e.updatePosition(ch, func(p *positionEffect) {
		p.left, p.right = left, right
	})
}

// SetDistance attenuates ch as the source moves away: 0 is close and
// unchanged, 255 is as far as possible
func (e *Engine) SetDistance(ch int, distance uint8) error {
	return e.updatePosition(ch, func(p *positionEffect) {
		p.distance = distance
	})
}

// SetPosition places the source of ch at angle degrees around the listener
// (0 straight ahead, clockwise) and at distance. The angle is ignored on
// mono output.
func (e *Engine) SetPosition(ch, angle int, distance uint8) error {
	return e.updatePosition(ch, func(p *positionEffect) {
		p.angle = normalizeAngle(angle)
		p.distance = distance
	})
}

// SetReverseStereo swaps the left and right output of ch while flip is set
func (e *Engine) SetReverseStereo(ch int, flip bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	effects, err := e.chain(ch)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if e.spec.Channels < 2 {
		e.mu.Unlock()
		return fmt.Errorf("%w: reverse stereo on channel %d", ErrMonoOutput, ch)
	}

	r, registered := e.reversers[ch]
	switch {
	case flip && !registered:
		r = &reverseStereoEffect{ch: ch}
		*effects = append(*effects, r)
		e.reversers[ch] = r
	case !flip && registered:
		e.removeEffect(ch, effects, r)
		delete(e.reversers, ch)
	}
	e.unlock()
	return nil
}
