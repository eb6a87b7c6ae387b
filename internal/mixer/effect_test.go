package mixer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gainEffect struct {
	gain    float32
	calls   int
	removed []int
}

func (g *gainEffect) Process(_ int, samples []float32) {
	g.calls++
	for i := range samples {
		samples[i] *= g.gain
	}
}

func (g *gainEffect) Done(ch int) {
	g.removed = append(g.removed, ch)
}

func TestRegisterTwiceUnregisterOnce(t *testing.T) {
	e, _ := openTestEngine(t)
	effect := &gainEffect{gain: 1}

	require.NoError(t, e.RegisterEffect(0, effect))
	require.NoError(t, e.RegisterEffect(0, effect))
	require.Len(t, e.RegisteredEffects(0), 2)

	require.NoError(t, e.UnregisterEffect(0, effect))
	assert.Equal(t, []Effect{effect}, e.RegisteredEffects(0))
	assert.Equal(t, []int{0}, effect.removed)

	require.NoError(t, e.UnregisterEffect(0, effect))
	assert.Empty(t, e.RegisteredEffects(0))

	err := e.UnregisterEffect(0, effect)
	assert.True(t, errors.Is(err, ErrEffectNotFound))
}

func TestRegisterEffectValidation(t *testing.T) {
	e, _ := openTestEngine(t)

	assert.True(t, errors.Is(e.RegisterEffect(0, nil), ErrNilEffect))
	assert.True(t, errors.Is(e.RegisterEffect(DefaultChannels, &gainEffect{}), ErrInvalidChannel))
	assert.True(t, errors.Is(e.RegisterEffect(-3, &gainEffect{}), ErrInvalidChannel))
	assert.True(t, errors.Is(e.UnregisterAllEffects(-3), ErrInvalidChannel))
	assert.Nil(t, e.RegisteredEffects(-3))
}

func TestEffectsRunInRegistrationOrderBeforeVolume(t *testing.T) {
	e, rig := openTestEngine(t)

	var order []string
	var seen []float32
	first := NewEffect(func(_ int, samples []float32) {
		order = append(order, "first")
		seen = append(seen[:0], samples[0])
		for i := range samples {
			samples[i] *= 0.5
		}
	}, nil)
	second := NewEffect(func(_ int, samples []float32) {
		order = append(order, "second")
	}, nil)

	chunk := constChunk(t, e, 10, 16384)
	_, err := e.PlayChannel(0, chunk, -1)
	require.NoError(t, err)
	e.Volume(0, 64)
	require.NoError(t, e.RegisterEffect(0, first))
	require.NoError(t, e.RegisterEffect(0, second))

	out := rig.pump(t, 1)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.InDelta(t, 0.5, seen[0], 0.001, "effects see samples before the channel volume")
	assert.InDelta(t, 4095, out[0], 2)
}

func TestChannelChainClearedWhenPlaybackEnds(t *testing.T) {
	e, rig := openTestEngine(t)
	effect := &gainEffect{gain: 1}

	chunk := constChunk(t, e, 10, 8000)
	_, err := e.PlayChannel(2, chunk, 0)
	require.NoError(t, err)
	require.NoError(t, e.RegisterEffect(2, effect))

	rig.pump(t, 1)
	assert.Equal(t, 1, effect.calls)
	assert.Empty(t, e.RegisteredEffects(2))
	assert.Equal(t, []int{2}, effect.removed)

	rig.pump(t, 1)
	assert.Equal(t, 1, effect.calls)
}

func TestEffectOnIdleChannelAppliesToNextPlayback(t *testing.T) {
	e, rig := openTestEngine(t)
	effect := &gainEffect{gain: 0}

	require.NoError(t, e.RegisterEffect(0, effect))
	chunk := constChunk(t, e, 100, 8000)
	_, err := e.PlayChannel(0, chunk, 0)
	require.NoError(t, err)

	assert.True(t, allSilent(rig.pump(t, 1)))
	assert.Equal(t, 1, effect.calls)
}

func TestPostChainPersists(t *testing.T) {
	e, rig := openTestEngine(t)
	post := &gainEffect{gain: 0.5}
	require.NoError(t, e.RegisterEffect(ChannelPost, post))

	chunk := constChunk(t, e, 10, 8000)
	_, err := e.PlayChannel(0, chunk, 0)
	require.NoError(t, err)
	_, err = e.PlayChannel(1, chunk, 0)
	require.NoError(t, err)

	out := rig.pump(t, 1)
	assert.InDelta(t, 7999, out[0], 2, "post effects see the summed channels")

	rig.pump(t, 2)
	e.HaltChannel(AllChannels)
	assert.Equal(t, []Effect{post}, e.RegisteredEffects(ChannelPost))
	assert.Equal(t, 3, post.calls)
	assert.Empty(t, post.removed)

	require.NoError(t, e.UnregisterAllEffects(ChannelPost))
	assert.Empty(t, e.RegisteredEffects(ChannelPost))
	assert.Equal(t, []int{ChannelPost}, post.removed)
}

func TestUnregisterAllEffects(t *testing.T) {
	e, _ := openTestEngine(t)
	a := &gainEffect{gain: 1}
	b := &gainEffect{gain: 1}
	require.NoError(t, e.RegisterEffect(3, a))
	require.NoError(t, e.RegisterEffect(3, b))
	require.NoError(t, e.SetPanning(3, 100, 255))

	require.NoError(t, e.UnregisterAllEffects(3))
	assert.Empty(t, e.RegisteredEffects(3))
	assert.Equal(t, []int{3}, a.removed)
	assert.Equal(t, []int{3}, b.removed)

	// The built-in is gone too, so a new pan registers afresh
	require.NoError(t, e.SetPanning(3, 255, 100))
	assert.Len(t, e.RegisteredEffects(3), 1)
}

func TestSetPostMix(t *testing.T) {
	e, rig := openTestEngine(t)
	chunk := constChunk(t, e, 10, 8000)
	_, err := e.PlayChannel(0, chunk, -1)
	require.NoError(t, err)

	var peak float32
	e.SetPostMix(func(samples []float32) {
		peak = samples[0]
		clear(samples)
	})
	assert.True(t, allSilent(rig.pump(t, 1)))
	assert.InDelta(t, 8000.0/32768, peak, 0.001)

	e.SetPostMix(nil)
	assert.False(t, allSilent(rig.pump(t, 1)))
}
