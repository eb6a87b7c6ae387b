package mixer

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"mixdeck.click/internal/audio"
)

// Chunk is a sample fully decoded into the engine's output format. Chunks
// are created by the engine and stay valid until FreeChunk.
type Chunk struct {
	name      string
	allocated bool
	buf       []byte
	volume    atomic.Int32
	freed     atomic.Bool
}

func newChunk(name string, buf []byte, allocated bool) *Chunk {
	c := &Chunk{name: name, buf: buf, allocated: allocated}
	c.volume.Store(MaxVolume)
	return c
}

// Name returns the file or caller supplied name of the chunk
func (c *Chunk) Name() string {
	return c.name
}

// Len returns the payload length in bytes
func (c *Chunk) Len() int {
	if c.freed.Load() {
		return 0
	}
	return len(c.buf)
}

// Allocated reports whether the engine owns the buffer. Chunks from
// QuickLoadWAV and QuickLoadRAW borrow the caller's memory.
func (c *Chunk) Allocated() bool {
	return c.allocated
}

// Bytes returns the PCM payload in the output format
func (c *Chunk) Bytes() []byte {
	if c.freed.Load() {
		return nil
	}
	return c.buf
}

// Volume sets the chunk volume and returns the previous one. A negative
// value only queries; values above MaxVolume are clamped.
func (c *Chunk) Volume(volume int) int {
	prev := int(c.volume.Load())
	if volume < 0 {
		return prev
	}
	if volume > MaxVolume {
		volume = MaxVolume
	}
	c.volume.Store(int32(volume))
	return prev
}

// LoadWAV decodes any supported sample file from the engine filesystem
// and converts it to the output format
func (e *Engine) LoadWAV(path string) (*Chunk, error) {
	file, err := e.fs.Open(path)
	if err != nil {
		slog.Error("failed to open sample", "path", path, "error", err)
		return nil, fmt.Errorf("open sample %s: %w", path, err)
	}
	defer file.Close()

	return e.LoadWAVReader(path, file)
}

// LoadWAVReader decodes a sample from r. name is used for format detection
// when the content is ambiguous and for events.
func (e *Engine) LoadWAVReader(name string, r io.Reader) (*Chunk, error) {
	spec := e.QuerySpec()

	data, err := e.registry.DecodeFile(name, r)
	if err != nil {
		return nil, err
	}
	buf, err := audio.Convert(data, spec)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", name, err)
	}

	slog.Debug("chunk loaded",
		"name", name,
		"bytes", len(buf),
		"source_rate", data.SampleRate,
		"source_channels", data.Channels)

	return newChunk(filepath.Base(name), buf, true), nil
}

// QuickLoadWAV wraps an in-memory WAV file whose format already matches
// the output spec. The chunk borrows mem; it must outlive the chunk.
func (e *Engine) QuickLoadWAV(mem []byte) (*Chunk, error) {
	payload, got, err := audio.LocateWAVPayload(mem)
	if err != nil {
		return nil, err
	}

	spec := e.QuerySpec()
	if got.Frequency != spec.Frequency || got.Format != spec.Format || got.Channels != spec.Channels {
		return nil, fmt.Errorf("%w: wav is %d Hz %s x%d, output is %d Hz %s x%d",
			ErrFormatMismatch,
			got.Frequency, got.Format, got.Channels,
			spec.Frequency, spec.Format, spec.Channels)
	}
	return newChunk("", payload, false), nil
}

// QuickLoadRAW wraps raw PCM that is already in the output format. The
// chunk borrows mem.
func (e *Engine) QuickLoadRAW(mem []byte) (*Chunk, error) {
	if mem == nil {
		return nil, ErrNilChunk
	}
	return newChunk("", mem, false), nil
}

// LoadRAW copies raw PCM in the output format into an owned chunk
func (e *Engine) LoadRAW(name string, r io.Reader) (*Chunk, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", audio.ErrReadFailure, name, err)
	}
	return newChunk(name, buf.Bytes(), true), nil
}

// FreeChunk halts every channel playing c and invalidates it. Freeing nil
// or an already freed chunk does nothing.
func (e *Engine) FreeChunk(c *Chunk) {
	if c == nil || c.freed.Load() {
		return
	}

	e.mu.Lock()
	for i, ch := range e.channels {
		if ch.chunk != c {
			continue
		}
		if ch.active {
			e.stopChannel(i, ReasonFreed)
		}
		ch.chunk = nil
	}
	c.freed.Store(true)
	c.buf = nil
	e.unlock()

	slog.Debug("chunk freed", "name", c.name)
}
