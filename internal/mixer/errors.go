package mixer

import "errors"

// Engine errors. Callers should match them with errors.Is; most are
// returned wrapped with the offending channel or file.
var (
	ErrClosed           = errors.New("mixer is closed")
	ErrInvalidChannel   = errors.New("invalid channel")
	ErrNoFreeChannels   = errors.New("no free channels available")
	ErrNilChunk         = errors.New("nil chunk")
	ErrChunkFreed       = errors.New("chunk has been freed")
	ErrBadFrame         = errors.New("chunk length is not a whole number of frames")
	ErrFormatMismatch   = errors.New("audio does not match the output format")
	ErrNilEffect        = errors.New("nil effect")
	ErrEffectNotFound   = errors.New("no such effect registered")
	ErrMonoOutput       = errors.New("operation requires stereo output")
	ErrNilMusic         = errors.New("nil music")
	ErrMusicFreed       = errors.New("music has been freed")
	ErrMusicNotPlaying  = errors.New("music is not playing")
	ErrSeekUnsupported  = errors.New("position not implemented for music type")
	ErrUnsupportedMusic = errors.New("unsupported music format")
)
