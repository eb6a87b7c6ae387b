package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format names reported by Sniff. Only some of them have a registered decoder.
const (
	FormatNameWAV  = "WAV"
	FormatNameMP3  = "MP3"
	FormatNameAIFF = "AIFF"
	FormatNameOGG  = "OGG"
	FormatNameFLAC = "FLAC"
	FormatNameOpus = "OPUS"
	FormatNameMIDI = "MIDI"
	FormatNameMOD  = "MOD"
)

// sniffLen is how many header bytes are inspected for magic detection
const sniffLen = 512

// DecoderRegistry manages audio format decoders and provides format detection
type DecoderRegistry struct {
	decoders []Decoder
}

// NewDecoderRegistry creates a new empty decoder registry
func NewDecoderRegistry() *DecoderRegistry {
	slog.Debug("creating new decoder registry")
	return &DecoderRegistry{
		decoders: make([]Decoder, 0),
	}
}

// NewDefaultRegistry creates a registry with WAV, MP3, AIFF, OGG and FLAC decoders
func NewDefaultRegistry() *DecoderRegistry {
	registry := NewDecoderRegistry()

	registry.Register(NewWavDecoder())
	registry.Register(NewMp3Decoder())
	registry.Register(NewAiffDecoder())
	registry.Register(NewOggDecoder())
	registry.Register(NewFlacDecoder())

	slog.Debug("default decoder registry initialized",
		"supported_formats", registry.GetSupportedFormats())

	return registry
}

// Register adds a decoder to the registry
func (r *DecoderRegistry) Register(decoder Decoder) {
	if decoder == nil {
		slog.Warn("attempted to register nil decoder")
		return
	}

	r.decoders = append(r.decoders, decoder)

	slog.Debug("decoder registered",
		"format", decoder.FormatName(),
		"total_decoders", len(r.decoders))
}

// GetDecoders returns all registered decoders
func (r *DecoderRegistry) GetDecoders() []Decoder {
	return r.decoders
}

// GetSupportedFormats returns a list of all supported format names
func (r *DecoderRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(r.decoders))
	for _, decoder := range r.decoders {
		formats = append(formats, decoder.FormatName())
	}
	return formats
}

// DetectFormat detects the appropriate decoder based on filename extension only
func (r *DecoderRegistry) DetectFormat(filename string) Decoder {
	if filename == "" {
		return nil
	}

	// First registered decoder has priority
	for _, decoder := range r.decoders {
		if decoder.CanDecode(filename) {
			slog.Debug("format detected by extension",
				"filename", filename,
				"format", decoder.FormatName())
			return decoder
		}
	}

	slog.Debug("no decoder found for filename", "filename", filename)
	return nil
}

// Sniff names the container format of a header, using magic bytes first and
// the filename extension as fallback. It returns "" when nothing matches.
func Sniff(filename string, header []byte) string {
	if len(header) > 0 {
		if name := sniffMagic(header); name != "" {
			slog.Debug("format detected by magic bytes", "filename", filename, "format", name)
			return name
		}
	}
	return sniffExtension(filename)
}

func sniffMagic(header []byte) string {
	// Opus and Vorbis share the Ogg container; the first packet tells them apart
	if bytes.HasPrefix(header, []byte("OggS")) && bytes.Contains(header, []byte("OpusHead")) {
		return FormatNameOpus
	}

	mimeStr := strings.ToLower(mimetype.Detect(header).String())

	switch {
	case strings.Contains(mimeStr, "wav") || mimeStr == "audio/vnd.wave":
		return FormatNameWAV
	case strings.Contains(mimeStr, "mpeg") || strings.Contains(mimeStr, "mp3"):
		return FormatNameMP3
	case strings.Contains(mimeStr, "aiff"):
		return FormatNameAIFF
	case strings.Contains(mimeStr, "flac"):
		return FormatNameFLAC
	case strings.Contains(mimeStr, "opus"):
		return FormatNameOpus
	case strings.Contains(mimeStr, "ogg"):
		return FormatNameOGG
	case strings.Contains(mimeStr, "midi"):
		return FormatNameMIDI
	}

	slog.Debug("unrecognized magic bytes", "mime_type", mimeStr)
	return ""
}

func sniffExtension(filename string) string {
	lower := strings.ToLower(filename)
	extensions := []struct {
		suffixes []string
		name     string
	}{
		{[]string{".wav", ".wave"}, FormatNameWAV},
		{[]string{".mp3", ".mpeg"}, FormatNameMP3},
		{[]string{".aiff", ".aif"}, FormatNameAIFF},
		{[]string{".ogg", ".oga"}, FormatNameOGG},
		{[]string{".flac"}, FormatNameFLAC},
		{[]string{".opus"}, FormatNameOpus},
		{[]string{".mid", ".midi"}, FormatNameMIDI},
		{[]string{".mod", ".xm", ".s3m", ".it"}, FormatNameMOD},
	}
	for _, ext := range extensions {
		for _, suffix := range ext.suffixes {
			if strings.HasSuffix(lower, suffix) {
				return ext.name
			}
		}
	}
	return ""
}

// DetectFormatWithContent detects format using magic bytes first, fallback to extension
func (r *DecoderRegistry) DetectFormatWithContent(filename string, reader io.Reader) Decoder {
	buffer := make([]byte, sniffLen)
	n, err := io.ReadFull(reader, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		slog.Error("failed to read header for magic detection", "error", err)
		return r.DetectFormat(filename)
	}

	if name := sniffMagic(buffer[:n]); name != "" {
		if decoder := r.findDecoderByFormat(name); decoder != nil {
			return decoder
		}
	}

	decoder := r.DetectFormat(filename)
	if decoder == nil {
		slog.Warn("no format detection method succeeded", "filename", filename)
	}
	return decoder
}

// findDecoderByFormat finds a decoder by its format name
func (r *DecoderRegistry) findDecoderByFormat(formatName string) Decoder {
	for _, decoder := range r.decoders {
		if strings.EqualFold(decoder.FormatName(), formatName) {
			return decoder
		}
	}
	return nil
}

// DecodeFile decodes an audio file using the appropriate decoder
func (r *DecoderRegistry) DecodeFile(filename string, reader io.Reader) (*AudioData, error) {
	slog.Debug("starting file decode operation", "filename", filename)

	// Buffer the content so detection does not consume what the decoder needs
	fullContent, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read file content for decode", "filename", filename, "error", err)
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	decoder := r.DetectFormatWithContent(filename, bytes.NewReader(fullContent))
	if decoder == nil {
		err := fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
		slog.Error("no suitable decoder found", "filename", filename, "error", err)
		return nil, err
	}

	audioData, err := decoder.Decode(bytes.NewReader(fullContent))
	if err != nil {
		slog.Error("decode operation failed",
			"filename", filename,
			"decoder_format", decoder.FormatName(),
			"error", err)
		return nil, fmt.Errorf("decode %s as %s: %w", filename, decoder.FormatName(), err)
	}

	slog.Info("file decode completed successfully",
		"filename", filename,
		"decoder_format", decoder.FormatName(),
		"channels", audioData.Channels,
		"sample_rate", audioData.SampleRate,
		"data_size", len(audioData.Samples))

	return audioData, nil
}
