package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
)

// Common errors for AudioSource implementations
var (
	ErrNotSupported  = errors.New("operation not supported by this source")
	ErrInvalidFormat = errors.New("invalid audio format")
	ErrSourceClosed  = errors.New("audio source is closed")
)

// AudioSource represents a source of audio data.
// Implementations provide either a real file path (for external commands)
// or a reader with format information.
type AudioSource interface {
	// AsFilePath returns a path usable by other processes, or ErrNotSupported
	AsFilePath() (string, error)

	// AsReader returns a reader and a lowercase format hint such as "wav".
	// The caller is responsible for closing the returned ReadCloser.
	AsReader() (io.ReadCloser, string, error)
}

// FileSource represents an audio source backed by a file on an afero filesystem
type FileSource struct {
	fs   afero.Fs
	path string
}

// NewFileSource creates a new FileSource for the given file path
func NewFileSource(fs afero.Fs, path string) *FileSource {
	slog.Debug("creating new FileSource", "path", path)
	return &FileSource{fs: fs, path: path}
}

// AsFilePath returns the path when the file lives on the OS filesystem
func (s *FileSource) AsFilePath() (string, error) {
	if s.path == "" {
		slog.Error("FileSource has empty path")
		return "", fmt.Errorf("file path is empty")
	}
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return "", ErrNotSupported
	}
	return s.path, nil
}

// AsReader opens the file through the filesystem
func (s *FileSource) AsReader() (io.ReadCloser, string, error) {
	if s.path == "" {
		slog.Error("FileSource has empty path for reader")
		return nil, "", fmt.Errorf("file path is empty")
	}

	format := strings.ToLower(sniffExtension(s.path))
	if format == "" {
		slog.Error("unsupported audio format", "path", s.path)
		return nil, "", ErrInvalidFormat
	}

	file, err := s.fs.Open(s.path)
	if err != nil {
		slog.Error("failed to open file", "path", s.path, "error", err)
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	slog.Debug("FileSource providing reader", "path", s.path, "format", format)
	return file, format, nil
}

// ReaderSource represents an audio source backed by an io.ReadCloser
type ReaderSource struct {
	reader io.ReadCloser
	format string
}

// NewReaderSource creates a new ReaderSource with the given reader and format
func NewReaderSource(reader io.ReadCloser, format string) *ReaderSource {
	slog.Debug("creating new ReaderSource", "format", format)
	return &ReaderSource{reader: reader, format: format}
}

// AsFilePath returns ErrNotSupported since ReaderSource cannot provide a file path
func (s *ReaderSource) AsFilePath() (string, error) {
	return "", ErrNotSupported
}

// AsReader returns the stored reader and format
func (s *ReaderSource) AsReader() (io.ReadCloser, string, error) {
	if s.reader == nil {
		slog.Error("ReaderSource has nil reader")
		return nil, "", ErrSourceClosed
	}
	return s.reader, s.format, nil
}
