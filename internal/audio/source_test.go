package audio

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceMemoryFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/theme.ogg", []byte("oggdata"), 0644))

	source := NewFileSource(fs, "/music/theme.ogg")

	_, err := source.AsFilePath()
	assert.True(t, errors.Is(err, ErrNotSupported), "memory files are invisible to other processes")

	reader, format, err := source.AsReader()
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, "ogg", format)

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "oggdata", string(content))
}

func TestFileSourceOsFs(t *testing.T) {
	source := NewFileSource(afero.NewOsFs(), "/tmp/theme.wav")
	path, err := source.AsFilePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/theme.wav", path)
}

func TestFileSourceErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := NewFileSource(fs, "").AsFilePath()
	assert.Error(t, err)

	_, _, err = NewFileSource(fs, "/notes.txt").AsReader()
	assert.True(t, errors.Is(err, ErrInvalidFormat))

	_, _, err = NewFileSource(fs, "/missing.wav").AsReader()
	assert.Error(t, err)
}

func TestReaderSource(t *testing.T) {
	source := NewReaderSource(io.NopCloser(strings.NewReader("abc")), "wav")

	_, err := source.AsFilePath()
	assert.True(t, errors.Is(err, ErrNotSupported))

	reader, format, err := source.AsReader()
	require.NoError(t, err)
	assert.Equal(t, "wav", format)
	assert.NotNil(t, reader)

	_, _, err = NewReaderSource(nil, "wav").AsReader()
	assert.True(t, errors.Is(err, ErrSourceClosed))
}
