package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFormat_FirstSupportedPreference(t *testing.T) {
	caps := Capabilities{Encodings: []string{"audio/mp4", "audio/ogg;codecs=opus", BaselineMIMEType}}

	f, err := SelectFormat(DefaultPreferences(), caps)
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg;codecs=opus", f.MIMEType)
	assert.Equal(t, "ogg", f.Extension)
}

func TestSelectFormat_FallsBackToBaseline(t *testing.T) {
	caps := Capabilities{Encodings: []string{BaselineMIMEType}}

	f, err := SelectFormat([]string{"audio/webm;codecs=opus"}, caps)
	require.NoError(t, err)
	assert.Equal(t, BaselineMIMEType, f.MIMEType)
}

func TestSelectFormat_NormalizesMIME(t *testing.T) {
	caps := Capabilities{Encodings: []string{"audio/webm;codecs=opus"}}

	f, err := SelectFormat([]string{"Audio/WebM; codecs=opus"}, caps)
	require.NoError(t, err)
	assert.Equal(t, "libopus", f.Encoder)
}

func TestSelectFormat_NothingSupported(t *testing.T) {
	_, err := SelectFormat([]string{"audio/mp4"}, Capabilities{})
	assert.True(t, errors.Is(err, ErrUnsupported), "got %v", err)
}

func TestFormatSupportsRate(t *testing.T) {
	opus, ok := FormatForMIME("audio/webm;codecs=opus")
	require.True(t, ok)
	assert.True(t, opus.SupportsRate(48000))
	assert.False(t, opus.SupportsRate(44100))

	wav, ok := FormatForExtension(".WAV")
	require.True(t, ok)
	assert.True(t, wav.SupportsRate(44100))
}

func TestFormatForMIME_Unknown(t *testing.T) {
	_, ok := FormatForMIME("video/mp4")
	assert.False(t, ok)
}
