package audio

import (
	"fmt"
	"strings"
)

// BaselineMIMEType is always available: PCM in a WAV container.
const BaselineMIMEType = "audio/wav"

// Format is a capture encoding: a MIME type and the ffmpeg encoder and
// muxer that produce it.
type Format struct {
	MIMEType    string
	Extension   string
	Encoder     string
	Muxer       string
	SampleRates []int    // supported rates, empty means any
	MuxerArgs   []string // extra args needed to stream the container to a pipe
}

// SupportsRate reports whether the encoder accepts the sample rate.
func (f Format) SupportsRate(rate int) bool {
	if len(f.SampleRates) == 0 {
		return true
	}
	for _, r := range f.SampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

var opusRates = []int{8000, 12000, 16000, 24000, 48000}

var knownFormats = []Format{
	{MIMEType: "audio/webm;codecs=opus", Extension: "webm", Encoder: "libopus", Muxer: "webm", SampleRates: opusRates},
	{MIMEType: "audio/ogg;codecs=opus", Extension: "ogg", Encoder: "libopus", Muxer: "ogg", SampleRates: opusRates},
	{MIMEType: "audio/mp4", Extension: "m4a", Encoder: "aac", Muxer: "mp4", MuxerArgs: []string{"-movflags", "frag_keyframe+empty_moov"}},
	{MIMEType: "audio/mpeg", Extension: "mp3", Encoder: "libmp3lame", Muxer: "mp3"},
	{MIMEType: BaselineMIMEType, Extension: "wav", Encoder: "pcm_s16le", Muxer: "wav"},
}

// DefaultPreferences is the descending encoding preference list.
func DefaultPreferences() []string {
	prefs := make([]string, len(knownFormats))
	for i, f := range knownFormats {
		prefs[i] = f.MIMEType
	}
	return prefs
}

// FormatForMIME looks up a known format by MIME type.
func FormatForMIME(mimeType string) (Format, bool) {
	want := normalizeMIME(mimeType)
	for _, f := range knownFormats {
		if normalizeMIME(f.MIMEType) == want {
			return f, true
		}
	}
	return Format{}, false
}

// FormatForExtension looks up a known format by file extension.
func FormatForExtension(ext string) (Format, bool) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, f := range knownFormats {
		if f.Extension == ext {
			return f, true
		}
	}
	return Format{}, false
}

// SelectFormat returns the first preferred format the stream supports. The
// baseline format is tried last even if prefs omits it.
func SelectFormat(prefs []string, caps Capabilities) (Format, error) {
	candidates := append([]string(nil), prefs...)
	hasBaseline := false
	for _, p := range candidates {
		if normalizeMIME(p) == BaselineMIMEType {
			hasBaseline = true
			break
		}
	}
	if !hasBaseline {
		candidates = append(candidates, BaselineMIMEType)
	}

	for _, mimeType := range candidates {
		f, ok := FormatForMIME(mimeType)
		if !ok {
			continue
		}
		if caps.Supports(f.MIMEType) {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("%w: no supported encoding among %s", ErrUnsupported, strings.Join(candidates, ", "))
}
