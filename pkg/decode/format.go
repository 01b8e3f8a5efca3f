package decode

import (
	"strconv"
	"strings"
)

// Format describes raw PCM audio.
type Format struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// PCM is the fixed decoder output: 44.1 kHz, signed 16-bit little-endian, stereo.
var PCM = Format{
	SampleRate:     44100,
	Channels:       2,
	BytesPerSample: 2,
}

// FrameSize returns the number of bytes in 100ms of audio.
func (f Format) FrameSize() int {
	return f.SampleRate * f.Channels * f.BytesPerSample / 10
}

// Frame is a span of PCM audio with its format.
type Frame struct {
	Data   []byte
	Format Format
}

// InputFormat returns the decoder input format hint for a stream content type.
// Only codecs the decoder cannot reliably detect on a pipe get a hint.
func InputFormat(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "audio/mpeg":
		return "mp3"
	case strings.HasPrefix(ct, "audio/aac"):
		return "aac"
	}
	return ""
}

// ffmpegArgs builds the decoder argument list reading stdin and writing PCM to stdout.
func ffmpegArgs(inputFormat string) []string {
	args := []string{"-v", "fatal", "-nostdin"}
	if inputFormat != "" {
		args = append(args, "-f", inputFormat)
	}
	return append(args,
		"-i", "-",
		"-ar", strconv.Itoa(PCM.SampleRate),
		"-ac", strconv.Itoa(PCM.Channels),
		"-acodec", "pcm_s16le",
		"-f", "s16le",
		"-",
	)
}
