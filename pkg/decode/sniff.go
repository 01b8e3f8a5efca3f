package decode

import "bytes"

// sniffFormat guesses the decoder input format from the first bytes of a
// stream whose content type gave no hint. It looks for the first MPEG audio
// or ADTS frame header and returns "" for containers the decoder probes on
// its own, or when nothing plausible is found.
func sniffFormat(data []byte) string {
	if bytes.HasPrefix(data, []byte("OggS")) || bytes.HasPrefix(data, []byte("fLaC")) {
		return ""
	}

	i := findFrameSync(data)
	if i < 0 || i+4 > len(data) {
		return ""
	}

	h := data[i : i+4]
	layer := (h[1] >> 1) & 0x03
	if layer == 0 {
		// ADTS: sampling frequency index in bits 2-5 of the third byte.
		if (h[2]>>2)&0x0F < 13 {
			return "aac"
		}
		return ""
	}

	version := (h[1] >> 3) & 0x03
	bitrate := h[2] >> 4
	sampleRate := (h[2] >> 2) & 0x03
	if version == 0x01 || bitrate == 0x0F || sampleRate == 0x03 {
		return ""
	}
	return "mp3"
}

// findFrameSync finds the position of the first frame sync word: 0xFF
// followed by a byte with the top three bits set. Returns -1 if not found.
func findFrameSync(data []byte) int {
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}
