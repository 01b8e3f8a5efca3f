package shoutcast

import (
	"bytes"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
)

// icyPayload interleaves audio with metadata frames every interval bytes.
// metas[i] is the text following cycle i; missing entries produce empty frames.
func icyPayload(audio []byte, interval int, metas []string) []byte {
	var out bytes.Buffer
	for i := 0; i*interval < len(audio); i++ {
		end := min((i+1)*interval, len(audio))
		out.Write(audio[i*interval : end])
		if end-i*interval < interval {
			break
		}

		var meta string
		if i < len(metas) {
			meta = metas[i]
		}
		out.Write(metaFrame([]byte(meta)))
	}
	return out.Bytes()
}

// metaFrame encodes one length-prefixed, NUL padded metadata frame.
func metaFrame(text []byte) []byte {
	blocks := (len(text) + 15) / 16
	frame := make([]byte, 1+blocks*16)
	frame[0] = byte(blocks)
	copy(frame[1:], text)
	return frame
}

func randomAudio(n int) []byte {
	r := rand.New(rand.NewSource(int64(n)))
	b := make([]byte, n)
	r.Read(b)
	return b
}

// icyServer serves body once per request with the given ICY headers.
func icyServer(metaint int, contentType string, body []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if metaint > 0 && r.Header.Get("Icy-MetaData") == "1" {
			w.Header().Set("icy-metaint", strconv.Itoa(metaint))
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("icy-name", "Test FM")
		w.Header().Set("icy-genre", "Ambient")
		w.Header().Set("icy-br", "128")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
}

func collect(s *Stream) [][]byte {
	var blocks [][]byte
	for b := range s.Blocks() {
		blocks = append(blocks, b)
	}
	return blocks
}
