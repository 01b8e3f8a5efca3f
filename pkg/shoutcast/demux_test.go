package shoutcast

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemuxer_StripsEveryFrame(t *testing.T) {
	const interval = 1000
	audio := randomAudio(interval * 6)
	metas := []string{
		"StreamTitle='One';",
		"",
		"StreamTitle='A much longer title that spans several sixteen byte blocks';StreamUrl='';",
		"",
		"StreamTitle='Two';",
		"",
	}
	payload := icyPayload(audio, interval, metas)

	for _, chunkSize := range []int{1, 7, 999, 1001, 4096, len(payload)} {
		d := newDemuxer(interval)
		var got bytes.Buffer
		var frames [][]byte

		for off := 0; off < len(payload); off += chunkSize {
			d.write(payload[off:min(off+chunkSize, len(payload))])
			for {
				block, meta, ok := d.next()
				if !ok {
					break
				}
				require.Len(t, block, interval)
				got.Write(block)
				if meta != nil {
					frames = append(frames, meta)
				}
			}
		}

		assert.Equal(t, audio, got.Bytes(), "chunk size %d", chunkSize)
		assert.Len(t, frames, 3, "chunk size %d", chunkSize)
		assert.Zero(t, d.buffered(), "chunk size %d", chunkSize)
	}
}

func TestDemuxer_WaitsForCompleteFrame(t *testing.T) {
	d := newDemuxer(4)
	d.write([]byte{1, 2, 3, 4})

	_, _, ok := d.next()
	assert.False(t, ok, "length byte not buffered yet")

	frame := metaFrame([]byte("StreamTitle='x';"))
	d.write(frame[:5])
	_, _, ok = d.next()
	assert.False(t, ok, "metadata only partially buffered")

	d.write(frame[5:])
	d.write([]byte{9})
	block, meta, ok := d.next()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, block)
	assert.Equal(t, frame[1:], meta)
	assert.Equal(t, 1, d.buffered())
}

func TestDemuxer_Tail(t *testing.T) {
	d := newDemuxer(4)
	assert.Nil(t, d.tail())

	d.write([]byte{1, 2})
	assert.Equal(t, []byte{1, 2}, d.tail())
	assert.Zero(t, d.buffered())

	// A full interval whose length byte never arrived.
	d.write([]byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3, 4}, d.tail())

	// Metadata cut short after the length byte is not audio.
	d.write([]byte{1, 2, 3, 4, 1, 'S', 't'})
	_, _, ok := d.next()
	require.False(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, d.tail())
}
