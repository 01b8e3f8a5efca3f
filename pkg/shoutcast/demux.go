package shoutcast

// demuxer splits an interleaved ICY byte stream into audio blocks and metadata
// frames. Every interval bytes of audio are followed by one length byte (in
// units of 16 bytes) and that many bytes of metadata.
type demuxer struct {
	interval int
	buf      []byte
}

func newDemuxer(interval int) *demuxer {
	return &demuxer{
		interval: interval,
		buf:      make([]byte, 0, 2*(interval+1)),
	}
}

func (d *demuxer) write(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// next returns the next audio block and its raw metadata frame, or ok=false
// until enough bytes are buffered to consume a complete cycle.
func (d *demuxer) next() (audio, meta []byte, ok bool) {
	if len(d.buf) < d.interval+1 {
		return nil, nil, false
	}

	metaLen := int(d.buf[d.interval]) * 16
	end := d.interval + 1 + metaLen
	if len(d.buf) < end {
		return nil, nil, false
	}

	audio = make([]byte, d.interval)
	copy(audio, d.buf[:d.interval])

	if metaLen > 0 {
		meta = make([]byte, metaLen)
		copy(meta, d.buf[d.interval+1:end])
	}

	// Shift the remainder down so the buffer does not grow without bound.
	d.buf = append(d.buf[:0], d.buf[end:]...)

	return audio, meta, true
}

// tail returns the audio left over when the stream ends mid cycle: at most one
// interval, never any of the trailing length byte or metadata.
func (d *demuxer) tail() []byte {
	n := min(len(d.buf), d.interval)
	if n == 0 {
		return nil
	}

	audio := make([]byte, n)
	copy(audio, d.buf[:n])
	d.buf = d.buf[:0]

	return audio
}

// buffered reports how many bytes are waiting for the next cycle.
func (d *demuxer) buffered() int {
	return len(d.buf)
}
