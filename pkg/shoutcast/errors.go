package shoutcast

import (
	"fmt"
)

// ConnectionError is returned by Open when the stream cannot be established.
type ConnectionError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connect %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// MetadataDecodeError reports a metadata frame whose text could not be decoded.
// The demuxer recovers from it by discarding the frame.
type MetadataDecodeError struct {
	Raw []byte
	Err error
}

func (e *MetadataDecodeError) Error() string {
	return fmt.Sprintf("decode metadata (%d bytes): %v", len(e.Raw), e.Err)
}

func (e *MetadataDecodeError) Unwrap() error {
	return e.Err
}
