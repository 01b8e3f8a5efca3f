package shoutcast

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

var errInvalidUTF8 = errors.New("invalid utf-8")

// Entries look like StreamTitle='Artist - Song';StreamUrl='http://x';. A quote only
// terminates a value when followed by ';' or the end of the text, so titles
// containing apostrophes survive.
var entryRe = regexp.MustCompile(`(?s)(\w+)='(.*?)'(?:;|$)`)

// Metadata is a single decoded ICY metadata frame.
type Metadata struct {
	StreamTitle string
	StreamURL   string

	// Fields holds every key='value' entry of the frame.
	Fields map[string]string
}

// NewMetadata parses the semicolon separated entries of a metadata frame.
func NewMetadata(text string) *Metadata {
	m := &Metadata{Fields: make(map[string]string)}

	for _, match := range entryRe.FindAllStringSubmatch(text, -1) {
		key, value := match[1], match[2]
		m.Fields[key] = value

		switch strings.ToLower(key) {
		case "streamtitle":
			m.StreamTitle = value
		case "streamurl":
			m.StreamURL = value
		}
	}

	return m
}

// HasTitle reports whether the frame carried a non-empty StreamTitle.
func (m *Metadata) HasTitle() bool {
	return m != nil && m.StreamTitle != ""
}

// Equals compares the parsed values of two frames.
func (m *Metadata) Equals(other *Metadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.StreamTitle == other.StreamTitle && m.StreamURL == other.StreamURL
}

// textDecoder turns raw metadata bytes into text. A nil encoding means strict UTF-8.
type textDecoder struct {
	enc encoding.Encoding
}

func newTextDecoder(charset string) (textDecoder, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return textDecoder{}, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return textDecoder{}, fmt.Errorf("unknown metadata charset %q: %w", charset, err)
	}
	return textDecoder{enc: enc}, nil
}

// decode strips the trailing NUL padding and decodes the remainder.
func (d textDecoder) decode(raw []byte) (string, error) {
	trimmed := bytes.TrimRight(raw, "\x00")

	if d.enc == nil {
		if !utf8.Valid(trimmed) {
			return "", &MetadataDecodeError{Raw: raw, Err: errInvalidUTF8}
		}
		return string(trimmed), nil
	}

	out, err := d.enc.NewDecoder().Bytes(trimmed)
	if err != nil {
		return "", &MetadataDecodeError{Raw: raw, Err: err}
	}
	return string(out), nil
}
