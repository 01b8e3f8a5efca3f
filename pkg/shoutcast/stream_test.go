package shoutcast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ReadsHeaders(t *testing.T) {
	srv := icyServer(8192, "audio/mpeg", nil)
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "Test FM", s.Name)
	assert.Equal(t, "Ambient", s.Genre)
	assert.Equal(t, "audio/mpeg", s.ContentType)
	assert.Equal(t, 128, s.Bitrate)
	assert.Equal(t, 8192, s.MetaInt())
	assert.Equal(t, "", s.Title())
}

func TestOpen_ConnectionErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := Open(context.Background(), srv.URL)
		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, http.StatusNotFound, connErr.StatusCode)
	})

	t.Run("transport", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := Open(context.Background(), url)
		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Zero(t, connErr.StatusCode)
		assert.Error(t, connErr.Unwrap())
	})

	t.Run("bad metaint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("icy-metaint", "lots")
		}))
		defer srv.Close()

		_, err := Open(context.Background(), srv.URL)
		var connErr *ConnectionError
		assert.True(t, errors.As(err, &connErr))
	})
}

func TestBlocks_FirstBlockIsExactlyOneInterval(t *testing.T) {
	const interval = 8192
	audio := randomAudio(interval * 2)
	// Spans four sixteen byte blocks.
	meta := "StreamTitle='Opening Track';StreamUrl='http://example.com/x';"
	srv := icyServer(interval, "audio/mpeg", icyPayload(audio, interval, []string{meta}))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL, WithBlockSize(1500))
	require.NoError(t, err)

	var blocks [][]byte
	var titles []string
	for b := range s.Blocks() {
		blocks = append(blocks, b)
		titles = append(titles, s.Title())
	}

	require.Len(t, blocks, 2)
	assert.Len(t, blocks[0], interval)
	assert.Equal(t, audio[:interval], blocks[0])
	assert.Equal(t, "Opening Track", titles[0])
	assert.NoError(t, s.Err())
}

func TestBlocks_ByteExact(t *testing.T) {
	const interval = 512
	audio := randomAudio(interval * 40)
	metas := make([]string, 40)
	for i := range metas {
		if i%3 == 0 {
			metas[i] = fmt.Sprintf("StreamTitle='Track %d';", i)
		}
	}
	srv := icyServer(interval, "audio/aacp", icyPayload(audio, interval, metas))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL, WithBlockSize(777))
	require.NoError(t, err)

	assert.Equal(t, audio, bytes.Join(collect(s), nil))
	assert.Equal(t, "Track 39", s.Title())
}

func TestBlocks_ByteExactRaggedTail(t *testing.T) {
	const interval = 512
	for _, tail := range []int{1, 100, interval - 1, interval} {
		audio := randomAudio(interval*3 + tail)
		body := icyPayload(audio, interval, []string{"StreamTitle='Last';"})
		if tail == interval {
			// The server went away before the length byte.
			body = body[:len(body)-1]
		}
		srv := icyServer(interval, "audio/mpeg", body)

		s, err := Open(context.Background(), srv.URL, WithBlockSize(300))
		require.NoError(t, err)

		assert.Equal(t, audio, bytes.Join(collect(s), nil), "tail %d", tail)
		assert.NoError(t, s.Err())
		srv.Close()
	}
}

func TestBlocks_TitleUpdates(t *testing.T) {
	const interval = 64
	audio := randomAudio(interval * 6)
	metas := []string{
		"StreamTitle='First';",
		"StreamTitle='';",
		"StreamUrl='http://example.com';",
		"StreamTitle='Caf\xe9';",
		"",
		"StreamTitle='Second';",
	}
	srv := icyServer(interval, "audio/mpeg", icyPayload(audio, interval, metas))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL, WithBlockSize(interval))
	require.NoError(t, err)

	var titles []string
	for range s.Blocks() {
		titles = append(titles, s.Title())
	}

	assert.Equal(t, []string{"First", "First", "First", "First", "First", "Second"}, titles)
}

func TestBlocks_MetadataKeepsLastDistinctFrame(t *testing.T) {
	const interval = 64
	audio := randomAudio(interval * 5)
	metas := []string{
		"StreamTitle='One';StreamUrl='http://a';",
		"StreamTitle='One';StreamUrl='http://a';",
		"",
		"StreamTitle='Two';StreamUrl='http://b';Extra='x';",
	}
	srv := icyServer(interval, "audio/mpeg", icyPayload(audio, interval, metas))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL, WithBlockSize(interval))
	require.NoError(t, err)
	assert.Nil(t, s.Metadata())

	var seen []*Metadata
	for range s.Blocks() {
		seen = append(seen, s.Metadata())
	}

	require.Len(t, seen, 5)
	require.NotNil(t, seen[0])
	assert.Equal(t, "http://a", seen[0].StreamURL)
	assert.Same(t, seen[0], seen[1], "repeated frame replaced the stored one")
	assert.Same(t, seen[1], seen[2], "empty frame replaced the stored one")

	last := s.Metadata()
	assert.Equal(t, "Two", last.StreamTitle)
	assert.Equal(t, "x", last.Fields["Extra"])
}

func TestBlocks_Charset(t *testing.T) {
	const interval = 32
	audio := randomAudio(interval)
	srv := icyServer(interval, "audio/mpeg", icyPayload(audio, interval, []string{"StreamTitle='Caf\xe9';"}))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL, WithCharset("latin1"))
	require.NoError(t, err)
	collect(s)

	assert.Equal(t, "Café", s.Title())
}

func TestBlocks_PassThroughWithoutMetaint(t *testing.T) {
	body := randomAudio(10000)
	srv := icyServer(0, "application/ogg", body)
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL, WithBlockSize(4096))
	require.NoError(t, err)
	assert.Zero(t, s.MetaInt())

	blocks := collect(s)
	require.Len(t, blocks, 3)
	assert.Len(t, blocks[0], 4096)
	assert.Len(t, blocks[1], 4096)
	assert.Len(t, blocks[2], 10000-8192)
	assert.Equal(t, body, bytes.Join(blocks, nil))
	assert.Equal(t, "", s.Title())
}

func TestBlocks_StopEndsSequence(t *testing.T) {
	const interval = 256
	srv := icyServer(interval, "audio/mpeg", icyPayload(randomAudio(interval*50), interval, nil))
	defer srv.Close()

	for _, metaint := range []bool{true, false} {
		s, err := Open(context.Background(), srv.URL, WithBlockSize(interval))
		require.NoError(t, err)
		if !metaint {
			s.metaint = 0
		}

		n := 0
		for range s.Blocks() {
			n++
			if n == 2 {
				s.Stop()
			}
		}
		assert.Equal(t, 2, n)
		assert.NoError(t, s.Err())
	}
}

func TestBlocks_NotRestartable(t *testing.T) {
	const interval = 16
	srv := icyServer(interval, "audio/mpeg", icyPayload(randomAudio(interval*4), interval, nil))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Len(t, collect(s), 4)
	assert.Empty(t, collect(s))
}

func TestBlocks_CloseIsIdempotent(t *testing.T) {
	srv := icyServer(16, "audio/mpeg", nil)
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Empty(t, collect(s))
}

func TestOpen_ContextOnlyBoundsConnect(t *testing.T) {
	audio := randomAudio(4096)
	srv := icyServer(0, "audio/mpeg", audio)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s, err := Open(ctx, srv.URL)
	require.NoError(t, err)
	cancel()

	assert.Equal(t, audio, bytes.Join(collect(s), nil))
	assert.NoError(t, s.Err())
}

func TestOpen_CanceledContext(t *testing.T) {
	srv := icyServer(0, "audio/mpeg", nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, srv.URL)
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.ErrorIs(t, err, context.Canceled)
}
