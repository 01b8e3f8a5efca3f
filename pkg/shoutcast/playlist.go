package shoutcast

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// maxPlaylistSize bounds how much of a playlist response is read.
const maxPlaylistSize = 64 * 1024

// parsePLS parses a PLS playlist file and returns the first stream URL
func parsePLS(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "File") {
			continue
		}
		_, u, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		if u = strings.TrimSpace(u); u != "" {
			return u, nil
		}
	}

	return "", fmt.Errorf("no stream URL found in PLS playlist")
}

// parseM3U parses an M3U playlist file and returns the first stream URL
func parseM3U(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}

	return "", fmt.Errorf("no stream URL found in M3U playlist")
}

type playlistKind int

const (
	playlistNone playlistKind = iota
	playlistPLS
	playlistM3U
)

// detectPlaylist decides from the response headers and the request URL
// whether the body is a playlist rather than audio.
func detectPlaylist(rawURL string, h http.Header) playlistKind {
	// A stream announcing a metadata interval is never a playlist.
	if h.Get("icy-metaint") != "" {
		return playlistNone
	}

	contentType := strings.ToLower(h.Get("Content-Type"))
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}

	switch {
	case strings.Contains(contentType, "audio/x-scpls"),
		strings.Contains(contentType, "application/pls+xml"),
		ext == ".pls":
		return playlistPLS
	case strings.Contains(contentType, "audio/mpegurl"),
		strings.Contains(contentType, "audio/x-mpegurl"),
		strings.Contains(contentType, "application/vnd.apple.mpegurl"),
		ext == ".m3u", ext == ".m3u8":
		return playlistM3U
	}

	return playlistNone
}

// resolvePlaylist reads a playlist body and returns the first stream URL in it.
func resolvePlaylist(kind playlistKind, body io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxPlaylistSize))
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}
	content := string(data)

	// Servers mislabel playlists often enough that the content wins over the header.
	if strings.Contains(content, "[playlist]") || strings.Contains(content, "File1=") {
		kind = playlistPLS
	}

	switch kind {
	case playlistPLS:
		streamURL, err := parsePLS(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse PLS playlist: %w", err)
		}
		return streamURL, nil
	case playlistM3U:
		streamURL, err := parseM3U(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse M3U playlist: %w", err)
		}
		return streamURL, nil
	}

	return "", fmt.Errorf("not a playlist")
}
