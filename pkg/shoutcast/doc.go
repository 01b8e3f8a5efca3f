// Package shoutcast opens ICY/Shoutcast HTTP streams and demuxes the interleaved metadata.
//
// It started from github.com/romantomjak/shoutcast and was reworked for live playback:
//   - Playlist resolution: .pls and .m3u URLs are resolved to the actual stream URL
//   - Audio is exposed as a lazy sequence of pure audio blocks with metadata stripped
//   - The current StreamTitle is kept live while the sequence is consumed
//   - Cooperative stop flag plus Close for unblocking an in-flight read
package shoutcast
