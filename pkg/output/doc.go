// Package output provides decode.Sink implementations: Oto plays PCM on the
// default sound device, Discard drops it.
package output
