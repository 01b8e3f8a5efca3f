// Package decode transcodes compressed stream audio to PCM through an external
// decoder process and drives playback of the result.
//
// A Pipeline runs two goroutines per stream. The driver (the caller of Run)
// writes audio blocks into the decoder's stdin; the playback goroutine reads
// fixed size PCM frames from its stdout and hands them to a Sink. The OS pipe
// between them is the only shared state and provides the backpressure.
package decode
