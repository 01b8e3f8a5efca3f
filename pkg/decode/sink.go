package decode

// Sink accepts PCM frames for playback. A Pipeline opens its sink once per
// stream and always closes it, including on error paths.
type Sink interface {
	// Open prepares the sink for frames of the given format.
	Open(Format) error

	// Play queues or plays a frame. It may block to pace the caller.
	Play(Frame) error

	// OnFramePlayed registers a callback run after each frame has been played.
	OnFramePlayed(func(Frame))

	// Close releases the sink.
	Close() error
}
