package radio

import "fmt"

// OutOfRangeError is returned for a station index outside the station list.
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("station index %d out of range [0, %d)", e.Index, e.Len)
}
