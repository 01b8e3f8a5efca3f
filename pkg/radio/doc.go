// Package radio owns playback sessions. A Controller plays at most one
// station at a time: Play replaces whatever is playing, Stop tears the
// session down and waits for it.
package radio
