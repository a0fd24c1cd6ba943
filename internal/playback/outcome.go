package playback

import (
	"errors"
	"fmt"

	"github.com/ibnnafaa/nafaa/internal/locator"
)

// ErrGestureDisarmed is returned when resuming a gesture that already fired
// or was superseded by a newer play request.
var ErrGestureDisarmed = errors.New("gesture is no longer armed")

// Status is the result kind of a play request.
type Status int

const (
	// PlayingFromCache means the cached payload is playing.
	PlayingFromCache Status = iota

	// PlayingFromNetwork means the audio streams from the network.
	PlayingFromNetwork

	// AwaitingUserGesture means playback waits for the next interaction.
	AwaitingUserGesture

	// Failed means the audio could not be played.
	Failed
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case PlayingFromCache:
		return "playing from cache"
	case PlayingFromNetwork:
		return "playing from network"
	case AwaitingUserGesture:
		return "awaiting user gesture"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of a play request or of a resumed gesture.
type Outcome struct {
	Status  Status
	Key     locator.Key
	Err     error    // set when Status is Failed
	Gesture *Gesture // set when Status is AwaitingUserGesture
}

// String returns a status message for the outcome.
func (o Outcome) String() string {
	if o.Status == Failed && o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Status, o.Err)
	}
	return o.Status.String()
}

// Playing reports whether audio started.
func (o Outcome) Playing() bool {
	return o.Status == PlayingFromCache || o.Status == PlayingFromNetwork
}
