package assembly

import (
	"errors"
	"fmt"

	"playforge/internal/capability"
	"playforge/internal/drm"
)

// ErrNoPlayableTrack reports a presentation carrying neither a usable video
// nor a usable audio track.
var ErrNoPlayableTrack = errors.New("no playable video or audio track")

// ManifestFetchError reports a failed manifest or playlist load. It is
// terminal: nothing downstream of the fetch runs.
type ManifestFetchError struct {
	URL string
	Err error
}

func (e *ManifestFetchError) Error() string {
	return fmt.Sprintf("manifest fetch failed for %s: %v", e.URL, e.Err)
}

func (e *ManifestFetchError) Unwrap() error { return e.Err }

// FailureReason classifies a terminal assembly error for metric labels.
func FailureReason(err error) string {
	var fetchErr *ManifestFetchError
	var drmErr *drm.UnsupportedDRMError
	var decErr *capability.DecoderQueryError
	switch {
	case errors.As(err, &fetchErr):
		return "manifest_fetch"
	case errors.Is(err, ErrNoPlayableTrack):
		return "no_playable_track"
	case errors.As(err, &drmErr):
		return "unsupported_drm"
	case errors.As(err, &decErr):
		return "decoder_query"
	default:
		return "other"
	}
}
