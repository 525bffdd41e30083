package assembly

import (
	"fmt"
	"strings"
	"time"

	"playforge/internal/drm"
	"playforge/internal/pipeline"
)

// Slot indices into a TrackSet, one per track kind.
const (
	SlotVideo = iota
	SlotAudio
	SlotText
	SlotDebug
	SlotCount
)

// SlotName returns the track kind a slot index stands for.
func SlotName(slot int) string {
	switch slot {
	case SlotVideo:
		return "video"
	case SlotAudio:
		return "audio"
	case SlotText:
		return "text"
	case SlotDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Track is one populated slot of a TrackSet: the selectable track names, the
// fan-in source feeding the slot, and the renderer stage consuming it. The
// debug slot carries a renderer only.
type Track struct {
	Names    []string
	Source   *pipeline.MultiSource
	Renderer pipeline.Renderer
}

// TrackSet is the terminal product of one successful assembly attempt. A nil
// slot means the presentation carries no such track.
type TrackSet struct {
	Tracks [SlotCount]*Track

	// Session is the license session opened during negotiation, nil for
	// unprotected content. Releasing it is the set owner's duty.
	Session *drm.Session

	// Offset is the resolved server clock offset, zero unless the
	// presentation is live and declared a usable time source.
	Offset time.Duration
}

// Start brings every renderer up. Slots sharing a source start it once.
func (ts *TrackSet) Start() {
	for _, t := range ts.Tracks {
		if t != nil && t.Renderer != nil {
			t.Renderer.Start()
		}
	}
}

// Release stops every renderer and closes the license session. The set is
// unusable afterwards.
func (ts *TrackSet) Release() {
	for _, t := range ts.Tracks {
		if t != nil && t.Renderer != nil {
			t.Renderer.Stop()
		}
	}
	if ts.Session != nil {
		ts.Session.Close()
	}
}

// Summary renders the populated slots for logging, e.g. "video(2) audio(1)".
func (ts *TrackSet) Summary() string {
	var b strings.Builder
	for slot, t := range ts.Tracks {
		if t == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(SlotName(slot))
		if len(t.Names) > 0 {
			fmt.Fprintf(&b, "(%d)", len(t.Names))
		}
	}
	if b.Len() == 0 {
		return "no tracks"
	}
	return b.String()
}

// ActiveKeys aggregates the buffer keys every populated slot still needs.
func (ts *TrackSet) ActiveKeys() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, t := range ts.Tracks {
		if t == nil || t.Source == nil {
			continue
		}
		for k := range t.Source.ActiveKeys() {
			keys[k] = struct{}{}
		}
	}
	return keys
}

// Callback receives the terminal outcome of one assembly attempt. Exactly
// one of the two methods fires, exactly once, unless the attempt is
// cancelled first, in which case neither does.
type Callback interface {
	OnTracks(*TrackSet)
	OnError(error)
}
