package assembly

import (
	"fmt"

	"playforge/internal/models"
	"playforge/internal/pipeline"
)

// assembleProgressive builds the track set for a single-file source. The
// whole file is one muxed stream: video and audio share it, nothing is
// fetched up front, and no capability or security question arises.
func (b *Builder) assembleProgressive() (*TrackSet, error) {
	segments := []models.Segment{{
		URL:   b.sample.URI,
		Key:   fmt.Sprintf("%s/media/0", b.sample.ID),
		RepID: "media",
	}}
	source := pipeline.NewSource("media", b.sample.Name, pipeline.Format{}, segments)
	multi := pipeline.NewMultiSource("muxed", []*pipeline.Source{source}, b.collab.Loader, b.collab.Buffer, b.collab.Logger)

	set := &TrackSet{}
	set.Tracks[SlotVideo] = &Track{
		Source:   multi,
		Renderer: pipeline.NewVideoRenderer(multi, false),
	}
	set.Tracks[SlotAudio] = &Track{
		Source:   multi,
		Renderer: pipeline.NewAudioRenderer(multi, false, ""),
	}

	b.attachOverlay(set)
	return set, nil
}
