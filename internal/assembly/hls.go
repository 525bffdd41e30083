package assembly

import (
	"fmt"

	"playforge/internal/capability"
	"playforge/internal/hls"
	"playforge/internal/models"
	"playforge/internal/pipeline"
)

// assembleHLS builds the track set for an adaptive HLS-like presentation.
// Variants are muxed audio/video streams, so the video and audio slots share
// one fan-in source; there is no clock resolution and no license session on
// this path.
func (b *Builder) assembleHLS(fr *hls.FetchResult) (*TrackSet, error) {
	maxArea, err := b.collab.Probe.MaxDecodableArea(capability.CodecH264)
	if err != nil {
		return nil, err
	}

	var names []string
	var sources []*pipeline.Source
	for i, v := range fr.Master.Variants {
		// Variants the device cannot decode are dropped; unknown dimensions
		// pass, matching the video selection rule.
		if v.Width*v.Height > maxArea {
			continue
		}

		uri, err := hls.ResolveVariantURI(fr.FinalURL, v)
		if err != nil {
			return nil, err
		}

		repID := fmt.Sprintf("variant-%d", i)
		name := v.Name()
		format := pipeline.Format{
			Width:     v.Width,
			Height:    v.Height,
			Bandwidth: v.Bandwidth,
		}
		if len(v.Codecs) > 0 {
			format.Codecs = v.Codecs[0]
		}
		segments := []models.Segment{{
			URL:   uri,
			Key:   fmt.Sprintf("%s/%s/media", b.sample.ID, repID),
			RepID: repID,
		}}
		names = append(names, name)
		sources = append(sources, pipeline.NewSource(repID, name, format, segments))
	}

	if len(sources) == 0 {
		return nil, ErrNoPlayableTrack
	}

	multi := pipeline.NewMultiSource("muxed", sources, b.collab.Loader, b.collab.Buffer, b.collab.Logger)
	set := &TrackSet{}
	set.Tracks[SlotVideo] = &Track{
		Names:    names,
		Source:   multi,
		Renderer: pipeline.NewVideoRenderer(multi, b.collab.Probe.HasAdaptiveDecoder(capability.CodecH264)),
	}
	// Audio rides the same muxed source; it has no tracks of its own to name.
	set.Tracks[SlotAudio] = &Track{
		Source:   multi,
		Renderer: pipeline.NewAudioRenderer(multi, false, ""),
	}

	b.attachOverlay(set)
	return set, nil
}
