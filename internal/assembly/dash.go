package assembly

import (
	"context"
	"fmt"
	"time"

	"playforge/internal/capability"
	"playforge/internal/drm"
	"playforge/internal/manifest"
	"playforge/internal/models"
	"playforge/internal/pipeline"
	"playforge/internal/selection"
)

// assembleDash builds the track set for an adaptive DASH-like presentation.
// Stages run in fixed order: track existence, security negotiation, decoder
// budget, representation selection, pipeline construction. The first failing
// stage aborts the attempt.
func (b *Builder) assembleDash(ctx context.Context, fr *manifest.FetchResult, offset time.Duration) (set *TrackSet, err error) {
	mpd := fr.MPD
	if len(mpd.Periods) == 0 {
		return nil, ErrNoPlayableTrack
	}
	period := &mpd.Periods[0]

	videoSet := firstSetOfKind(period, manifest.KindVideo)
	audioSet := firstSetOfKind(period, manifest.KindAudio)
	if videoSet == nil && audioSet == nil {
		return nil, ErrNoPlayableTrack
	}

	protected := false
	var schemes []string
	for _, as := range []*manifest.AdaptationSet{videoSet, audioSet} {
		if as != nil && as.HasContentProtection() {
			protected = true
			schemes = append(schemes, as.ProtectionSchemes()...)
		}
	}

	session, tier, err := b.collab.DRM.Negotiate(ctx, protected, schemes)
	if err != nil {
		return nil, err
	}
	defer func() {
		// A failed attempt has no owner to release the session.
		if err != nil && session != nil {
			session.Close()
		}
	}()

	filterHD := protected && tier != drm.Tier1

	maxArea, err := b.collab.Probe.MaxDecodableArea(capability.CodecH264)
	if err != nil {
		return nil, err
	}

	videoIndices := selection.SelectVideo(videoSet, selection.VideoOptions{
		FilterHD: filterHD,
		MaxArea:  maxArea,
	})
	audioSel := selection.SelectAudio(audioSet, b.collab.Probe.PassthroughEncodings())
	textTracks := selection.SelectText(period)

	if len(videoIndices) == 0 && len(audioSel.Indices) == 0 {
		return nil, ErrNoPlayableTrack
	}

	set = &TrackSet{Session: session, Offset: offset}

	if len(videoIndices) > 0 {
		var names []string
		var sources []*pipeline.Source
		for _, idx := range videoIndices {
			rep := &videoSet.Representations[idx]
			name := fmt.Sprintf("%s (%dx%d)", rep.ID, rep.Width, rep.Height)
			src, err := b.representationSource(fr.FinalURL, period, videoSet, rep, name)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
			sources = append(sources, src)
		}
		multi := pipeline.NewMultiSource("video", sources, b.collab.Loader, b.collab.Buffer, b.collab.Logger)
		set.Tracks[SlotVideo] = &Track{
			Names:    names,
			Source:   multi,
			Renderer: pipeline.NewVideoRenderer(multi, b.collab.Probe.HasAdaptiveDecoder(capability.CodecH264)),
		}
	}

	if len(audioSel.Indices) > 0 {
		var sources []*pipeline.Source
		for i, idx := range audioSel.Indices {
			rep := &audioSet.Representations[idx]
			src, err := b.representationSource(fr.FinalURL, period, audioSet, rep, audioSel.Names[i])
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
		multi := pipeline.NewMultiSource("audio", sources, b.collab.Loader, b.collab.Buffer, b.collab.Logger)
		set.Tracks[SlotAudio] = &Track{
			Names:    audioSel.Names,
			Source:   multi,
			Renderer: pipeline.NewAudioRenderer(multi, audioSel.Choice.Passthrough, string(audioSel.Choice.Encoding)),
		}
	}

	if len(textTracks) > 0 {
		var names []string
		var sources []*pipeline.Source
		for _, tt := range textTracks {
			ts := &period.Sets[tt.SetIndex]
			rep := &ts.Representations[tt.RepIndex]
			src, err := b.representationSource(fr.FinalURL, period, ts, rep, tt.Name)
			if err != nil {
				return nil, err
			}
			names = append(names, tt.Name)
			sources = append(sources, src)
		}
		multi := pipeline.NewMultiSource("text", sources, b.collab.Loader, b.collab.Buffer, b.collab.Logger)
		set.Tracks[SlotText] = &Track{
			Names:    names,
			Source:   multi,
			Renderer: pipeline.NewTextRenderer(multi),
		}
	}

	b.attachOverlay(set)
	return set, nil
}

// representationSource expands one representation's addressing into a
// loading source.
func (b *Builder) representationSource(manifestURL string, period *manifest.Period, set *manifest.AdaptationSet, rep *manifest.Representation, name string) (*pipeline.Source, error) {
	var segments []models.Segment

	init, ok, err := manifest.BuildInitSegment(manifestURL, period, set, rep, b.sample.ID)
	if err != nil {
		return nil, fmt.Errorf("representation %s: %w", rep.ID, err)
	}
	if ok {
		segments = append(segments, init)
	}

	media, err := manifest.ExpandTimeline(manifestURL, period, set, rep, b.sample.ID)
	if err != nil {
		return nil, fmt.Errorf("representation %s: %w", rep.ID, err)
	}
	segments = append(segments, media...)

	format := pipeline.Format{
		MimeType:   set.EffectiveMimeType(rep),
		Codecs:     rep.Codecs,
		Width:      rep.Width,
		Height:     rep.Height,
		Channels:   rep.ChannelCount(),
		SampleRate: rep.AudioSamplingRate,
		Bandwidth:  rep.Bandwidth,
	}
	return pipeline.NewSource(rep.ID, name, format, segments), nil
}

// firstSetOfKind returns the first adaptation set carrying the kind, nil
// when the period has none.
func firstSetOfKind(period *manifest.Period, kind manifest.TrackKind) *manifest.AdaptationSet {
	for i := range period.Sets {
		if period.Sets[i].Kind() == kind {
			return &period.Sets[i]
		}
	}
	return nil
}
