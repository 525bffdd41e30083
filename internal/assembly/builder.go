package assembly

import (
	"context"
	"fmt"
	"time"

	"playforge/internal/capability"
	"playforge/internal/config"
	"playforge/internal/drm"
	"playforge/internal/hls"
	"playforge/internal/logger"
	"playforge/internal/manifest"
	"playforge/internal/pipeline"
)

// Kind tags the assembly strategy a source needs.
type Kind int

const (
	// KindProgressive is a single-file source: no manifest, one muxed stream.
	KindProgressive Kind = iota
	// KindDash is an adaptive presentation described by an MPD manifest.
	KindDash
	// KindHLS is an adaptive presentation described by a master playlist.
	KindHLS
)

func (k Kind) String() string {
	switch k {
	case KindProgressive:
		return config.KindProgressive
	case KindDash:
		return config.KindDash
	case KindHLS:
		return config.KindHLS
	default:
		return "unknown"
	}
}

// ParseKind maps a catalog kind string to a strategy tag.
func ParseKind(s string) (Kind, error) {
	switch s {
	case config.KindProgressive:
		return KindProgressive, nil
	case config.KindDash:
		return KindDash, nil
	case config.KindHLS:
		return KindHLS, nil
	default:
		return 0, fmt.Errorf("unknown source kind %q", s)
	}
}

// Collaborators are the external seams assembly consults. None of them are
// owned here: the loader and buffer belong to the daemon, the probe and DRM
// negotiator stand in for the platform.
type Collaborators struct {
	Manifests *manifest.Client
	Playlists *hls.Client
	Clock     manifest.TimeResolver
	Probe     capability.Probe
	DRM       *drm.Negotiator
	Loader    *pipeline.Loader
	Buffer    *pipeline.Buffer
	// Overlay, when non-nil, is attached read-only to the video stage and
	// fills the debug slot.
	Overlay pipeline.Overlay
	Logger  logger.Logger
}

// material is what the fetch stage hands to assembly. At most one union
// field is set, matching the builder's tag; progressive sources carry
// nothing beyond their configured URI.
type material struct {
	manifest *manifest.FetchResult
	master   *hls.FetchResult
}

// Builder turns one catalog sample into a TrackSet. It is a tagged union
// over the three strategies: the tag decides how source material is fetched
// and how it becomes pipelines, behind one common set of stage methods.
type Builder struct {
	kind   Kind
	sample config.Sample
	collab Collaborators
}

// NewBuilder creates the builder for a sample, picking the strategy from the
// sample's kind.
func NewBuilder(sample config.Sample, collab Collaborators) (*Builder, error) {
	kind, err := ParseKind(sample.Kind)
	if err != nil {
		return nil, err
	}
	return &Builder{kind: kind, sample: sample, collab: collab}, nil
}

// Kind returns the strategy tag.
func (b *Builder) Kind() Kind { return b.kind }

// fetch runs the strategy's acquisition step: the MPD load for DASH, the
// master playlist load for HLS, nothing for progressive sources.
func (b *Builder) fetch(ctx context.Context) (material, error) {
	switch b.kind {
	case KindDash:
		fr, err := b.collab.Manifests.Fetch(ctx, b.sample.URI)
		if err != nil {
			return material{}, err
		}
		return material{manifest: fr}, nil
	case KindHLS:
		fr, err := b.collab.Playlists.FetchMaster(ctx, b.sample.URI)
		if err != nil {
			return material{}, err
		}
		return material{master: fr}, nil
	default:
		return material{}, nil
	}
}

// timeSource returns the wall-clock descriptor to resolve before assembly,
// or ok=false when the presentation does not need clock synchronization.
// Only live DASH presentations declaring a source qualify.
func (b *Builder) timeSource(mat material) (src manifest.UTCTiming, loadedAt time.Time, ok bool) {
	if b.kind != KindDash || mat.manifest == nil {
		return manifest.UTCTiming{}, time.Time{}, false
	}
	mpd := mat.manifest.MPD
	if !mpd.IsDynamic() {
		return manifest.UTCTiming{}, time.Time{}, false
	}
	ts := mpd.TimeSource()
	if ts == nil {
		return manifest.UTCTiming{}, time.Time{}, false
	}
	return *ts, mat.manifest.LoadedAt, true
}

// assemble turns fetched material into the terminal track set.
func (b *Builder) assemble(ctx context.Context, mat material, offset time.Duration) (*TrackSet, error) {
	switch b.kind {
	case KindDash:
		return b.assembleDash(ctx, mat.manifest, offset)
	case KindHLS:
		return b.assembleHLS(mat.master)
	default:
		return b.assembleProgressive()
	}
}

// attachOverlay fills the debug slot when an overlay collaborator was
// supplied and a video stage exists to sample.
func (b *Builder) attachOverlay(set *TrackSet) {
	if b.collab.Overlay == nil || set.Tracks[SlotVideo] == nil {
		return
	}
	video, ok := set.Tracks[SlotVideo].Renderer.(*pipeline.VideoRenderer)
	if !ok {
		return
	}
	set.Tracks[SlotDebug] = &Track{
		Renderer: pipeline.NewStatsRenderer(video, b.collab.Overlay, b.collab.Logger),
	}
}
