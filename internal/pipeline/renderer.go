package pipeline

import (
	"context"
	"sync"
	"time"

	"playforge/internal/logger"
)

// Renderer is one decode/render stage of an assembled pipeline. Start and
// Stop bound its lifetime; Ready reports whether the stage has enough data
// to begin playback.
type Renderer interface {
	Start()
	Stop()
	Ready() bool
}

// Overlay receives read-only samples of the video stage. Implementations
// must not block.
type Overlay interface {
	ObserveVideo(format Format, ready bool, buffered int)
}

// VideoRenderer is the decode/render stage for the video track.
type VideoRenderer struct {
	source   *MultiSource
	adaptive bool
}

// NewVideoRenderer wraps the video fan-in source. adaptive marks platforms
// whose decoder switches representations without re-initialization.
func NewVideoRenderer(source *MultiSource, adaptive bool) *VideoRenderer {
	return &VideoRenderer{source: source, adaptive: adaptive}
}

func (r *VideoRenderer) Start()      { r.source.Start() }
func (r *VideoRenderer) Stop()       { r.source.Stop() }
func (r *VideoRenderer) Ready() bool { return r.source.Ready() }

// Adaptive reports whether representation switches are seamless on this
// platform.
func (r *VideoRenderer) Adaptive() bool { return r.adaptive }

// Format returns the stream properties of the live representation.
func (r *VideoRenderer) Format() Format {
	src := r.source.SelectedSource()
	if src == nil {
		return Format{}
	}
	return src.Format()
}

// Buffered returns how many video chunks have been delivered.
func (r *VideoRenderer) Buffered() int { return r.source.Buffered() }

// AudioRenderer is the decode/output stage for the audio track.
type AudioRenderer struct {
	source *MultiSource
	// passthrough is true when the compressed stream goes to the output
	// directly; encoding names the wire encoding in that case.
	passthrough bool
	encoding    string
}

// NewAudioRenderer wraps the audio fan-in source with its delivery mode.
func NewAudioRenderer(source *MultiSource, passthrough bool, encoding string) *AudioRenderer {
	return &AudioRenderer{source: source, passthrough: passthrough, encoding: encoding}
}

func (r *AudioRenderer) Start()      { r.source.Start() }
func (r *AudioRenderer) Stop()       { r.source.Stop() }
func (r *AudioRenderer) Ready() bool { return r.source.Ready() }

// Passthrough reports whether the stage hands compressed audio to the output.
func (r *AudioRenderer) Passthrough() bool { return r.passthrough }

// Encoding returns the selected wire encoding, empty on the decode path.
func (r *AudioRenderer) Encoding() string { return r.encoding }

// TextRenderer is the parse/display stage for subtitle tracks.
type TextRenderer struct {
	source *MultiSource
}

// NewTextRenderer wraps the text fan-in source.
func NewTextRenderer(source *MultiSource) *TextRenderer {
	return &TextRenderer{source: source}
}

func (r *TextRenderer) Start()      { r.source.Start() }
func (r *TextRenderer) Stop()       { r.source.Stop() }
func (r *TextRenderer) Ready() bool { return r.source.Ready() }

// StatsRenderer samples the video stage read-only and publishes what it sees
// through the overlay. It never fails and never influences playback.
type StatsRenderer struct {
	video   *VideoRenderer
	overlay Overlay
	logger  logger.Logger

	mu      sync.Mutex
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatsRenderer attaches an overlay to the video stage.
func NewStatsRenderer(video *VideoRenderer, overlay Overlay, log logger.Logger) *StatsRenderer {
	ctx, cancel := context.WithCancel(context.Background())
	return &StatsRenderer{video: video, overlay: overlay, logger: log, ctx: ctx, cancel: cancel}
}

// Start begins periodic sampling. Starting twice is harmless.
func (r *StatsRenderer) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.sampleLoop()
}

// Stop ends sampling and waits for the sampler to exit.
func (r *StatsRenderer) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Ready is always true: the overlay produces no independent failure.
func (r *StatsRenderer) Ready() bool { return true }

func (r *StatsRenderer) sampleLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.overlay.ObserveVideo(r.video.Format(), r.video.Ready(), r.video.Buffered())
		}
	}
}
