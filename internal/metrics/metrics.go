package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"playforge/internal/pipeline"
)

var (
	// AssemblyTotal tracks the outcome of pipeline assembly attempts.
	AssemblyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playforge_assembly_total",
		Help: "Total number of pipeline assembly attempts by kind, result and reason",
	}, []string{"kind", "result", "reason"})

	// ManifestFetchDuration tracks how long the manifest load stage takes.
	ManifestFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playforge_manifest_fetch_duration_seconds",
		Help:    "Time taken to fetch and parse the presentation manifest",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
	}, []string{"kind"})

	// ClockResolutionTotal tracks server clock resolution attempts. Failures
	// are recovered locally, so this is the only place they stay visible.
	ClockResolutionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playforge_clock_resolution_total",
		Help: "Total number of server clock resolution attempts by outcome",
	}, []string{"outcome"})

	// VideoBufferedChunks reports how many video chunks a sample's pipeline
	// has delivered.
	VideoBufferedChunks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playforge_video_buffered_chunks",
		Help: "Delivered video chunks per sample",
	}, []string{"sample"})

	// VideoFrameArea reports the frame area of the representation in use.
	VideoFrameArea = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playforge_video_frame_area_pixels",
		Help: "Frame area of the live video representation per sample",
	}, []string{"sample"})

	// VideoReady reports whether the video stage is playback-ready.
	VideoReady = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playforge_video_ready",
		Help: "Whether the video stage holds enough data to play (0 or 1)",
	}, []string{"sample"})
)

// IncAssembly records one assembly outcome. reason is empty on success.
func IncAssembly(kind string, success bool, reason string) {
	result := "failure"
	if success {
		result = "success"
		reason = ""
	}
	AssemblyTotal.WithLabelValues(kind, result, reason).Inc()
}

// ObserveManifestFetch records the manifest load stage duration.
func ObserveManifestFetch(kind string, d time.Duration) {
	ManifestFetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncClockResolution records a server clock resolution attempt.
func IncClockResolution(ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	ClockResolutionTotal.WithLabelValues(outcome).Inc()
}

// StatsOverlay publishes read-only video stage samples for one catalog
// sample. It satisfies pipeline.Overlay.
type StatsOverlay struct {
	sample string
}

// NewStatsOverlay creates the overlay for a sample's debug slot.
func NewStatsOverlay(sampleID string) *StatsOverlay {
	return &StatsOverlay{sample: sampleID}
}

// ObserveVideo records one sample of the video stage.
func (o *StatsOverlay) ObserveVideo(format pipeline.Format, ready bool, buffered int) {
	VideoBufferedChunks.WithLabelValues(o.sample).Set(float64(buffered))
	VideoFrameArea.WithLabelValues(o.sample).Set(float64(format.Area()))
	readyVal := 0.0
	if ready {
		readyVal = 1.0
	}
	VideoReady.WithLabelValues(o.sample).Set(readyVal)
}
