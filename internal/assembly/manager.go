package assembly

import (
	"errors"
	"sync"

	"playforge/internal/capability"
	"playforge/internal/config"
	"playforge/internal/drm"
	"playforge/internal/hls"
	"playforge/internal/logger"
	"playforge/internal/manifest"
	"playforge/internal/metrics"
	"playforge/internal/pipeline"
)

// ErrUnknownSample reports a sample id the catalog does not carry.
var ErrUnknownSample = errors.New("unknown catalog sample")

// ManagerOptions tune the manager's shared infrastructure.
type ManagerOptions struct {
	UserAgent     string
	LoaderWorkers int
}

// Manager owns the live acquisitions, keyed by catalog sample id, plus the
// loading infrastructure their pipelines share: one chunk loader pool and one
// buffer with an eviction worker pinned to the acquisitions' active keys.
type Manager struct {
	logger  logger.Logger
	catalog *config.Catalog

	// securityLevel is what the platform key stack reports for license
	// sessions opened on this device.
	securityLevel string
	userAgent     string

	manifests *manifest.Client
	playlists *hls.Client
	clock     manifest.TimeResolver
	probe     capability.Probe
	loader    *pipeline.Loader
	buffer    *pipeline.Buffer

	mu           sync.RWMutex
	acquisitions map[string]*Acquisition
}

// NewManager creates a manager serving the catalog against the device
// profile. The manifest client's transport is shared by the playlist client,
// the clock resolver and the chunk loader.
func NewManager(log logger.Logger, catalog *config.Catalog, profile *config.DeviceProfile, manifests *manifest.Client, opts ManagerOptions) *Manager {
	m := &Manager{
		logger:        log,
		catalog:       catalog,
		securityLevel: profile.SecurityLevel,
		userAgent:     opts.UserAgent,
		manifests:     manifests,
		playlists:     hls.NewClient(manifests.HTTPClient(), log, opts.UserAgent),
		clock:         manifest.NewTimeResolver(manifests.HTTPClient(), log),
		probe:         capability.NewStaticProbe(profile.Capabilities),
		acquisitions:  make(map[string]*Acquisition),
	}
	m.loader = pipeline.NewLoader(manifests.HTTPClient(), log, opts.UserAgent, opts.LoaderWorkers)
	m.buffer = pipeline.NewBuffer(log, m.ActiveKeys)
	return m
}

// Start brings the shared loader pool and buffer eviction worker up.
func (m *Manager) Start() {
	m.loader.Start()
	m.buffer.Start()
}

// Stop cancels every in-flight acquisition, releases every assembled track
// set, and tears the shared infrastructure down.
func (m *Manager) Stop() {
	m.logger.Infof("Stopping assembly manager and all acquisitions...")

	m.mu.Lock()
	acqs := m.acquisitions
	m.acquisitions = make(map[string]*Acquisition)
	m.mu.Unlock()

	for _, acq := range acqs {
		acq.Cancel()
		if set := acq.TrackSet(); set != nil {
			set.Release()
		}
	}
	m.loader.Stop()
	m.buffer.Stop()
	m.logger.Infof("Assembly manager stopped.")
}

// Prepare returns the acquisition for the sample, starting a fresh attempt
// when none exists. A live or completed attempt is returned as-is; a failed
// one is replaced, so retrying is just calling Prepare again.
func (m *Manager) Prepare(sampleID string) (*Acquisition, error) {
	m.mu.RLock()
	acq, found := m.acquisitions[sampleID]
	m.mu.RUnlock()

	if found && acq.State() != StateFailed {
		return acq, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if acq, found = m.acquisitions[sampleID]; found && acq.State() != StateFailed {
		return acq, nil
	}

	sample, ok := m.catalog.Sample(sampleID)
	if !ok {
		return nil, ErrUnknownSample
	}

	builder, err := NewBuilder(sample, m.collaboratorsFor(sample))
	if err != nil {
		return nil, err
	}

	acq = NewAcquisition(builder, logCallback{sample: sampleID, logger: m.logger}, m.logger)
	m.acquisitions[sampleID] = acq
	acq.Start()
	m.logger.Infof("Started acquisition %s for sample %s (%s)", acq.ID(), sample.ID, sample.Kind)
	return acq, nil
}

// Get returns the acquisition for the sample, if one exists.
func (m *Manager) Get(sampleID string) (*Acquisition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acq, found := m.acquisitions[sampleID]
	return acq, found
}

// ActiveKeys aggregates the buffer keys every assembled track set still
// needs. The buffer's eviction worker drops everything else.
func (m *Manager) ActiveKeys() map[string]struct{} {
	m.mu.RLock()
	acqs := make([]*Acquisition, 0, len(m.acquisitions))
	for _, acq := range m.acquisitions {
		acqs = append(acqs, acq)
	}
	m.mu.RUnlock()

	keys := make(map[string]struct{})
	for _, acq := range acqs {
		set := acq.TrackSet()
		if set == nil {
			continue
		}
		for k := range set.ActiveKeys() {
			keys[k] = struct{}{}
		}
	}
	return keys
}

// collaboratorsFor assembles the per-sample seams: the shared clients plus a
// license opener provisioned from the sample's keys and a stats overlay
// publishing under the sample's id. Samples without provisioned keys get a
// negotiator with no opener, which refuses protected content.
func (m *Manager) collaboratorsFor(sample config.Sample) Collaborators {
	var opener drm.Opener
	if sample.DRM != nil {
		opener = drm.NewLocalOpener(sample.DRM.Scheme, m.securityLevel, sample.DRM.Keys)
	}
	return Collaborators{
		Manifests: m.manifests,
		Playlists: m.playlists,
		Clock:     m.clock,
		Probe:     m.probe,
		DRM:       drm.NewNegotiator(opener, m.logger),
		Loader:    m.loader,
		Buffer:    m.buffer,
		Overlay:   metrics.NewStatsOverlay(sample.ID),
		Logger:    m.logger,
	}
}

// logCallback is the manager's terminal callback: outcomes land in the log,
// the track sets stay owned by their acquisition until Stop releases them.
type logCallback struct {
	sample string
	logger logger.Logger
}

func (c logCallback) OnTracks(set *TrackSet) {
	c.logger.Infof("Sample %s ready: %s", c.sample, set.Summary())
}

func (c logCallback) OnError(err error) {
	c.logger.Errorf("Sample %s assembly failed: %v", c.sample, err)
}
