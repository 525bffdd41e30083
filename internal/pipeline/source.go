package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"playforge/internal/logger"
	"playforge/internal/models"
)

// How many chunks a live representation keeps queued ahead of delivery, and
// how many recently delivered chunks stay pinned in the buffer.
const (
	feedAhead     = 3
	keepDelivered = 8
	feedInterval  = 500 * time.Millisecond
)

// Format is the subset of stream properties the render stages report.
type Format struct {
	MimeType   string
	Codecs     string
	Width      int
	Height     int
	Channels   int
	SampleRate int
	Bandwidth  int
}

// Area returns the frame area in pixels, zero when dimensions are unknown.
func (f Format) Area() int {
	return f.Width * f.Height
}

// Source is the loading source of one representation: its addressed chunk
// sequence plus the properties the renderer needs to describe it.
type Source struct {
	repID    string
	name     string
	format   Format
	segments []models.Segment
}

// NewSource creates a loading source over pre-expanded chunk addressing.
func NewSource(repID, name string, format Format, segments []models.Segment) *Source {
	return &Source{repID: repID, name: name, format: format, segments: segments}
}

// RepID returns the representation the source loads.
func (s *Source) RepID() string { return s.repID }

// Name returns the user-facing track name.
func (s *Source) Name() string { return s.name }

// Format returns the stream properties of the representation.
func (s *Source) Format() Format { return s.format }

// Len returns the number of addressed chunks, initialization included.
func (s *Source) Len() int { return len(s.segments) }

// MultiSource fans per-representation sources in behind one logical source.
// One representation is live at a time; the rest stand by for selection.
// Chunks of the live representation are queued to the shared loader and land
// in the shared buffer.
type MultiSource struct {
	kind    string
	sources []*Source
	loader  *Loader
	buffer  *Buffer
	logger  logger.Logger

	mu        sync.RWMutex
	selected  int
	cursor    []int
	inflight  int
	delivered map[string]bool
	active    map[string]struct{}
	recent    []string
	started   bool
	stopped   bool

	results chan Result
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMultiSource creates the fan-in source for one track kind. The first
// source is selected initially.
func NewMultiSource(kind string, sources []*Source, loader *Loader, buffer *Buffer, log logger.Logger) *MultiSource {
	ctx, cancel := context.WithCancel(context.Background())
	return &MultiSource{
		kind:      kind,
		sources:   sources,
		loader:    loader,
		buffer:    buffer,
		logger:    log,
		cursor:    make([]int, len(sources)),
		delivered: make(map[string]bool),
		active:    make(map[string]struct{}),
		results:   make(chan Result, 32),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Kind returns the track kind the source feeds.
func (m *MultiSource) Kind() string { return m.kind }

// Len returns the number of fanned-in sources.
func (m *MultiSource) Len() int { return len(m.sources) }

// Sources returns the fanned-in sources in selection order.
func (m *MultiSource) Sources() []*Source {
	out := make([]*Source, len(m.sources))
	copy(out, m.sources)
	return out
}

// Selected returns the index of the live representation.
func (m *MultiSource) Selected() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// SelectedSource returns the live source, nil when the fan-in is empty.
func (m *MultiSource) SelectedSource() *Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.sources) == 0 {
		return nil
	}
	return m.sources[m.selected]
}

// Select switches the live representation. Loading continues from the new
// source's last position; already buffered chunks stay pinned.
func (m *MultiSource) Select(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.sources) {
		return fmt.Errorf("source index %d out of range (have %d)", i, len(m.sources))
	}
	if i != m.selected {
		m.logger.Infof("Switching %s source from %s to %s", m.kind, m.sources[m.selected].RepID(), m.sources[i].RepID())
		m.selected = i
	}
	return nil
}

// Start begins feeding the live representation's chunks through the loader.
// Starting twice is harmless.
func (m *MultiSource) Start() {
	m.mu.Lock()
	if m.started || m.stopped || len(m.sources) == 0 {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(2)
	go m.feedLoop()
	go m.resultLoop()
}

// Stop tears the feed down and waits for its goroutines. Idempotent.
func (m *MultiSource) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// Ready reports whether the live representation's first chunk has landed in
// the buffer. A source with no chunks at all is vacuously ready.
func (m *MultiSource) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.sources) == 0 {
		return false
	}
	src := m.sources[m.selected]
	if len(src.segments) == 0 {
		return m.started
	}
	return m.delivered[src.segments[0].Key]
}

// Buffered returns how many of the fan-in's chunks have been delivered.
func (m *MultiSource) Buffered() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.delivered)
}

// ActiveKeys returns the buffer keys the fan-in still needs, pinning them
// against eviction.
func (m *MultiSource) ActiveKeys() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make(map[string]struct{}, len(m.active))
	for k := range m.active {
		keys[k] = struct{}{}
	}
	return keys
}

// feedLoop queues the live source's chunks, a bounded window at a time.
func (m *MultiSource) feedLoop() {
	defer m.wg.Done()

	m.feed()
	ticker := time.NewTicker(feedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.feed()
		}
	}
}

// feed queues chunks of the live source until the in-flight window is full.
func (m *MultiSource) feed() {
	for {
		m.mu.Lock()
		src := m.sources[m.selected]
		idx := m.cursor[m.selected]
		if m.inflight >= feedAhead || idx >= len(src.segments) {
			m.mu.Unlock()
			return
		}
		seg := src.segments[idx]
		m.cursor[m.selected] = idx + 1
		if m.delivered[seg.Key] {
			m.mu.Unlock()
			continue
		}
		m.inflight++
		m.pinLocked(seg.Key)
		m.mu.Unlock()

		if !m.loader.Queue(Task{Segment: seg, Result: m.results}) {
			// Loader is shutting down; the feed will be cancelled shortly.
			m.mu.Lock()
			m.inflight--
			m.mu.Unlock()
			return
		}
	}
}

// resultLoop lands finished fetches in the shared buffer.
func (m *MultiSource) resultLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case res := <-m.results:
			m.mu.Lock()
			m.inflight--
			if res.Err != nil {
				m.mu.Unlock()
				m.logger.Warnf("Chunk %s failed to load: %v", res.Segment.Key, res.Err)
				continue
			}
			m.delivered[res.Segment.Key] = true
			m.mu.Unlock()
			m.buffer.Set(res.Segment.Key, res.Data)
		}
	}
}

// pinLocked records a key as needed and unpins the oldest media chunks once
// the window is exceeded. Initialization chunks stay pinned for the fan-in's
// lifetime. Callers hold m.mu.
func (m *MultiSource) pinLocked(key string) {
	m.active[key] = struct{}{}
	if isInitKey(key) {
		return
	}
	m.recent = append(m.recent, key)
	for len(m.recent) > keepDelivered {
		old := m.recent[0]
		m.recent = m.recent[1:]
		delete(m.active, old)
	}
}

func isInitKey(key string) bool {
	return len(key) >= 5 && key[len(key)-5:] == "/init"
}
