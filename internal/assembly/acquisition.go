package assembly

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"playforge/internal/logger"
	"playforge/internal/metrics"
)

// State of one acquisition attempt. Transitions run in fixed order on the
// attempt's owning goroutine: Idle, FetchingManifest, ResolvingTime when the
// presentation needs it, Assembling, then Done or Failed.
type State int

const (
	StateIdle State = iota
	StateFetchingManifest
	StateResolvingTime
	StateAssembling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFetchingManifest:
		return "FetchingManifest"
	case StateResolvingTime:
		return "ResolvingTime"
	case StateAssembling:
		return "Assembling"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends an attempt.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Acquisition runs one assembly attempt. A single goroutine owns the whole
// sequence: it fetches source material, resolves the server clock when the
// presentation asks for it, and assembles the track set. The stages that wait
// on the network suspend the goroutine; everything else is synchronous.
//
// The terminal callback fires exactly once per attempt, success or error.
// Cancelling an attempt aborts whatever stage is in flight and suppresses the
// callback entirely: a cancelled attempt is abandoned, not reported.
type Acquisition struct {
	id       uuid.UUID
	builder  *Builder
	callback Callback
	logger   logger.Logger

	mu        sync.RWMutex
	state     State
	set       *TrackSet
	err       error
	finished  bool
	cancelled bool

	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewAcquisition creates an attempt over the builder. Nothing runs until
// Start.
func NewAcquisition(builder *Builder, cb Callback, log logger.Logger) *Acquisition {
	ctx, cancel := context.WithCancel(context.Background())
	return &Acquisition{
		id:       uuid.New(),
		builder:  builder,
		callback: cb,
		logger:   log,
		state:    StateIdle,
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the attempt identity.
func (a *Acquisition) ID() uuid.UUID { return a.id }

// Kind returns the builder strategy the attempt runs.
func (a *Acquisition) Kind() Kind { return a.builder.Kind() }

// SampleID returns the catalog sample the attempt assembles.
func (a *Acquisition) SampleID() string { return a.builder.sample.ID }

// State returns the attempt's current state.
func (a *Acquisition) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// TrackSet returns the assembled tracks, nil before Done.
func (a *Acquisition) TrackSet() *TrackSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set
}

// Err returns the terminal error, nil before Failed.
func (a *Acquisition) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Done is closed when the attempt reaches a terminal state or is cancelled.
func (a *Acquisition) Done() <-chan struct{} { return a.done }

// Start launches the owning goroutine. Starting twice is harmless: one
// attempt runs per acquisition, ever.
func (a *Acquisition) Start() {
	a.startOnce.Do(func() {
		a.wg.Add(1)
		go a.run()
	})
}

// Cancel aborts the attempt and waits for its goroutine to unwind. No
// callback fires after Cancel returns; an attempt that already reached a
// terminal state keeps its outcome. Cancel must not be called from inside
// the terminal callback.
func (a *Acquisition) Cancel() {
	a.mu.Lock()
	if !a.finished && !a.cancelled {
		a.cancelled = true
		close(a.done)
	}
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
}

// run is the attempt's owning goroutine: every state transition happens here,
// in order, exactly once.
func (a *Acquisition) run() {
	defer a.wg.Done()

	a.transition(StateFetchingManifest)
	fetchStart := time.Now()
	mat, err := a.builder.fetch(a.ctx)
	if err != nil {
		a.finish(nil, &ManifestFetchError{URL: a.builder.sample.URI, Err: err})
		return
	}
	metrics.ObserveManifestFetch(a.builder.Kind().String(), time.Since(fetchStart))

	// Server clock resolution is best-effort: live presentations declare a
	// wall-clock source, and when reading it fails the attempt proceeds with
	// a zero offset rather than dying over clock sync.
	var offset time.Duration
	if src, loadedAt, ok := a.builder.timeSource(mat); ok {
		a.transition(StateResolvingTime)
		offset, err = a.builder.collab.Clock.Resolve(a.ctx, src, loadedAt)
		switch {
		case err != nil && a.ctx.Err() != nil:
			// Cancelled mid-resolution; nothing to report.
			return
		case err != nil:
			a.logger.Warnf("Attempt %s: clock resolution failed, assuming zero offset: %v", a.id, err)
			metrics.IncClockResolution(false)
			offset = 0
		default:
			metrics.IncClockResolution(true)
		}
	}

	a.transition(StateAssembling)
	set, err := a.builder.assemble(a.ctx, mat, offset)
	if err != nil {
		a.finish(nil, err)
		return
	}
	a.finish(set, nil)
}

// transition moves the attempt to the next non-terminal state.
func (a *Acquisition) transition(next State) {
	a.mu.Lock()
	prev := a.state
	a.state = next
	a.mu.Unlock()
	a.logger.Debugf("Attempt %s for sample %s: %s -> %s", a.id, a.builder.sample.ID, prev, next)
}

// finish records the terminal outcome and delivers it, unless the attempt
// was cancelled first, in which case the outcome is discarded silently.
func (a *Acquisition) finish(set *TrackSet, err error) {
	a.mu.Lock()
	if a.finished || a.cancelled {
		a.mu.Unlock()
		if set != nil {
			set.Release()
		}
		return
	}
	a.finished = true
	a.set = set
	a.err = err
	if err != nil {
		a.state = StateFailed
	} else {
		a.state = StateDone
	}
	close(a.done)
	a.mu.Unlock()

	kind := a.builder.Kind().String()
	if err != nil {
		metrics.IncAssembly(kind, false, FailureReason(err))
		a.logger.Errorf("Attempt %s for sample %s failed: %v", a.id, a.builder.sample.ID, err)
		a.callback.OnError(err)
		return
	}
	metrics.IncAssembly(kind, true, "")
	a.logger.Infof("Attempt %s for sample %s assembled %s", a.id, a.builder.sample.ID, set.Summary())
	a.callback.OnTracks(set)
}
