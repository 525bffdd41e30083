package pipeline

import (
	"context"
	"sync"
	"time"

	"playforge/internal/logger"
)

// ActiveKeysProvider reports the set of chunk keys that must survive
// eviction, usually aggregated across every live pipeline.
type ActiveKeysProvider func() map[string]struct{}

// Buffer is a thread-safe, in-memory chunk store shared by all loading
// sources, cleaned by a background eviction worker.
type Buffer struct {
	mutex    sync.RWMutex
	chunks   map[string][]byte
	logger   logger.Logger
	provider ActiveKeysProvider

	// Control
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBuffer creates and returns a new Buffer.
func NewBuffer(log logger.Logger, provider ActiveKeysProvider) *Buffer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Buffer{
		chunks:   make(map[string][]byte),
		logger:   log,
		provider: provider,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the background eviction worker.
func (b *Buffer) Start() {
	b.logger.Infof("Starting chunk buffer eviction worker...")
	go b.evictionWorker()
}

// Stop gracefully shuts down the eviction worker.
func (b *Buffer) Stop() {
	b.logger.Infof("Stopping chunk buffer eviction worker...")
	b.cancel()
}

// Set stores a chunk.
func (b *Buffer) Set(key string, data []byte) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.chunks[key] = data
	b.logger.Debugf("Buffered chunk: %s, size: %d bytes", key, len(data))
}

// Get retrieves a chunk.
func (b *Buffer) Get(key string) ([]byte, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	data, found := b.chunks[key]
	return data, found
}

// Len returns the number of buffered chunks.
func (b *Buffer) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.chunks)
}

// evictionWorker runs in the background to drop chunks no pipeline needs.
func (b *Buffer) evictionWorker() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			b.logger.Infof("Eviction worker stopped.")
			return
		case <-ticker.C:
			b.Evict()
		}
	}
}

// Evict drops every chunk the provider no longer reports as active. The
// worker calls it on a timer; tests call it directly.
func (b *Buffer) Evict() {
	b.logger.Debugf("Running buffer eviction...")
	activeKeys := b.provider()

	b.mutex.Lock()
	defer b.mutex.Unlock()

	evicted := 0
	for key := range b.chunks {
		if _, isActive := activeKeys[key]; !isActive {
			delete(b.chunks, key)
			evicted++
		}
	}

	if evicted > 0 {
		b.logger.Infof("Evicted %d chunks from buffer. Current buffer size: %d chunks.", evicted, len(b.chunks))
	} else {
		b.logger.Debugf("No chunks to evict. Current buffer size: %d chunks.", len(b.chunks))
	}
}
