package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"playforge/internal/logger"
	"playforge/internal/models"
)

// Task asks the loader to fetch one chunk and deliver the outcome on Result.
type Task struct {
	Segment models.Segment
	Result  chan<- Result
}

// Result reports one finished fetch.
type Result struct {
	Segment models.Segment
	Data    []byte
	Err     error
}

// Loader fetches chunks through a bounded pool of workers, retrying
// transient failures with a short delay.
type Loader struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
	workers    int

	tasks  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLoader creates a loader with the given worker count.
func NewLoader(client *http.Client, log logger.Logger, userAgent string, workers int) *Loader {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		httpClient: client,
		logger:     log,
		userAgent:  userAgent,
		workers:    workers,
		tasks:      make(chan Task, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker pool.
func (l *Loader) Start() {
	l.logger.Infof("Starting %d chunk loader workers...", l.workers)
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
}

// Stop drains the pool and waits for in-flight fetches to finish.
func (l *Loader) Stop() {
	l.cancel()
	l.wg.Wait()
	l.logger.Infof("Chunk loader stopped.")
}

// Queue submits a task. It reports false when the loader is shutting down.
func (l *Loader) Queue(t Task) bool {
	select {
	case l.tasks <- t:
		return true
	case <-l.ctx.Done():
		return false
	}
}

func (l *Loader) worker() {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case t := <-l.tasks:
			data, err := l.fetch(t.Segment)
			select {
			case t.Result <- Result{Segment: t.Segment, Data: data, Err: err}:
			case <-l.ctx.Done():
				return
			}
		}
	}
}

// fetch downloads a single chunk with bounded retries.
func (l *Loader) fetch(segment models.Segment) ([]byte, error) {
	const maxRetries = 3
	const retryDelay = 100 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		data, retryable, err := l.fetchOnce(segment, attempt, maxRetries)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		l.logger.Warnf("%v", err)
		time.Sleep(retryDelay)
	}

	return nil, fmt.Errorf("failed to download chunk %s after %d attempts: %w", segment.Key, maxRetries, lastErr)
}

func (l *Loader) fetchOnce(segment models.Segment, attempt, maxRetries int) (data []byte, retryable bool, err error) {
	ctx, cancel := context.WithTimeout(l.ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segment.URL, nil)
	if err != nil {
		// A malformed URL will not improve with retries.
		return nil, false, fmt.Errorf("failed to create request for chunk %s: %w", segment.Key, err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	l.logger.Debugf("Downloading chunk %s (Attempt %d/%d)", segment.Key, attempt, maxRetries)
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("download attempt %d failed for chunk %s: %w", attempt, segment.Key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("download attempt %d for chunk %s received non-200 status: %d", attempt, segment.Key, resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("download attempt %d for chunk %s failed while reading body: %w", attempt, segment.Key, err)
	}

	l.logger.Debugf("Successfully downloaded chunk %s", segment.Key)
	return data, false, nil
}
