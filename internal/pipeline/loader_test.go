package pipeline_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"playforge/internal/logger"
	"playforge/internal/models"
	"playforge/internal/pipeline"
)

// TestLoader_Success verifies a successful download on the first attempt.
func TestLoader_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "chunk data")
	}))
	defer server.Close()

	loader := pipeline.NewLoader(server.Client(), logger.Nop(), "test-agent", 2)
	loader.Start()
	defer loader.Stop()

	results := make(chan pipeline.Result, 1)
	segment := models.Segment{URL: server.URL, Key: "ch/v/1"}

	assert.True(t, loader.Queue(pipeline.Task{Segment: segment, Result: results}))

	result := <-results
	assert.NoError(t, result.Err)
	assert.Equal(t, "chunk data", string(result.Data))
	assert.Equal(t, "ch/v/1", result.Segment.Key)
}

// TestLoader_RetryThenSuccess verifies that the loader retries on failure and
// succeeds.
func TestLoader_RetryThenSuccess(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&requestCount, 1)
		if count < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "final chunk data")
	}))
	defer server.Close()

	loader := pipeline.NewLoader(server.Client(), logger.Nop(), "test-agent", 1)
	loader.Start()
	defer loader.Stop()

	results := make(chan pipeline.Result, 1)
	segment := models.Segment{URL: server.URL, Key: "ch/v/2"}

	loader.Queue(pipeline.Task{Segment: segment, Result: results})

	result := <-results
	assert.NoError(t, result.Err)
	assert.Equal(t, "final chunk data", string(result.Data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount), "Expected exactly 3 attempts")
}

// TestLoader_FailureAfterRetries verifies that the loader gives up after all
// retries.
func TestLoader_FailureAfterRetries(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	loader := pipeline.NewLoader(server.Client(), logger.Nop(), "test-agent", 1)
	loader.Start()
	defer loader.Stop()

	results := make(chan pipeline.Result, 1)
	segment := models.Segment{URL: server.URL, Key: "ch/v/3"}

	loader.Queue(pipeline.Task{Segment: segment, Result: results})

	result := <-results
	assert.Error(t, result.Err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount), "Expected exactly 3 attempts")
	assert.Contains(t, result.Err.Error(), "failed to download chunk ch/v/3 after 3 attempts")
}

// TestLoader_QueueAfterStop verifies that Queue refuses work once the loader
// is shut down and that no workers linger.
func TestLoader_QueueAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	loader := pipeline.NewLoader(&http.Client{}, logger.Nop(), "", 3)
	loader.Start()
	loader.Stop()

	queued := loader.Queue(pipeline.Task{
		Segment: models.Segment{URL: "http://irrelevant", Key: "k"},
		Result:  make(chan pipeline.Result, 1),
	})
	assert.False(t, queued)
}
