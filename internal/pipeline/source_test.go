package pipeline_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"playforge/internal/logger"
	"playforge/internal/models"
	"playforge/internal/pipeline"
)

func mediaSegments(prefix, repID string, count int) []models.Segment {
	segs := []models.Segment{{
		URL:    "/" + repID + "/init.mp4",
		Key:    fmt.Sprintf("%s/%s/init", prefix, repID),
		RepID:  repID,
		IsInit: true,
	}}
	for i := 0; i < count; i++ {
		segs = append(segs, models.Segment{
			URL:   fmt.Sprintf("/%s/t%d.mp4", repID, i),
			Key:   fmt.Sprintf("%s/%s/%d", prefix, repID, i),
			Time:  uint64(i),
			RepID: repID,
		})
	}
	return segs
}

func absoluteURLs(base string, segs []models.Segment) []models.Segment {
	out := make([]models.Segment, len(segs))
	for i, s := range segs {
		s.URL = base + s.URL
		out[i] = s
	}
	return out
}

func TestMultiSource_FeedsBuffer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "payload for %s", r.URL.Path)
	}))
	defer server.Close()

	loader := pipeline.NewLoader(server.Client(), logger.Nop(), "", 2)
	loader.Start()
	defer loader.Stop()

	var ms *pipeline.MultiSource
	buffer := pipeline.NewBuffer(logger.Nop(), func() map[string]struct{} {
		return ms.ActiveKeys()
	})

	segs := absoluteURLs(server.URL, mediaSegments("s/video", "v1", 2))
	src := pipeline.NewSource("v1", "v1 (video)", pipeline.Format{Codecs: "avc1.640028"}, segs)
	ms = pipeline.NewMultiSource("video", []*pipeline.Source{src}, loader, buffer, logger.Nop())

	assert.False(t, ms.Ready(), "nothing delivered before Start")
	ms.Start()
	defer ms.Stop()

	require.Eventually(t, func() bool { return ms.Buffered() == 3 },
		5*time.Second, 10*time.Millisecond, "init plus two media chunks must land")

	assert.True(t, ms.Ready())
	data, found := buffer.Get("s/video/v1/init")
	require.True(t, found)
	assert.Equal(t, "payload for /v1/init.mp4", string(data))

	// Everything queued so far stays pinned against eviction.
	keys := ms.ActiveKeys()
	assert.Contains(t, keys, "s/video/v1/init")
	assert.Contains(t, keys, "s/video/v1/0")
	assert.Contains(t, keys, "s/video/v1/1")

	buffer.Evict()
	assert.Equal(t, 3, buffer.Len(), "pinned chunks survive eviction")
}

func TestMultiSource_PinWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "x")
	}))
	defer server.Close()

	loader := pipeline.NewLoader(server.Client(), logger.Nop(), "", 4)
	loader.Start()
	defer loader.Stop()

	buffer := pipeline.NewBuffer(logger.Nop(), emptyKeysProvider)

	// One init plus ten media chunks: more than the pin window holds.
	segs := absoluteURLs(server.URL, mediaSegments("s/audio", "a1", 10))
	src := pipeline.NewSource("a1", "a1 (audio)", pipeline.Format{Codecs: "mp4a.40.2"}, segs)
	ms := pipeline.NewMultiSource("audio", []*pipeline.Source{src}, loader, buffer, logger.Nop())

	ms.Start()
	defer ms.Stop()

	require.Eventually(t, func() bool { return ms.Buffered() == 11 },
		10*time.Second, 20*time.Millisecond)

	keys := ms.ActiveKeys()
	assert.Contains(t, keys, "s/audio/a1/init", "initialization chunks stay pinned for life")
	assert.Contains(t, keys, "s/audio/a1/9")
	assert.NotContains(t, keys, "s/audio/a1/0", "oldest media chunks fall out of the pin window")
	assert.NotContains(t, keys, "s/audio/a1/1")
	assert.Len(t, keys, 9, "init plus the eight most recent media chunks")
}

func TestMultiSource_Select(t *testing.T) {
	loader := pipeline.NewLoader(&http.Client{}, logger.Nop(), "", 1)
	buffer := pipeline.NewBuffer(logger.Nop(), emptyKeysProvider)

	low := pipeline.NewSource("v-low", "low", pipeline.Format{Width: 640, Height: 360}, nil)
	high := pipeline.NewSource("v-high", "high", pipeline.Format{Width: 1920, Height: 1080}, nil)
	ms := pipeline.NewMultiSource("video", []*pipeline.Source{low, high}, loader, buffer, logger.Nop())

	assert.Equal(t, 0, ms.Selected(), "first source selected initially")
	assert.Equal(t, "v-low", ms.SelectedSource().RepID())

	require.NoError(t, ms.Select(1))
	assert.Equal(t, 1, ms.Selected())
	assert.Equal(t, "v-high", ms.SelectedSource().RepID())

	assert.Error(t, ms.Select(2))
	assert.Error(t, ms.Select(-1))
	assert.Equal(t, 1, ms.Selected(), "failed select leaves the live source alone")
}

func TestMultiSource_StopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "x")
	}))

	loader := pipeline.NewLoader(server.Client(), logger.Nop(), "", 2)
	loader.Start()

	buffer := pipeline.NewBuffer(logger.Nop(), emptyKeysProvider)
	segs := absoluteURLs(server.URL, mediaSegments("s/video", "v1", 1))
	src := pipeline.NewSource("v1", "v1", pipeline.Format{}, segs)
	ms := pipeline.NewMultiSource("video", []*pipeline.Source{src}, loader, buffer, logger.Nop())

	ms.Start()
	ms.Start() // second Start is harmless
	ms.Stop()
	ms.Stop() // and so is a second Stop

	loader.Stop()
	server.Close()
	server.Client().CloseIdleConnections()
}

func TestMultiSource_EmptySourceList(t *testing.T) {
	loader := pipeline.NewLoader(&http.Client{}, logger.Nop(), "", 1)
	buffer := pipeline.NewBuffer(logger.Nop(), emptyKeysProvider)

	ms := pipeline.NewMultiSource("text", nil, loader, buffer, logger.Nop())
	assert.Nil(t, ms.SelectedSource())
	assert.False(t, ms.Ready())
	assert.Zero(t, ms.Len())

	// Start on an empty fan-in is a no-op and Stop must still return.
	ms.Start()
	ms.Stop()
}

func TestSourceAccessors(t *testing.T) {
	format := pipeline.Format{MimeType: "video/mp4", Codecs: "avc1.640028", Width: 1920, Height: 1080, Bandwidth: 5000000}
	src := pipeline.NewSource("v5000000", "1080p", format, mediaSegments("k", "v5000000", 2))

	assert.Equal(t, "v5000000", src.RepID())
	assert.Equal(t, "1080p", src.Name())
	assert.Equal(t, format, src.Format())
	assert.Equal(t, 3, src.Len())
	assert.Equal(t, 1920*1080, format.Area())
}
