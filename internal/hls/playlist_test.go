package hls_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playforge/internal/hls"
	"playforge/internal/logger"
)

const masterFixture = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080,FRAME-RATE=25.000,CODECS="avc1.640028,mp4a.40.2"
v5000000/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2"
v2800000/index.m3u8

#EXT-X-STREAM-INF:BANDWIDTH=1500000,RESOLUTION=640x360,CODECS="avc1.4d401e,mp4a.40.2"
v1500000/index.m3u8
`

func TestParseMaster(t *testing.T) {
	master, err := hls.ParseMaster([]byte(masterFixture))
	require.NoError(t, err)
	require.Len(t, master.Variants, 3)

	top := master.Variants[0]
	assert.Equal(t, "v5000000/index.m3u8", top.URI)
	assert.Equal(t, 5000000, top.Bandwidth)
	assert.Equal(t, 1920, top.Width)
	assert.Equal(t, 1080, top.Height)
	assert.Equal(t, 25.0, top.FrameRate)
	assert.Equal(t, []string{"avc1.640028", "mp4a.40.2"}, top.Codecs,
		"quoted CODECS list must not split the attribute line")

	// Blank lines between entries are tolerated.
	assert.Equal(t, "v1500000/index.m3u8", master.Variants[2].URI)
	assert.Equal(t, 640, master.Variants[2].Width)
}

func TestParseMaster_Errors(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		_, err := hls.ParseMaster([]byte("#EXT-X-STREAM-INF:BANDWIDTH=1\nv/index.m3u8\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing #EXTM3U header")
	})

	t.Run("variant without URI", func(t *testing.T) {
		_, err := hls.ParseMaster([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1500000\n#EXT-X-ENDLIST\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no URI line")
	})

	t.Run("bad bandwidth", func(t *testing.T) {
		_, err := hls.ParseMaster([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=lots\nv/index.m3u8\n"))
		assert.Error(t, err)
	})
}

func TestVariantName(t *testing.T) {
	sized := hls.Variant{Bandwidth: 2800000, Width: 1280, Height: 720}
	assert.Equal(t, "1280x720 (2800000bps)", sized.Name())

	audioOnly := hls.Variant{Bandwidth: 128000}
	assert.Equal(t, "128000bps", audioOnly.Name())
}

func TestResolveVariantURI(t *testing.T) {
	v := hls.Variant{URI: "v5000000/index.m3u8"}

	resolved, err := hls.ResolveVariantURI("https://cdn.example.com/live/master.m3u8", v)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/live/v5000000/index.m3u8", resolved)

	absolute := hls.Variant{URI: "https://other.example.com/v/index.m3u8"}
	resolved, err = hls.ResolveVariantURI("https://cdn.example.com/live/master.m3u8", absolute)
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/v/index.m3u8", resolved)
}

func TestFetchMaster(t *testing.T) {
	t.Run("fetches and parses", func(t *testing.T) {
		var gotAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAgent = r.Header.Get("User-Agent")
			fmt.Fprint(w, masterFixture)
		}))
		defer server.Close()

		client := hls.NewClient(server.Client(), logger.Nop(), "playforge-test/1.0")
		result, err := client.FetchMaster(context.Background(), server.URL+"/master.m3u8")
		require.NoError(t, err)

		assert.Equal(t, "playforge-test/1.0", gotAgent)
		assert.Equal(t, server.URL+"/master.m3u8", result.FinalURL)
		assert.Len(t, result.Master.Variants, 3)
	})

	t.Run("follows one redirect and reports the final URL", func(t *testing.T) {
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, masterFixture)
		}))
		defer origin.Close()

		edge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, origin.URL+"/real.m3u8", http.StatusMovedPermanently)
		}))
		defer edge.Close()

		// The client shares a transport that does not auto-follow redirects.
		httpClient := &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}

		client := hls.NewClient(httpClient, logger.Nop(), "")
		result, err := client.FetchMaster(context.Background(), edge.URL+"/master.m3u8")
		require.NoError(t, err)
		assert.Equal(t, origin.URL+"/real.m3u8", result.FinalURL)
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := hls.NewClient(server.Client(), logger.Nop(), "")
		_, err := client.FetchMaster(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status code 403")
	})

	t.Run("unparseable body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>not a playlist</html>")
		}))
		defer server.Close()

		client := hls.NewClient(server.Client(), logger.Nop(), "")
		_, err := client.FetchMaster(context.Background(), server.URL)
		assert.Error(t, err)
	})
}
