package manifest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playforge/internal/logger"
	"playforge/internal/manifest"
)

func TestClientFetch(t *testing.T) {
	fixture, err := os.ReadFile("testdata/live.mpd")
	require.NoError(t, err)

	t.Run("fetches and parses", func(t *testing.T) {
		var gotAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAgent = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "application/dash+xml")
			w.Write(fixture)
		}))
		defer server.Close()

		client := manifest.NewClient(logger.Nop(), "playforge-test/1.0")
		before := time.Now()
		result, err := client.Fetch(context.Background(), server.URL+"/stream.mpd")
		require.NoError(t, err)

		assert.Equal(t, "playforge-test/1.0", gotAgent)
		assert.Equal(t, server.URL+"/stream.mpd", result.FinalURL)
		assert.True(t, result.MPD.IsDynamic())
		assert.Len(t, result.MPD.Periods, 1)
		assert.False(t, result.LoadedAt.Before(before))
		assert.False(t, result.LoadedAt.After(time.Now()))
	})

	t.Run("follows one redirect and reports the final URL", func(t *testing.T) {
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(fixture)
		}))
		defer origin.Close()

		edge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, origin.URL+"/real.mpd", http.StatusFound)
		}))
		defer edge.Close()

		client := manifest.NewClient(logger.Nop(), "")
		result, err := client.Fetch(context.Background(), edge.URL+"/stream.mpd")
		require.NoError(t, err)
		assert.Equal(t, origin.URL+"/real.mpd", result.FinalURL,
			"segment URLs must resolve against the post-redirect location")
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := manifest.NewClient(logger.Nop(), "")
		_, err := client.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status code 404")
	})

	t.Run("unparseable body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("this is not an mpd"))
		}))
		defer server.Close()

		client := manifest.NewClient(logger.Nop(), "")
		_, err := client.Fetch(context.Background(), server.URL)
		assert.Error(t, err)
	})

	t.Run("unreachable server", func(t *testing.T) {
		client := manifest.NewClient(logger.Nop(), "")
		_, err := client.Fetch(context.Background(), "http://127.0.0.1:1/stream.mpd")
		assert.Error(t, err)
	})
}

func TestClientSharesTransport(t *testing.T) {
	client := manifest.NewClient(logger.Nop(), "")
	assert.NotNil(t, client.HTTPClient(), "loaders share the manifest transport")
}
