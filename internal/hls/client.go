package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"playforge/internal/logger"
)

// FetchResult carries a parsed master playlist together with the
// post-redirect URL variant URIs resolve against.
type FetchResult struct {
	Master   *MasterPlaylist
	FinalURL string
}

// Client fetches and parses master playlists from an origin server.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
}

// NewClient creates a playlist client sharing the given HTTP client.
func NewClient(httpClient *http.Client, log logger.Logger, userAgent string) *Client {
	return &Client{httpClient: httpClient, logger: log, userAgent: userAgent}
}

// FetchMaster retrieves and parses the master playlist at the given URL.
func (c *Client) FetchMaster(ctx context.Context, playlistURL string) (*FetchResult, error) {
	c.logger.Debugf("Fetching master playlist from URL: %s", playlistURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for playlist: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist from %s: %w", playlistURL, err)
	}
	defer resp.Body.Close()

	finalURL := playlistURL
	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		location, err := resp.Location()
		if err != nil {
			return nil, fmt.Errorf("redirect location error: %w", err)
		}
		finalURL = location.String()
		c.logger.Debugf("Redirected to: %s", finalURL)

		req, err = http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request for redirected playlist: %w", err)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch redirected playlist from %s: %w", finalURL, err)
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch playlist: received status code %d from %s", resp.StatusCode, finalURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist response body: %w", err)
	}

	master, err := ParseMaster(data)
	if err != nil {
		c.logger.Errorf("Failed to parse master playlist from %s: %v", finalURL, err)
		return nil, err
	}

	c.logger.Debugf("Fetched master playlist with %d variants from %s", len(master.Variants), finalURL)
	return &FetchResult{Master: master, FinalURL: finalURL}, nil
}
