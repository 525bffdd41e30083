package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"playforge/internal/logger"
)

// FetchResult carries a parsed manifest together with the fetch bookkeeping
// later stages need: the post-redirect URL segments resolve against and the
// wall-clock instant the load completed.
type FetchResult struct {
	MPD      *MPD
	FinalURL string
	LoadedAt time.Time
}

// Client fetches and parses manifests from an origin server.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
}

// NewClient creates a new manifest client.
func NewClient(log logger.Logger, userAgent string) *Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: 3 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:    log,
		userAgent: userAgent,
	}
}

// Fetch retrieves the manifest at the given URL and parses it. Redirects are
// followed manually so the final location is known to the caller.
func (c *Client) Fetch(ctx context.Context, manifestURL string) (*FetchResult, error) {
	c.logger.Debugf("Fetching manifest from URL: %s", manifestURL)

	resp, finalURL, err := c.get(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		location, err := resp.Location()
		if err != nil {
			return nil, fmt.Errorf("redirect location error: %w", err)
		}
		resp.Body.Close()
		finalURL = location.String()
		c.logger.Debugf("Redirected to: %s", finalURL)

		resp, finalURL, err = c.get(ctx, finalURL)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch manifest: received status code %d from %s", resp.StatusCode, finalURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest response body: %w", err)
	}
	loadedAt := time.Now()

	mpd, err := Parse(data)
	if err != nil {
		c.logger.Errorf("Failed to parse manifest from %s: %v", finalURL, err)
		return nil, err
	}

	c.logger.Debugf("Fetched and parsed manifest for profile %q from %s", mpd.Profiles, finalURL)
	return &FetchResult{MPD: mpd, FinalURL: finalURL, LoadedAt: loadedAt}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request for manifest: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch manifest from %s: %w", rawURL, err)
	}
	return resp, rawURL, nil
}

// HTTPClient returns the underlying http.Client instance so other loaders can
// share its transport.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
