package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"playforge/internal/logger"
)

// Wall-clock source schemes understood by the resolver.
const (
	SchemeDirect2012     = "urn:mpeg:dash:utc:direct:2012"
	SchemeHTTPISO2014    = "urn:mpeg:dash:utc:http-iso:2014"
	SchemeHTTPXSDate2012 = "urn:mpeg:dash:utc:http-xsdate:2012"
	SchemeHTTPXSDate2014 = "urn:mpeg:dash:utc:http-xsdate:2014"
)

// TimeResolver resolves the offset between the server's wall clock and the
// local clock at the instant a manifest load completed.
type TimeResolver interface {
	Resolve(ctx context.Context, src UTCTiming, loadedAt time.Time) (time.Duration, error)
}

// HTTPTimeResolver resolves UTCTiming descriptors, fetching over HTTP for the
// schemes that need it.
type HTTPTimeResolver struct {
	httpClient *http.Client
	logger     logger.Logger
}

// NewTimeResolver creates a resolver sharing the given HTTP client.
func NewTimeResolver(client *http.Client, log logger.Logger) *HTTPTimeResolver {
	return &HTTPTimeResolver{httpClient: client, logger: log}
}

// Resolve returns serverTime minus loadedAt for the descriptor's scheme. An
// unrecognized scheme is an error; callers treat every resolution error as a
// zero offset rather than a failure.
func (r *HTTPTimeResolver) Resolve(ctx context.Context, src UTCTiming, loadedAt time.Time) (time.Duration, error) {
	switch src.SchemeIDURI {
	case SchemeDirect2012:
		serverTime, err := parseTimestamp(src.Value)
		if err != nil {
			return 0, fmt.Errorf("failed to parse direct timing value %q: %w", src.Value, err)
		}
		return serverTime.Sub(loadedAt), nil
	case SchemeHTTPISO2014, SchemeHTTPXSDate2012, SchemeHTTPXSDate2014:
		return r.fetchOffset(ctx, src.Value, loadedAt)
	default:
		return 0, fmt.Errorf("unsupported UTC timing scheme %q", src.SchemeIDURI)
	}
}

func (r *HTTPTimeResolver) fetchOffset(ctx context.Context, timeURL string, loadedAt time.Time) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, timeURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create time request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch server time from %s: %w", timeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("time server %s returned status %d", timeURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return 0, fmt.Errorf("failed to read time response: %w", err)
	}

	serverTime, err := parseTimestamp(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse server time %q: %w", strings.TrimSpace(string(body)), err)
	}

	offset := serverTime.Sub(loadedAt)
	r.logger.Debugf("Resolved server clock offset %v from %s", offset, timeURL)
	return offset, nil
}

// parseTimestamp accepts xs:dateTime and plain ISO-8601 instants, with a
// missing zone designator read as UTC.
func parseTimestamp(value string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", value)
}
