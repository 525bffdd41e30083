package manifest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"playforge/internal/models"
)

// resolveURL resolves a path against a base URL, handling potential errors.
func resolveURL(base *url.URL, path string) (*url.URL, error) {
	resolved, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse path '%s': %w", path, err)
	}
	return base.ResolveReference(resolved), nil
}

// segmentBase resolves the base every segment path of a period hangs off:
// the post-redirect manifest location, adjusted by the period's BaseURL.
func segmentBase(manifestURL string, period *Period) (*url.URL, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest URL '%s': %w", manifestURL, err)
	}
	if period.BaseURL != "" {
		base, err = resolveURL(base, period.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve period BaseURL: %w", err)
		}
	}
	return base, nil
}

// BuildInitSegment constructs the addressed initialization chunk for a
// representation. ok is false when the template declares no initialization.
func BuildInitSegment(manifestURL string, period *Period, set *AdaptationSet, rep *Representation, keyPrefix string) (seg models.Segment, ok bool, err error) {
	template := set.SegmentTemplate
	if template.Initialization == "" {
		return models.Segment{}, false, nil
	}

	base, err := segmentBase(manifestURL, period)
	if err != nil {
		return models.Segment{}, false, err
	}

	initPath := strings.Replace(template.Initialization, "$RepresentationID$", rep.ID, 1)
	initURL, err := resolveURL(base, initPath)
	if err != nil {
		return models.Segment{}, false, fmt.Errorf("failed to resolve init path: %w", err)
	}

	return models.Segment{
		URL:    initURL.String(),
		Key:    fmt.Sprintf("%s/%s/init", keyPrefix, rep.ID),
		RepID:  rep.ID,
		IsInit: true,
	}, true, nil
}

// ExpandTimeline flattens a representation's template timeline into a list
// of addressed media chunks, expanding repeat counts and substituting the
// $RepresentationID$ and $Time$ placeholders.
func ExpandTimeline(manifestURL string, period *Period, set *AdaptationSet, rep *Representation, keyPrefix string) ([]models.Segment, error) {
	template := set.SegmentTemplate
	if template.Media == "" {
		return nil, nil
	}

	base, err := segmentBase(manifestURL, period)
	if err != nil {
		return nil, err
	}

	var segments []models.Segment
	var currentTime uint64
	for _, s := range template.Timeline.Segments {
		// A t attribute resets the timeline to an absolute start time.
		if s.T > 0 {
			currentTime = s.T
		}

		// r repeats mean r+1 segments of the same duration.
		for i := 0; i <= s.R; i++ {
			seg, err := buildMediaSegment(base, template.Media, rep.ID, keyPrefix, currentTime, s.D)
			if err != nil {
				return nil, err
			}
			segments = append(segments, seg)
			currentTime += s.D
		}
	}

	return segments, nil
}

func buildMediaSegment(base *url.URL, mediaTemplate, repID, keyPrefix string, time, duration uint64) (models.Segment, error) {
	mediaPath := strings.Replace(mediaTemplate, "$RepresentationID$", repID, 1)
	mediaPath = strings.Replace(mediaPath, "$Time$", strconv.FormatUint(time, 10), 1)

	segmentURL, err := resolveURL(base, mediaPath)
	if err != nil {
		return models.Segment{}, fmt.Errorf("failed to resolve media path: %w", err)
	}

	return models.Segment{
		URL:      segmentURL.String(),
		Key:      fmt.Sprintf("%s/%s/%d", keyPrefix, repID, time),
		Time:     time,
		Duration: duration,
		RepID:    repID,
	}, nil
}
