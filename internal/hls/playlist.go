package hls

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	tagHeader    = "#EXTM3U"
	tagStreamInf = "#EXT-X-STREAM-INF:"
)

// Variant is one #EXT-X-STREAM-INF entry of a master playlist: a muxed
// audio/video stream at one quality.
type Variant struct {
	URI       string
	Bandwidth int
	Codecs    []string
	Width     int
	Height    int
	FrameRate float64
}

// Name returns the user-facing label of the variant.
func (v Variant) Name() string {
	if v.Width > 0 && v.Height > 0 {
		return fmt.Sprintf("%dx%d (%dbps)", v.Width, v.Height, v.Bandwidth)
	}
	return fmt.Sprintf("%dbps", v.Bandwidth)
}

// MasterPlaylist holds the variant streams a master playlist advertises.
type MasterPlaylist struct {
	Variants []Variant
}

// ParseMaster parses a master playlist document into its variant streams.
func ParseMaster(data []byte) (*MasterPlaylist, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != tagHeader {
		return nil, fmt.Errorf("not an M3U8 playlist: missing %s header", tagHeader)
	}

	master := &MasterPlaylist{}
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, tagStreamInf) {
			continue
		}

		variant, err := parseVariant(strings.TrimPrefix(line, tagStreamInf))
		if err != nil {
			return nil, err
		}

		// The URI is the next non-blank, non-tag line.
		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" {
				continue
			}
			if strings.HasPrefix(next, "#") {
				break
			}
			variant.URI = next
			i = j
			break
		}
		if variant.URI == "" {
			return nil, fmt.Errorf("variant with bandwidth %d has no URI line", variant.Bandwidth)
		}

		master.Variants = append(master.Variants, variant)
	}

	return master, nil
}

// ResolveVariantURI makes a variant's URI absolute against the playlist's
// post-redirect location.
func ResolveVariantURI(playlistURL string, v Variant) (string, error) {
	base, err := url.Parse(playlistURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse playlist URL '%s': %w", playlistURL, err)
	}
	ref, err := url.Parse(v.URI)
	if err != nil {
		return "", fmt.Errorf("failed to parse variant URI '%s': %w", v.URI, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func parseVariant(attrs string) (Variant, error) {
	var variant Variant
	for _, attr := range splitAttributes(attrs) {
		kv := strings.SplitN(attr, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])

		switch key {
		case "BANDWIDTH":
			bw, err := strconv.Atoi(value)
			if err != nil {
				return Variant{}, fmt.Errorf("invalid BANDWIDTH %q: %w", value, err)
			}
			variant.Bandwidth = bw
		case "CODECS":
			for _, c := range strings.Split(strings.Trim(value, `"`), ",") {
				if c = strings.TrimSpace(c); c != "" {
					variant.Codecs = append(variant.Codecs, c)
				}
			}
		case "RESOLUTION":
			parts := strings.SplitN(strings.ToLower(value), "x", 2)
			if len(parts) == 2 {
				variant.Width, _ = strconv.Atoi(parts[0])
				variant.Height, _ = strconv.Atoi(parts[1])
			}
		case "FRAME-RATE":
			variant.FrameRate, _ = strconv.ParseFloat(value, 64)
		}
	}
	return variant, nil
}

// splitAttributes splits an attribute list on commas, honoring quoted values
// so CODECS="avc1.4d401f,mp4a.40.2" stays one attribute.
func splitAttributes(s string) []string {
	var attrs []string
	var start int
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				attrs = append(attrs, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		attrs = append(attrs, s[start:])
	}
	return attrs
}
