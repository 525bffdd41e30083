package manifest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TrackKind classifies the media an AdaptationSet carries.
type TrackKind int

const (
	KindUnknown TrackKind = iota
	KindVideo
	KindAudio
	KindText
)

func (k TrackKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// MPD is the root element of a Media Presentation Description.
type MPD struct {
	XMLName                   xml.Name    `xml:"MPD"`
	Type                      string      `xml:"type,attr"`
	Profiles                  string      `xml:"profiles,attr"`
	MinimumUpdatePeriod       string      `xml:"minimumUpdatePeriod,attr"`
	TimeShiftBufferDepth      string      `xml:"timeShiftBufferDepth,attr"`
	AvailabilityStartTime     string      `xml:"availabilityStartTime,attr"`
	PublishTime               string      `xml:"publishTime,attr"`
	MediaPresentationDuration string      `xml:"mediaPresentationDuration,attr"`
	MaxSegmentDuration        string      `xml:"maxSegmentDuration,attr"`
	MinBufferTime             string      `xml:"minBufferTime,attr"`
	UTCTimings                []UTCTiming `xml:"UTCTiming"`
	Periods                   []Period    `xml:"Period"`
}

// Parse unmarshals an MPD document.
func Parse(data []byte) (*MPD, error) {
	var mpd MPD
	if err := xml.Unmarshal(data, &mpd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MPD XML: %w", err)
	}
	return &mpd, nil
}

// IsDynamic reports whether the presentation is live.
func (m *MPD) IsDynamic() bool {
	return m.Type == "dynamic"
}

// TimeSource returns the first declared wall-clock source, or nil when the
// presentation does not carry one.
func (m *MPD) TimeSource() *UTCTiming {
	if len(m.UTCTimings) == 0 {
		return nil
	}
	return &m.UTCTimings[0]
}

// Duration returns the MediaPresentationDuration as a time.Duration. A
// missing attribute yields zero, which is normal for live presentations.
func (m *MPD) Duration() (time.Duration, error) {
	if m.MediaPresentationDuration == "" {
		return 0, nil
	}
	return parseDuration(m.MediaPresentationDuration)
}

// UTCTiming describes where the true wall-clock time can be obtained for
// presentations whose segment availability depends on it.
type UTCTiming struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
}

// Period represents a media content period.
type Period struct {
	ID      string          `xml:"id,attr"`
	Start   string          `xml:"start,attr"`
	BaseURL string          `xml:"BaseURL"`
	Sets    []AdaptationSet `xml:"AdaptationSet"`
}

// AdaptationSet represents a set of interchangeable representations.
type AdaptationSet struct {
	ID                 string              `xml:"id,attr"`
	ContentType        string              `xml:"contentType,attr"`
	Lang               string              `xml:"lang,attr,omitempty"`
	MimeType           string              `xml:"mimeType,attr"`
	SegmentAlignment   bool                `xml:"segmentAlignment,attr"`
	StartWithSAP       int                 `xml:"startWithSAP,attr"`
	MaxWidth           int                 `xml:"maxWidth,attr,omitempty"`
	MaxHeight          int                 `xml:"maxHeight,attr,omitempty"`
	Par                string              `xml:"par,attr,omitempty"`
	ContentProtections []ContentProtection `xml:"ContentProtection"`
	Representations    []Representation    `xml:"Representation"`
	SegmentTemplate    SegmentTemplate     `xml:"SegmentTemplate"`
}

// Kind classifies the set by the track kind it carries. The contentType
// attribute wins; the mime type prefix is the fallback.
func (as *AdaptationSet) Kind() TrackKind {
	switch as.ContentType {
	case "video":
		return KindVideo
	case "audio":
		return KindAudio
	case "text":
		return KindText
	}
	switch {
	case strings.HasPrefix(as.MimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(as.MimeType, "audio/"):
		return KindAudio
	case strings.HasPrefix(as.MimeType, "text/"),
		as.MimeType == "application/ttml+xml":
		return KindText
	}
	return KindUnknown
}

// HasContentProtection reports whether playing the set requires a license.
func (as *AdaptationSet) HasContentProtection() bool {
	return len(as.ContentProtections) > 0
}

// ProtectionSchemes lists the scheme URIs of every ContentProtection element.
func (as *AdaptationSet) ProtectionSchemes() []string {
	schemes := make([]string, 0, len(as.ContentProtections))
	for _, cp := range as.ContentProtections {
		schemes = append(schemes, cp.SchemeIDURI)
	}
	return schemes
}

// EffectiveMimeType returns the representation's mime type, falling back to
// the set-level attribute when the representation omits it.
func (as *AdaptationSet) EffectiveMimeType(rep *Representation) string {
	if rep.MimeType != "" {
		return rep.MimeType
	}
	return as.MimeType
}

// ContentProtection marks content that requires a license session to play.
type ContentProtection struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
	DefaultKID  string `xml:"default_KID,attr"`
}

// Representation represents a specific media stream.
type Representation struct {
	ID                     string                    `xml:"id,attr"`
	Bandwidth              int                       `xml:"bandwidth,attr"`
	Codecs                 string                    `xml:"codecs,attr"`
	MimeType               string                    `xml:"mimeType,attr,omitempty"`
	Width                  int                       `xml:"width,attr,omitempty"`
	Height                 int                       `xml:"height,attr,omitempty"`
	FrameRate              string                    `xml:"frameRate,attr,omitempty"`
	AudioSamplingRate      int                       `xml:"audioSamplingRate,attr,omitempty"`
	PresentationTimeOffset uint64                    `xml:"presentationTimeOffset,attr,omitempty"`
	AudioChannels          AudioChannelConfiguration `xml:"AudioChannelConfiguration"`
}

// ChannelCount returns the advertised channel count, zero when absent.
func (r *Representation) ChannelCount() int {
	return r.AudioChannels.Value
}

// AudioChannelConfiguration carries the channel layout of an audio stream.
type AudioChannelConfiguration struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       int    `xml:"value,attr"`
}

// SegmentTemplate defines the URL structure for segments.
type SegmentTemplate struct {
	Timescale      int             `xml:"timescale,attr"`
	Initialization string          `xml:"initialization,attr"`
	Media          string          `xml:"media,attr"`
	Timeline       SegmentTimeline `xml:"SegmentTimeline"`
}

// SegmentTimeline defines the timeline of segments.
type SegmentTimeline struct {
	Segments []S `xml:"S"`
}

// S represents a single segment or a series of segments.
type S struct {
	T uint64 `xml:"t,attr"`           // Start time
	D uint64 `xml:"d,attr"`           // Duration
	R int    `xml:"r,attr,omitempty"` // Repeat count
}

// parseDuration parses an ISO 8601 duration string like "PT8S".
func parseDuration(duration string) (time.Duration, error) {
	if !strings.HasPrefix(duration, "PT") {
		// Fallback for simple duration strings like "5s"
		return time.ParseDuration(duration)
	}

	duration = strings.TrimPrefix(duration, "PT")
	var totalDuration time.Duration
	re := regexp.MustCompile(`(\d+\.?\d*)(\w)`)
	matches := re.FindAllStringSubmatch(duration, -1)

	if len(matches) == 0 && duration != "" {
		return 0, errors.New("invalid ISO 8601 duration format")
	}

	for _, match := range matches {
		valueStr := match[1]
		unit := match[2]

		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return 0, err
		}

		switch unit {
		case "H":
			totalDuration += time.Duration(value * float64(time.Hour))
		case "M":
			totalDuration += time.Duration(value * float64(time.Minute))
		case "S":
			totalDuration += time.Duration(value * float64(time.Second))
		default:
			return 0, errors.New("unsupported duration unit: " + unit)
		}
	}

	return totalDuration, nil
}
