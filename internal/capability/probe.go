package capability

import "fmt"

// Encoding identifies an audio wire encoding a device may be able to output
// without decoding it first.
type Encoding string

const (
	EncodingPCM    Encoding = "pcm"
	EncodingAC3    Encoding = "ac3"
	EncodingEAC3   Encoding = "eac3"
	EncodingDTS    Encoding = "dts"
	EncodingTrueHD Encoding = "truehd"
)

// ParseEncoding maps a configuration string to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingPCM, EncodingAC3, EncodingEAC3, EncodingDTS, EncodingTrueHD:
		return Encoding(s), nil
	}
	return "", fmt.Errorf("unknown audio encoding %q", s)
}

// DecoderQueryError reports that the platform decoder list could not be
// enumerated. It is fatal to pipeline assembly.
type DecoderQueryError struct {
	Err error
}

func (e *DecoderQueryError) Error() string {
	return fmt.Sprintf("decoder query failed: %v", e.Err)
}

func (e *DecoderQueryError) Unwrap() error { return e.Err }

// Probe answers what the playback platform can decode and output. Queries
// are synchronous and side-effect free.
type Probe interface {
	// MaxDecodableArea returns the largest frame area, in pixels, the
	// platform can decode for the given codec. Zero means no decoder exists;
	// an error means the decoder list itself could not be enumerated.
	MaxDecodableArea(codec string) (int, error)
	// HasAdaptiveDecoder reports whether the platform decoder for the codec
	// can switch between stream variants without re-initialization.
	HasAdaptiveDecoder(codec string) bool
	// PassthroughEncodings returns the encodings the platform can hand to
	// the audio output compressed, in the platform's preference order.
	PassthroughEncodings() []Encoding
}

// DecoderInfo describes one platform decoder.
type DecoderInfo struct {
	// Codec is the decoder family token, e.g. "avc" or "hevc".
	Codec string
	// Levels are the profile levels the decoder advertises, e.g. "4.1".
	Levels []string
	// MaxArea overrides the level-derived frame area when non-zero.
	MaxArea int
	// Adaptive marks decoders that reconfigure seamlessly between variants.
	Adaptive bool
}

// DeviceProfile is the static description of a playback platform.
type DeviceProfile struct {
	Decoders    []DecoderInfo
	Passthrough []Encoding
}

// DecoderLister enumerates the platform's decoders. Enumeration itself may
// fail on platforms where the underlying query does.
type DecoderLister interface {
	ListDecoders() ([]DecoderInfo, error)
}

type staticLister struct {
	decoders []DecoderInfo
}

func (l staticLister) ListDecoders() ([]DecoderInfo, error) {
	return l.decoders, nil
}

// StaticProbe answers capability queries from a fixed device profile.
type StaticProbe struct {
	lister      DecoderLister
	passthrough []Encoding
}

// NewStaticProbe creates a probe over a device profile that never fails
// enumeration.
func NewStaticProbe(profile DeviceProfile) *StaticProbe {
	return NewProbe(staticLister{decoders: profile.Decoders}, profile.Passthrough)
}

// NewProbe creates a probe over an arbitrary decoder lister.
func NewProbe(lister DecoderLister, passthrough []Encoding) *StaticProbe {
	return &StaticProbe{lister: lister, passthrough: passthrough}
}

// MaxDecodableArea scans every matching decoder and returns the largest
// frame area any of them guarantees. No matching decoder yields zero.
func (p *StaticProbe) MaxDecodableArea(codec string) (int, error) {
	decoders, err := p.lister.ListDecoders()
	if err != nil {
		return 0, &DecoderQueryError{Err: err}
	}

	family := Family(codec)
	maxArea := 0
	for _, d := range decoders {
		if Family(d.Codec) != family {
			continue
		}
		if d.MaxArea > maxArea {
			maxArea = d.MaxArea
		}
		for _, level := range d.Levels {
			if area := AVCLevelMaxArea(level); area > maxArea {
				maxArea = area
			}
		}
	}
	return maxArea, nil
}

// HasAdaptiveDecoder reports whether any decoder for the codec advertises
// seamless variant switching.
func (p *StaticProbe) HasAdaptiveDecoder(codec string) bool {
	decoders, err := p.lister.ListDecoders()
	if err != nil {
		return false
	}

	family := Family(codec)
	for _, d := range decoders {
		if Family(d.Codec) == family && d.Adaptive {
			return true
		}
	}
	return false
}

// PassthroughEncodings returns a copy of the platform's passthrough list.
func (p *StaticProbe) PassthroughEncodings() []Encoding {
	out := make([]Encoding, len(p.passthrough))
	copy(out, p.passthrough)
	return out
}
