package selection

import (
	"fmt"

	"playforge/internal/capability"
	"playforge/internal/manifest"
)

// Container mime types the video decode path accepts.
var videoMimeAllowlist = map[string]bool{
	"video/mp4":  true,
	"video/webm": true,
}

// passthroughPriority is scanned once, in order. The first entry whose codec
// tag appears in the stream and whose encoding the device supports wins, and
// its codec becomes exclusive. The table is deliberately short; anything it
// misses falls back to native decode.
var passthroughPriority = []struct {
	codec    string
	encoding capability.Encoding
}{
	{codec: "ec-3", encoding: capability.EncodingEAC3},
	{codec: "ac-3", encoding: capability.EncodingAC3},
}

// VideoOptions carries the constraints video filtering runs under.
type VideoOptions struct {
	// FilterHD discards representations at or above the 1280x720 threshold.
	// Set exactly when protection is required and the negotiated tier is not
	// the hardware tier.
	FilterHD bool
	// MaxArea is the largest frame area the platform decodes; zero when no
	// decoder exists, which discards everything with known dimensions.
	MaxArea int
}

// SelectVideo returns the indices of the representations the platform may
// play, preserving manifest order. Filters apply in fixed order: the HD gate,
// then the decodable-area bound, then the container allowlist.
func SelectVideo(set *manifest.AdaptationSet, opts VideoOptions) []int {
	if set == nil {
		return nil
	}

	var selected []int
	for i := range set.Representations {
		rep := &set.Representations[i]
		if opts.FilterHD && (rep.Width >= 1280 || rep.Height >= 720) {
			continue
		}
		if rep.Width*rep.Height > opts.MaxArea {
			continue
		}
		if !videoMimeAllowlist[set.EffectiveMimeType(rep)] {
			continue
		}
		selected = append(selected, i)
	}
	return selected
}

// AudioChoice says how the selected audio reaches the output stage.
type AudioChoice struct {
	// Passthrough is true when the compressed stream goes to the output
	// directly; false means decode to PCM.
	Passthrough bool
	// Encoding is the selected wire encoding, EncodingPCM when decoding.
	Encoding capability.Encoding
	// Codec is the winning codec tag; empty on the decode path.
	Codec string
}

// AudioSelection lists the surviving audio representations by index with
// their user-facing names, plus the delivery choice.
type AudioSelection struct {
	Indices []int
	Names   []string
	Choice  AudioChoice
}

// SelectAudio builds one candidate per representation, named
// "<id> (<channels>ch, <sampleRate>Hz)", then applies the passthrough
// priority table over the device's supported encodings. A winning entry
// removes every representation with a different codec tag; no winner leaves
// all candidates on the decode path.
func SelectAudio(set *manifest.AdaptationSet, passthrough []capability.Encoding) AudioSelection {
	sel := AudioSelection{Choice: AudioChoice{Encoding: capability.EncodingPCM}}
	if set == nil {
		return sel
	}

	codecs := make([]string, 0, len(set.Representations))
	for i := range set.Representations {
		rep := &set.Representations[i]
		sel.Indices = append(sel.Indices, i)
		sel.Names = append(sel.Names, fmt.Sprintf("%s (%dch, %dHz)", rep.ID, rep.ChannelCount(), rep.AudioSamplingRate))
		codecs = append(codecs, rep.Codecs)
	}

	supported := make(map[capability.Encoding]bool, len(passthrough))
	for _, e := range passthrough {
		supported[e] = true
	}

	for _, entry := range passthroughPriority {
		if !supported[entry.encoding] || !containsString(codecs, entry.codec) {
			continue
		}

		var keptIndices []int
		var keptNames []string
		for j, repIdx := range sel.Indices {
			if set.Representations[repIdx].Codecs == entry.codec {
				keptIndices = append(keptIndices, repIdx)
				keptNames = append(keptNames, sel.Names[j])
			}
		}
		sel.Indices = keptIndices
		sel.Names = keptNames
		sel.Choice = AudioChoice{Passthrough: true, Encoding: entry.encoding, Codec: entry.codec}
		break
	}

	return sel
}

// TextTrack locates one text representation within a period.
type TextTrack struct {
	SetIndex int
	RepIndex int
	Name     string
}

// SelectText gathers every representation of every text adaptation set,
// unfiltered, named by format identifier.
func SelectText(period *manifest.Period) []TextTrack {
	var tracks []TextTrack
	for i := range period.Sets {
		set := &period.Sets[i]
		if set.Kind() != manifest.KindText {
			continue
		}
		for j := range set.Representations {
			tracks = append(tracks, TextTrack{
				SetIndex: i,
				RepIndex: j,
				Name:     set.Representations[j].ID,
			})
		}
	}
	return tracks
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
