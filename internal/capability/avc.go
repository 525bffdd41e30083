package capability

import "strings"

// CodecH264 is the decoder family token for H.264/AVC streams. Video
// filtering sizes its area budget against this family.
const CodecH264 = "avc"

var codecFamilyAliases = map[string]string{
	"avc1": "avc",
	"avc2": "avc",
	"avc3": "avc",
	"h264": "avc",
	"hvc1": "hevc",
	"hev1": "hevc",
	"h265": "hevc",
}

// Family normalizes an RFC 6381 codecs string to a decoder family token,
// e.g. "avc1.64001f" becomes "avc".
func Family(codecs string) string {
	base := codecs
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	base = strings.ToLower(strings.TrimSpace(base))
	if alias, ok := codecFamilyAliases[base]; ok {
		return alias
	}
	return base
}

// avcLevelMaxArea maps an advertised AVC level to the largest frame it
// guarantees, per ISO/IEC 14496-10 Table A-1 (macroblocks converted to luma
// pixels).
var avcLevelMaxArea = map[string]int{
	"1":   99 * 16 * 16,
	"1b":  99 * 16 * 16,
	"1.1": 396 * 16 * 16,
	"1.2": 396 * 16 * 16,
	"1.3": 396 * 16 * 16,
	"2":   396 * 16 * 16,
	"2.1": 792 * 16 * 16,
	"2.2": 1620 * 16 * 16,
	"3":   1620 * 16 * 16,
	"3.1": 3600 * 16 * 16,
	"3.2": 5120 * 16 * 16,
	"4":   8192 * 16 * 16,
	"4.1": 8192 * 16 * 16,
	"4.2": 8704 * 16 * 16,
	"5":   22080 * 16 * 16,
	"5.1": 36864 * 16 * 16,
}

// AVCLevelMaxArea returns the guaranteed decodable frame area for an AVC
// level string such as "4.1", or zero for an unknown level.
func AVCLevelMaxArea(level string) int {
	return avcLevelMaxArea[level]
}
