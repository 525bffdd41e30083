package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"playforge/internal/capability"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more
// paths to load from specific files.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or
// fallback if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by
// key, or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// Settings gathers the daemon's environment-derived configuration.
type Settings struct {
	ListenAddr    string
	LogLevel      string
	CatalogPath   string
	ProfilePath   string
	UserAgent     string
	LoaderWorkers int
}

// FromEnv builds Settings from the environment with defaults.
func FromEnv() Settings {
	return Settings{
		ListenAddr:    GetEnv("PLAYFORGE_LISTEN_ADDR", ":8080"),
		LogLevel:      GetEnv("PLAYFORGE_LOG_LEVEL", "info"),
		CatalogPath:   GetEnv("PLAYFORGE_CATALOG", "samples.yaml"),
		ProfilePath:   GetEnv("PLAYFORGE_DEVICE_PROFILE", "device.yaml"),
		UserAgent:     GetEnv("PLAYFORGE_USER_AGENT", ""),
		LoaderWorkers: GetEnvInt("PLAYFORGE_LOADER_WORKERS", 8),
	}
}

// Sample kinds accepted by the catalog.
const (
	KindDash        = "dash"
	KindHLS         = "hls"
	KindProgressive = "progressive"
)

// DRMConfig is the processed protection description of one sample.
type DRMConfig struct {
	Scheme     string
	LicenseURL string
	// Keys are the provisioned decryption keys, decoded from hex strings.
	Keys [][]byte
}

// Sample is one playable catalog entry.
type Sample struct {
	ID   string
	Name string
	URI  string
	Kind string
	// DRM is nil for samples that never need a license session.
	DRM *DRMConfig
}

// Catalog is the immutable set of samples the daemon serves, loaded once at
// startup.
type Catalog struct {
	samples []Sample
	byID    map[string]int
}

// Sample looks a sample up by its catalog id.
func (c *Catalog) Sample(id string) (Sample, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Sample{}, false
	}
	return c.samples[i], true
}

// Samples returns the catalog entries in file order.
func (c *Catalog) Samples() []Sample {
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// rawDRM is used for intermediate unmarshaling from the YAML file, to handle
// the "kid:key" format of the keys field.
type rawDRM struct {
	Scheme     string   `yaml:"scheme"`
	LicenseURL string   `yaml:"licenseUrl"`
	Keys       []string `yaml:"keys"`
}

type rawSample struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	URI  string  `yaml:"uri"`
	Kind string  `yaml:"kind"`
	DRM  *rawDRM `yaml:"drm"`
}

// rawCatalog is the intermediate structure that maps directly to the YAML file.
type rawCatalog struct {
	Samples []rawSample `yaml:"samples"`
}

// LoadCatalog reads and parses the sample catalog from the given path,
// decoding raw key strings into byte slices.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file at %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog YAML: %w", err)
	}

	catalog := &Catalog{byID: make(map[string]int, len(raw.Samples))}
	for _, rs := range raw.Samples {
		if rs.ID == "" {
			return nil, fmt.Errorf("catalog entry %q has no id", rs.Name)
		}
		if rs.URI == "" {
			return nil, fmt.Errorf("catalog entry '%s' has no uri", rs.ID)
		}
		switch rs.Kind {
		case KindDash, KindHLS, KindProgressive:
		default:
			return nil, fmt.Errorf("catalog entry '%s' has unknown kind %q", rs.ID, rs.Kind)
		}
		if _, dup := catalog.byID[rs.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id '%s'", rs.ID)
		}

		var drmCfg *DRMConfig
		if rs.DRM != nil {
			keys, err := decodeKeys(rs.ID, rs.DRM.Keys)
			if err != nil {
				return nil, err
			}
			drmCfg = &DRMConfig{
				Scheme:     rs.DRM.Scheme,
				LicenseURL: rs.DRM.LicenseURL,
				Keys:       keys,
			}
		}

		catalog.byID[rs.ID] = len(catalog.samples)
		catalog.samples = append(catalog.samples, Sample{
			ID:   rs.ID,
			Name: rs.Name,
			URI:  rs.URI,
			Kind: rs.Kind,
			DRM:  drmCfg,
		})
	}

	return catalog, nil
}

// decodeKeys processes raw "kid:key" strings into decryption key bytes.
func decodeKeys(sampleID string, raw []string) ([][]byte, error) {
	keys := make([][]byte, 0, len(raw))
	for _, entry := range raw {
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid key format for sample '%s': expected 'kid:key', got '%s'", sampleID, entry)
		}
		keyBytes, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to decode hex key for sample '%s': %w", sampleID, err)
		}
		keys = append(keys, keyBytes)
	}
	return keys, nil
}

type rawDecoder struct {
	Codec    string   `yaml:"codec"`
	Levels   []string `yaml:"levels"`
	MaxArea  int      `yaml:"maxArea"`
	Adaptive bool     `yaml:"adaptive"`
}

// rawProfile is the intermediate structure that maps directly to the device
// profile YAML file.
type rawProfile struct {
	SecurityLevel string       `yaml:"securityLevel"`
	Decoders      []rawDecoder `yaml:"decoders"`
	Passthrough   []string     `yaml:"passthrough"`
}

// DeviceProfile is the processed description of the playback platform the
// daemon assembles pipelines for.
type DeviceProfile struct {
	// SecurityLevel is what the platform's key stack reports for license
	// sessions, e.g. "L1" or "L3".
	SecurityLevel string
	Capabilities  capability.DeviceProfile
}

// LoadDeviceProfile reads and parses the device profile from the given path.
func LoadDeviceProfile(path string) (*DeviceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device profile at %s: %w", path, err)
	}
	return ParseDeviceProfile(data)
}

// ParseDeviceProfile parses a device profile document.
func ParseDeviceProfile(data []byte) (*DeviceProfile, error) {
	var raw rawProfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device profile YAML: %w", err)
	}

	profile := &DeviceProfile{SecurityLevel: raw.SecurityLevel}
	for _, rd := range raw.Decoders {
		if rd.Codec == "" {
			return nil, fmt.Errorf("device profile decoder entry has no codec")
		}
		profile.Capabilities.Decoders = append(profile.Capabilities.Decoders, capability.DecoderInfo{
			Codec:    rd.Codec,
			Levels:   rd.Levels,
			MaxArea:  rd.MaxArea,
			Adaptive: rd.Adaptive,
		})
	}
	for _, pe := range raw.Passthrough {
		enc, err := capability.ParseEncoding(pe)
		if err != nil {
			return nil, fmt.Errorf("device profile: %w", err)
		}
		profile.Capabilities.Passthrough = append(profile.Capabilities.Passthrough, enc)
	}

	return profile, nil
}
