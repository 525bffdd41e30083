package models

// Segment addresses one downloadable chunk of media. Loading sources expand
// manifest addressing into these; the loader and buffer treat them opaquely.
type Segment struct {
	// URL is the fully-qualified location to fetch the chunk from.
	URL string
	// Key identifies the chunk in the shared buffer. Unique across sources.
	Key string
	// Time is the chunk's start time in the timescale of its representation.
	Time uint64
	// Duration is the chunk's duration in the same timescale.
	Duration uint64
	// RepID is the representation the chunk belongs to.
	RepID string
	// IsInit marks initialization chunks, fetched before any media.
	IsInit bool
}
