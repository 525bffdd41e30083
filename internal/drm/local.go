package drm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// LocalOpener serves license sessions from keys provisioned ahead of time in
// configuration. It is the opener the daemon runs with when no real platform
// DRM stack is present.
type LocalOpener struct {
	scheme string
	level  string
	keys   [][]byte
}

// NewLocalOpener creates an opener for one scheme. level is reported as the
// session's security level property; pre-provisioned local keys are software
// decryption, so "L3" is the honest value for real deployments.
func NewLocalOpener(scheme, level string, keys [][]byte) *LocalOpener {
	return &LocalOpener{scheme: scheme, level: level, keys: keys}
}

// Supports reports whether the scheme URI matches the provisioned one.
func (o *LocalOpener) Supports(schemeIDURI string) bool {
	return schemeIDURI == o.scheme
}

// Open hands out a session holding the provisioned keys.
func (o *LocalOpener) Open(ctx context.Context, schemeIDURI string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !o.Supports(schemeIDURI) {
		return nil, &UnsupportedDRMError{Reason: ReasonUnsupportedScheme}
	}
	if len(o.keys) == 0 {
		return nil, fmt.Errorf("no keys provisioned for scheme %s", schemeIDURI)
	}

	return &Session{
		ID:         uuid.New(),
		Scheme:     schemeIDURI,
		Keys:       o.keys,
		Properties: map[string]string{SecurityLevelProperty: o.level},
	}, nil
}
