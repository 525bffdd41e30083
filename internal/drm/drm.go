package drm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"playforge/internal/logger"
)

// Well-known protection scheme URIs.
const (
	SchemeCENC      = "urn:mpeg:dash:mp4protection:2011"
	SchemeWidevine  = "urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"
	SchemePlayReady = "urn:uuid:9a04f079-9840-4286-ab92-e65be0885f95"
	SchemeClearKey  = "urn:uuid:e2719d58-a985-b3c9-781a-b030af78d30e"
)

// SecurityLevelProperty is the session property carrying the platform's
// protection level.
const SecurityLevelProperty = "securityLevel"

// SecurityTier classifies how strongly the platform isolates decryption.
type SecurityTier int

const (
	// TierUnknown is reported when the platform gives no usable signal, and
	// for unprotected content where no negotiation happened.
	TierUnknown SecurityTier = iota
	// Tier1 is the hardware-secured decode path. Only an explicit L1 signal
	// maps here.
	Tier1
	// Tier3 is software-only decryption.
	Tier3
)

func (t SecurityTier) String() string {
	switch t {
	case Tier1:
		return "L1"
	case Tier3:
		return "L3"
	default:
		return "unknown"
	}
}

// Reason classifies why protected playback cannot proceed.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonNoDrmSupport
	ReasonUnsupportedScheme
)

func (r Reason) String() string {
	switch r {
	case ReasonNoDrmSupport:
		return "no drm support"
	case ReasonUnsupportedScheme:
		return "unsupported scheme"
	default:
		return "unknown"
	}
}

// UnsupportedDRMError reports that the platform cannot satisfy the content
// protection a presentation requires.
type UnsupportedDRMError struct {
	Reason Reason
	Err    error
}

func (e *UnsupportedDRMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported drm (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("unsupported drm (%s)", e.Reason)
}

func (e *UnsupportedDRMError) Unwrap() error { return e.Err }

// Session is an opened license session. Its release is the duty of whoever
// ends up owning the assembled pipeline.
type Session struct {
	ID         uuid.UUID
	Scheme     string
	Keys       [][]byte
	Properties map[string]string

	closed atomic.Bool
}

// Property returns a platform-reported session property, empty when absent.
func (s *Session) Property(name string) string {
	return s.Properties[name]
}

// Close releases the session. Closing twice is harmless.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether the session has been released.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Opener opens license sessions for a protection scheme. It stands in for
// the platform key-exchange machinery.
type Opener interface {
	// Supports reports whether the opener can serve the scheme URI.
	Supports(schemeIDURI string) bool
	// Open establishes a license session for the scheme URI.
	Open(ctx context.Context, schemeIDURI string) (*Session, error)
}

// Negotiator resolves the security tier for protected playback. A nil opener
// models a platform without any DRM surface.
type Negotiator struct {
	opener Opener
	logger logger.Logger
}

// NewNegotiator creates a negotiator over the given opener.
func NewNegotiator(opener Opener, log logger.Logger) *Negotiator {
	return &Negotiator{opener: opener, logger: log}
}

// Negotiate opens a license session when protection is required and maps the
// session's security level to a tier. Unprotected content returns
// immediately with no session and TierUnknown.
func (n *Negotiator) Negotiate(ctx context.Context, required bool, schemes []string) (*Session, SecurityTier, error) {
	if !required {
		return nil, TierUnknown, nil
	}
	if n.opener == nil {
		return nil, TierUnknown, &UnsupportedDRMError{Reason: ReasonNoDrmSupport}
	}

	scheme := ""
	for _, s := range schemes {
		if n.opener.Supports(s) {
			scheme = s
			break
		}
	}
	if scheme == "" {
		return nil, TierUnknown, &UnsupportedDRMError{Reason: ReasonUnsupportedScheme}
	}

	session, err := n.opener.Open(ctx, scheme)
	if err != nil {
		var drmErr *UnsupportedDRMError
		if errors.As(err, &drmErr) {
			return nil, TierUnknown, drmErr
		}
		return nil, TierUnknown, &UnsupportedDRMError{Reason: ReasonUnknown, Err: err}
	}

	tier := tierOf(session)
	n.logger.Infof("Negotiated DRM session %s for scheme %s at tier %s", session.ID, scheme, tier)
	return session, tier, nil
}

// tierOf maps the session's security level property to a tier. Only an
// explicit "L1" counts as the hardware tier.
func tierOf(s *Session) SecurityTier {
	switch s.Property(SecurityLevelProperty) {
	case "L1":
		return Tier1
	case "L3":
		return Tier3
	default:
		return TierUnknown
	}
}
