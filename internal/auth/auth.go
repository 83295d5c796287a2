// Package auth implements the challenge/response handshake:
// digest negotiation, the authenticator variants, and fail-fast
// chaining for multi-factor setups.
//
// An Authenticator belongs to one session. It keeps no retry
// bookkeeping and enforces no timeouts; both are the session owner's
// job.
package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// ErrChallengeIssued: GetChallenge was already called on this
// instance. Challenges are never reissued automatically.
var ErrChallengeIssued = errors.New("challenge already issued")

// ErrNoChallenge: Authenticate called before a challenge was issued.
// A caller error, not authenticator state.
var ErrNoChallenge = errors.New("no challenge issued")

// Challenge: server salt + the digest the client must answer with.
// Consumed exactly once by Authenticate.
type Challenge struct {
	ID       uuid.UUID
	Salt     []byte
	Digest   string
	IssuedAt time.Time
}

// Authenticator is the per-session three-method capability set every
// variant implements.
type Authenticator interface {
	// RequiresChallenge is false for pass-through variants.
	RequiresChallenge() bool
	// GetChallenge negotiates a digest from the client's set and
	// issues the challenge. At most one call per instance; a digest
	// negotiation failure (ErrUnsupportedDigest) is permanent for the
	// session.
	GetChallenge(digests []string) (*Challenge, error)
	// Authenticate verifies the response against the expected digest
	// of (secret, server salt, client salt). Deterministic, single
	// evaluation, no internal retry.
	Authenticate(response, clientSalt []byte) (bool, error)
}

func newChallenge(salt []byte, digest string) *Challenge {
	return &Challenge{
		ID:       uuid.New(),
		Salt:     salt,
		Digest:   digest,
		IssuedAt: time.Now(),
	}
}

// NoneAuth is the pass-through variant for already-trusted channels:
// no challenge, every response accepted, the password never inspected.
type NoneAuth struct{}

func NewNone() *NoneAuth { return &NoneAuth{} }

func (*NoneAuth) RequiresChallenge() bool { return false }

func (*NoneAuth) GetChallenge([]string) (*Challenge, error) { return nil, nil }

func (*NoneAuth) Authenticate(_, _ []byte) (bool, error) { return true, nil }
