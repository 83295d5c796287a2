package auth

import (
	"github.com/pkg/errors"
)

// Checker is the external identity backend behind system-delegated
// authentication.
type Checker interface {
	Check(username, password string) bool
}

// SysAuth defers verification to a Checker. It needs the actual
// password, so by policy it only supports the xor digest; anything
// else is logged and rejected.
type SysAuth struct {
	username  string
	checker   Checker
	challenge *Challenge
	consumed  bool
}

func NewSys(username string, checker Checker) *SysAuth {
	return &SysAuth{username: username, checker: checker}
}

func (*SysAuth) RequiresChallenge() bool { return true }

func (a *SysAuth) GetChallenge(digests []string) (*Challenge, error) {
	if a.challenge != nil {
		return nil, ErrChallengeIssued
	}
	found := false
	for _, d := range digests {
		if d == DigestXOR {
			found = true
			break
		}
	}
	if !found {
		logger.WithField("digests", digests).Warn("auth: system-delegated verification requires the xor digest")
		return nil, errors.Wrap(ErrUnsupportedDigest, "xor required")
	}
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	a.challenge = newChallenge(salt, DigestXOR)
	return a.challenge, nil
}

func (a *SysAuth) Authenticate(response, clientSalt []byte) (bool, error) {
	if a.challenge == nil {
		return false, ErrNoChallenge
	}
	if a.consumed {
		return false, errors.New("challenge already consumed")
	}
	a.consumed = true
	if a.checker == nil {
		return false, errors.New("no identity backend")
	}
	// xor is reversible: recover the password and hand it to the
	// identity backend.
	password := xorBytes(response, CombineSalts(a.challenge.Salt, clientSalt))
	return a.checker.Check(a.username, string(password)), nil
}
