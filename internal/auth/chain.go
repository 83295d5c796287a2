package auth

import (
	"github.com/pkg/errors"
)

// Chain composes authenticators into multi-factor auth: every member
// must accept, evaluated in order, failing fast on the first
// rejection.
type Chain struct {
	members []Authenticator
}

func NewChain(members ...Authenticator) *Chain {
	return &Chain{members: members}
}

// RequiresChallenge is true if any member challenges.
func (c *Chain) RequiresChallenge() bool {
	for _, m := range c.members {
		if m.RequiresChallenge() {
			return true
		}
	}
	return false
}

// GetChallenge issues the challenge of the first challenging member;
// a negotiation failure rejects the session. Pass-through members
// never challenge, so the usual chain shape is any number of
// pass-throughs around one challenging verifier.
func (c *Chain) GetChallenge(digests []string) (*Challenge, error) {
	for _, m := range c.members {
		if m.RequiresChallenge() {
			return m.GetChallenge(digests)
		}
	}
	return nil, nil
}

// Authenticate runs the members in order, short-circuiting on the
// first rejection: later members are never invoked.
func (c *Chain) Authenticate(response, clientSalt []byte) (bool, error) {
	if len(c.members) == 0 {
		return false, errors.New("empty authenticator chain")
	}
	for _, m := range c.members {
		ok, err := m.Authenticate(response, clientSalt)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
