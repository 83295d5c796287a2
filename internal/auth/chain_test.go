package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingAuth counts Authenticate invocations and returns a fixed
// verdict.
type recordingAuth struct {
	verdict bool
	calls   int
}

func (*recordingAuth) RequiresChallenge() bool { return true }

func (a *recordingAuth) GetChallenge([]string) (*Challenge, error) {
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	return newChallenge(salt, DigestXOR), nil
}

func (a *recordingAuth) Authenticate(_, _ []byte) (bool, error) {
	a.calls++
	return a.verdict, nil
}

func TestChainNoneAlwaysAuthenticates(t *testing.T) {
	c := NewChain(NewNone())
	require.False(t, c.RequiresChallenge())
	ok, err := c.Authenticate(nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestChainShortCircuitsOnFirstRejection(t *testing.T) {
	first := &recordingAuth{verdict: false}
	second := &recordingAuth{verdict: true}
	c := NewChain(first, second)

	ok, err := c.Authenticate([]byte("r"), []byte("s"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 0, second.calls, "later members must not be invoked after a rejection")
}

func TestChainAllMustPass(t *testing.T) {
	first := &recordingAuth{verdict: true}
	second := &recordingAuth{verdict: true}
	c := NewChain(first, second)
	ok, err := c.Authenticate([]byte("r"), []byte("s"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)
}

func TestChainEmptyRejects(t *testing.T) {
	c := NewChain()
	_, err := c.Authenticate(nil, nil)
	require.Error(t, err)
}

func TestChainRequiresChallenge(t *testing.T) {
	require.False(t, NewChain(NewNone(), NewNone()).RequiresChallenge())
	require.True(t, NewChain(NewNone(), &recordingAuth{}).RequiresChallenge())
}

func TestChainGetChallengeDelegates(t *testing.T) {
	c := NewChain(NewNone(), &recordingAuth{})
	ch, err := c.GetChallenge([]string{DigestXOR})
	require.NoError(t, err)
	require.NotNil(t, ch)

	ch, err = NewChain(NewNone()).GetChallenge([]string{DigestXOR})
	require.NoError(t, err)
	require.Nil(t, ch)
}
