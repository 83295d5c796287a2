package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoneAuth(t *testing.T) {
	a := NewNone()
	require.False(t, a.RequiresChallenge())
	ok, err := a.Authenticate([]byte("anything"), []byte("whatever"))
	require.NoError(t, err)
	require.True(t, ok)
	ch, err := a.GetChallenge([]string{DigestHMACSHA256})
	require.NoError(t, err)
	require.Nil(t, ch)
}

func TestChooseDigestPrefersStrongest(t *testing.T) {
	d, err := ChooseDigest([]string{DigestXOR, DigestHMACSHA256, DigestHMACSHA512})
	require.NoError(t, err)
	require.Equal(t, DigestHMACSHA512, d)

	d, err = ChooseDigest([]string{DigestXOR})
	require.NoError(t, err)
	require.Equal(t, DigestXOR, d)

	_, err = ChooseDigest([]string{"des", "md5"})
	require.ErrorIs(t, err, ErrUnsupportedDigest)
}

func TestGenDigestDeterministic(t *testing.T) {
	a, err := GenDigest(DigestHMACSHA256, []byte("secret"), []byte("salt"))
	require.NoError(t, err)
	b, err := GenDigest(DigestHMACSHA256, []byte("secret"), []byte("salt"))
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := GenDigest(DigestHMACSHA256, []byte("secret"), []byte("other"))
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestXORDigestReversible(t *testing.T) {
	salt := []byte("0123456789abcdef")
	resp, err := GenDigest(DigestXOR, []byte("hunter2"), salt)
	require.NoError(t, err)
	require.Equal(t, []byte("hunter2"), xorBytes(resp, salt))
}

func TestPasswordAuthHappyPath(t *testing.T) {
	a := NewPassword([]byte("hunter2"))
	require.True(t, a.RequiresChallenge())

	ch, err := a.GetChallenge([]string{DigestHMAC})
	require.NoError(t, err)
	require.NotNil(t, ch)
	require.Len(t, ch.Salt, SaltSize)
	require.Equal(t, DigestHMAC, ch.Digest)

	clientSalt, err := NewSalt()
	require.NoError(t, err)
	resp, err := GenDigest(ch.Digest, []byte("hunter2"), CombineSalts(ch.Salt, clientSalt))
	require.NoError(t, err)

	ok, err := a.Authenticate(resp, clientSalt)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPasswordAuthWrongResponse(t *testing.T) {
	a := NewPassword([]byte("hunter2"))
	ch, err := a.GetChallenge([]string{DigestHMACSHA256})
	require.NoError(t, err)

	clientSalt, _ := NewSalt()
	resp, err := GenDigest(ch.Digest, []byte("wrong"), CombineSalts(ch.Salt, clientSalt))
	require.NoError(t, err)

	ok, err := a.Authenticate(resp, clientSalt)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPasswordAuthRejectsXOROnly(t *testing.T) {
	a := NewPassword([]byte("x"))
	_, err := a.GetChallenge([]string{DigestXOR})
	require.ErrorIs(t, err, ErrUnsupportedDigest)
}

func TestPasswordAuthChallengeOnce(t *testing.T) {
	a := NewPassword([]byte("x"))
	_, err := a.GetChallenge([]string{DigestHMACSHA256})
	require.NoError(t, err)
	_, err = a.GetChallenge([]string{DigestHMACSHA256})
	require.ErrorIs(t, err, ErrChallengeIssued)
}

func TestPasswordAuthResponseWithoutChallenge(t *testing.T) {
	a := NewPassword([]byte("x"))
	_, err := a.Authenticate([]byte("r"), []byte("s"))
	require.ErrorIs(t, err, ErrNoChallenge)
}

func TestPasswordAuthSingleEvaluation(t *testing.T) {
	a := NewPassword([]byte("x"))
	ch, err := a.GetChallenge([]string{DigestHMACSHA256})
	require.NoError(t, err)
	clientSalt, _ := NewSalt()
	resp, _ := GenDigest(ch.Digest, []byte("x"), CombineSalts(ch.Salt, clientSalt))
	_, err = a.Authenticate(resp, clientSalt)
	require.NoError(t, err)
	_, err = a.Authenticate(resp, clientSalt)
	require.Error(t, err)
}

type fakeChecker struct {
	user, pass string
}

func (c fakeChecker) Check(username, password string) bool {
	return username == c.user && password == c.pass
}

func TestSysAuthXOROnly(t *testing.T) {
	a := NewSys("ada", fakeChecker{"ada", "pw"})
	_, err := a.GetChallenge([]string{DigestHMACSHA512, DigestHMACSHA256})
	require.ErrorIs(t, err, ErrUnsupportedDigest)
}

func TestSysAuthDelegatesToChecker(t *testing.T) {
	a := NewSys("ada", fakeChecker{"ada", "pw"})
	ch, err := a.GetChallenge([]string{DigestHMACSHA256, DigestXOR})
	require.NoError(t, err)
	require.Equal(t, DigestXOR, ch.Digest)

	clientSalt, _ := NewSalt()
	resp, err := GenDigest(DigestXOR, []byte("pw"), CombineSalts(ch.Salt, clientSalt))
	require.NoError(t, err)
	ok, err := a.Authenticate(resp, clientSalt)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSysAuthWrongPassword(t *testing.T) {
	a := NewSys("ada", fakeChecker{"ada", "pw"})
	ch, err := a.GetChallenge([]string{DigestXOR})
	require.NoError(t, err)
	clientSalt, _ := NewSalt()
	resp, _ := GenDigest(DigestXOR, []byte("nope"), CombineSalts(ch.Salt, clientSalt))
	ok, err := a.Authenticate(resp, clientSalt)
	require.NoError(t, err)
	require.False(t, ok)
}
