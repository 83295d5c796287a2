package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Digest identifiers negotiated during the challenge. "hmac" is the
// legacy alias for hmac+sha256; xor is only valid where the verifier
// needs the actual password (system-delegated auth).
const (
	DigestHMACSHA512 = "hmac+sha512"
	DigestHMACSHA384 = "hmac+sha384"
	DigestHMACSHA256 = "hmac+sha256"
	DigestHMAC       = "hmac"
	DigestXOR        = "xor"
)

// ErrUnsupportedDigest: the variant cannot satisfy any requested
// digest. Fail-closed, the session must be rejected; never downgraded.
var ErrUnsupportedDigest = errors.New("no supported digest")

// SaltSize of server and client salts.
const SaltSize = 32

// digestPreference: stronger hashes first.
var digestPreference = []string{
	DigestHMACSHA512,
	DigestHMACSHA384,
	DigestHMACSHA256,
	DigestHMAC,
	DigestXOR,
}

// SupportedDigests in preference order, for the client hello.
func SupportedDigests() []string {
	return append([]string(nil), digestPreference...)
}

// ChooseDigest picks the strongest digest present in options.
func ChooseDigest(options []string) (string, error) {
	for _, want := range digestPreference {
		for _, o := range options {
			if o == want {
				return want, nil
			}
		}
	}
	return "", errors.Wrapf(ErrUnsupportedDigest, "options %s", strings.Join(options, ","))
}

func hmacHash(digest string) func() hash.Hash {
	switch digest {
	case DigestHMACSHA512:
		return sha512.New
	case DigestHMACSHA384:
		return sha512.New384
	case DigestHMACSHA256, DigestHMAC:
		return sha256.New
	default:
		return nil
	}
}

// GenDigest computes the response bytes for a digest over
// (secret, salt). HMAC digests key on the secret; xor pads the salt
// to the secret and combines them so the verifier can recover the
// secret (it must check it against an external identity source).
func GenDigest(digest string, secret, salt []byte) ([]byte, error) {
	if len(secret) == 0 || len(salt) == 0 {
		return nil, errors.New("empty secret or salt")
	}
	if digest == DigestXOR {
		return xorBytes(secret, salt), nil
	}
	h := hmacHash(digest)
	if h == nil {
		return nil, errors.Wrap(ErrUnsupportedDigest, digest)
	}
	mac := hmac.New(h, secret)
	mac.Write(salt)
	return mac.Sum(nil), nil
}

// CombineSalts mixes the server and client salts into the one salt
// the digest runs over, so neither side alone controls it.
func CombineSalts(serverSalt, clientSalt []byte) []byte {
	return xorBytes(serverSalt, clientSalt)
}

// xorBytes xors b (padded or truncated to len(a)) into a copy of a.
func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		var x byte
		if i < len(b) {
			x = b[i]
		}
		out[i] = a[i] ^ x
	}
	return out
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "generate salt")
	}
	return salt, nil
}
