// Package crypto implements the optional session cipher: ML-KEM-768
// key agreement during the hello/challenge exchange, then
// ChaCha20-Poly1305 over frame payloads carrying the cipher flag.
package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"filippo.io/mlkem768"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize of the derived session key (ML-KEM shared secret).
	KeySize = 32
	// NonceSize for ChaCha20-Poly1305.
	NonceSize = chacha20poly1305.NonceSize
)

// DecapsulationKey is the private half the client keeps.
type DecapsulationKey = mlkem768.DecapsulationKey

// GenerateKeyPair returns the encapsulation key the client puts in
// its hello, and the decapsulation key it holds on to.
func GenerateKeyPair() (enc []byte, decap *mlkem768.DecapsulationKey, err error) {
	decap, err = mlkem768.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	return decap.EncapsulationKey(), decap, nil
}

// Encapsulate derives the session key against the peer's
// encapsulation key; the ciphertext travels in the challenge.
func Encapsulate(encKey []byte) (sessionKey, ciphertext []byte, err error) {
	ciphertext, sessionKey, err = mlkem768.Encapsulate(encKey)
	if err != nil {
		return nil, nil, err
	}
	return sessionKey, ciphertext, nil
}

// Decapsulate recovers the session key from the challenge ciphertext.
func Decapsulate(decap *mlkem768.DecapsulationKey, ciphertext []byte) ([]byte, error) {
	return mlkem768.Decapsulate(decap, ciphertext)
}

// Seal encrypts plaintext with the session key, prepending the nonce.
func Seal(key, plaintext []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("session key must be 32 bytes")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a Seal result (first NonceSize bytes = nonce).
func Open(key, ciphertext []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("session key must be 32 bytes")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < NonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ct := ciphertext[:NonceSize], ciphertext[NonceSize:]
	return aead.Open(nil, nonce, ct, nil)
}
