package crypto

import (
	"bytes"
	"testing"
)

func TestKeyAgreementAndSeal(t *testing.T) {
	enc, decap, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	peerKey, ct, err := Encapsulate(enc)
	if err != nil {
		t.Fatal(err)
	}
	ourKey, err := Decapsulate(decap, ct)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(peerKey, ourKey) {
		t.Fatal("shared keys differ")
	}

	msg := []byte("draw packet")
	sealed, err := Seal(ourKey, msg)
	if err != nil {
		t.Fatal(err)
	}
	opened, err := Open(peerKey, sealed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, msg) {
		t.Fatal("roundtrip mismatch")
	}
}

func TestOpenRejectsTampered(t *testing.T) {
	enc, decap, _ := GenerateKeyPair()
	key, ct, _ := Encapsulate(enc)
	_, _ = Decapsulate(decap, ct)
	sealed, err := Seal(key, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := Open(key, sealed); err == nil {
		t.Fatal("tampered ciphertext must not open")
	}
}

func TestSealRejectsBadKey(t *testing.T) {
	if _, err := Seal([]byte("short"), []byte("x")); err == nil {
		t.Fatal("short key must fail")
	}
}
