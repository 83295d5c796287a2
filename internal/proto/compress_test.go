package proto

import (
	"bytes"
	"testing"
)

var compressBody = bytes.Repeat([]byte("damage damage damage "), 100)

func TestCompressRoundtripLZ4(t *testing.T) {
	payload, flags, err := Compress(FlagLZ4, 5, compressBody)
	if err != nil {
		t.Fatal(err)
	}
	if flags != FlagLZ4 {
		t.Fatalf("flags = %#x, want %#x", flags, FlagLZ4)
	}
	if bytes.Equal(payload, compressBody) {
		t.Fatal("lz4 did not compress")
	}
	out, err := Decompress(flags, 5, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, compressBody) {
		t.Fatal("lz4 roundtrip mismatch")
	}
}

func TestCompressRoundtripBrotli(t *testing.T) {
	payload, flags, err := Compress(FlagBrotli, 3, compressBody)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decompress(flags, 3, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, compressBody) {
		t.Fatal("brotli roundtrip mismatch")
	}
}

func TestCompressRoundtripZlibDefault(t *testing.T) {
	payload, flags, err := Compress(0, 6, compressBody)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decompress(flags, 6, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, compressBody) {
		t.Fatal("zlib roundtrip mismatch")
	}
}

func TestCompressNoHeaderVerbatim(t *testing.T) {
	// no-header wins even when a compression bit is set
	payload, flags, err := Compress(FlagNoHeader|FlagLZ4, 9, compressBody)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(payload, compressBody) {
		t.Fatal("no-header payload must be verbatim")
	}
	if flags&FlagLZ4 != 0 {
		t.Fatal("verbatim payload must not carry scheme bits")
	}
	out, err := Decompress(flags, 9, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, compressBody) {
		t.Fatal("no-header decode must be verbatim")
	}
}

func TestCompressLevelZeroVerbatim(t *testing.T) {
	payload, flags, err := Compress(0, 0, compressBody)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(payload, compressBody) {
		t.Fatal("level 0 payload must be verbatim")
	}
	out, err := Decompress(flags, 0, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, compressBody) {
		t.Fatal("level 0 decode must be verbatim")
	}
}

func TestCompressLevelZeroClearsSchemeBits(t *testing.T) {
	// At level 0 the body goes out verbatim, so a configured scheme
	// bit must not survive into the frame flags: the decoder
	// dispatches on scheme bits before it looks at the level.
	for _, scheme := range []byte{FlagLZ4, FlagBrotli, FlagLZ4 | FlagBrotli} {
		payload, flags, err := Compress(scheme|FlagJSON, 0, compressBody)
		if err != nil {
			t.Fatal(err)
		}
		if flags&(FlagLZ4|FlagBrotli) != 0 {
			t.Fatalf("scheme bits survived level 0: %#x", flags)
		}
		if flags&FlagJSON == 0 {
			t.Fatal("serialization bits must be preserved")
		}
		if !bytes.Equal(payload, compressBody) {
			t.Fatal("level 0 payload must be verbatim")
		}
		out, err := Decompress(flags, 0, payload)
		if err != nil {
			t.Fatalf("decode after level-0 encode: %v", err)
		}
		if !bytes.Equal(out, compressBody) {
			t.Fatal("level 0 roundtrip mismatch")
		}
	}
}

func TestDecompressSchemePriority(t *testing.T) {
	// lz4 bit wins over brotli bit on read
	payload, _, err := Compress(FlagLZ4, 5, compressBody)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decompress(FlagLZ4|FlagBrotli, 5, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, compressBody) {
		t.Fatal("lz4 must win when both scheme bits are set")
	}
}
