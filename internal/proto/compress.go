package proto

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Compress compresses body according to flags and level and returns
// the wire payload with the flag bits a frame carrying it must use.
// FlagNoHeader or level 0 leave the body untouched, and the scheme
// bits are cleared from the returned flags so decoding stays
// symmetric. FlagLZ4 wins over FlagBrotli if a caller somehow sets
// both; neither flag means zlib at level.
func Compress(flags byte, level uint8, body []byte) ([]byte, byte, error) {
	if flags&FlagNoHeader != 0 || level == 0 {
		return body, flags &^ (FlagLZ4 | FlagBrotli), nil
	}
	var payload []byte
	var err error
	switch {
	case flags&FlagLZ4 != 0:
		payload, err = lz4Compress(body, level)
	case flags&FlagBrotli != 0:
		payload, err = brotliCompress(body, level)
	default:
		payload, err = zlibCompress(body, level)
	}
	return payload, flags, err
}

// Decompress resolves the payload of a decoded frame. Scheme priority
// on read: no-header, then lz4, then brotli, then the implicit zlib
// default at level (level 0 = uncompressed).
func Decompress(flags byte, level uint8, payload []byte) ([]byte, error) {
	if flags&FlagNoHeader != 0 {
		return payload, nil
	}
	switch {
	case flags&FlagLZ4 != 0:
		return lz4Decompress(payload)
	case flags&FlagBrotli != 0:
		return brotliDecompress(payload)
	case level > 0:
		return zlibDecompress(payload)
	default:
		return payload, nil
	}
}

func lz4Compress(body []byte, level uint8) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
		return nil, errors.Wrap(err, "lz4 level")
	}
	if _, err := w.Write(body); err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lz4 close")
	}
	return buf.Bytes(), nil
}

func lz4Decompress(payload []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(payload))
	out, err := io.ReadAll(io.LimitReader(r, MaxPayloadSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompress")
	}
	if len(out) > MaxPayloadSize {
		return nil, errors.New("lz4 payload too large")
	}
	return out, nil
}

// lz4Level maps the 0-9 wire level onto the library's level set.
func lz4Level(level uint8) lz4.CompressionLevel {
	switch {
	case level <= 1:
		return lz4.Fast
	case level <= 3:
		return lz4.Level1
	case level <= 5:
		return lz4.Level3
	case level <= 7:
		return lz4.Level5
	default:
		return lz4.Level9
	}
}

func brotliCompress(body []byte, level uint8) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, int(level))
	if _, err := w.Write(body); err != nil {
		return nil, errors.Wrap(err, "brotli compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "brotli close")
	}
	return buf.Bytes(), nil
}

func brotliDecompress(payload []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(payload))
	out, err := io.ReadAll(io.LimitReader(r, MaxPayloadSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "brotli decompress")
	}
	if len(out) > MaxPayloadSize {
		return nil, errors.New("brotli payload too large")
	}
	return out, nil
}

func zlibCompress(body []byte, level uint8) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, int(level))
	if err != nil {
		return nil, errors.Wrap(err, "zlib level")
	}
	if _, err := w.Write(body); err != nil {
		return nil, errors.Wrap(err, "zlib compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "zlib close")
	}
	return buf.Bytes(), nil
}

func zlibDecompress(payload []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "zlib decompress")
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, MaxPayloadSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "zlib decompress")
	}
	if len(out) > MaxPayloadSize {
		return nil, errors.New("zlib payload too large")
	}
	return out, nil
}
