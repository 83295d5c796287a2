package proto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidPacket = errors.New("invalid packet")

// EncodePacket serializes pkt as [type byte][body]. The body codec is
// chosen from the serialization flag bits: binary by default, JSON or
// YAML when the matching flag is set.
func EncodePacket(flags byte, pkt any) ([]byte, error) {
	t, err := typeOf(pkt)
	if err != nil {
		return nil, err
	}
	var body []byte
	switch {
	case flags&FlagJSON != 0:
		body, err = json.Marshal(pkt)
	case flags&FlagYAML != 0:
		body, err = yaml.Marshal(pkt)
	default:
		body, err = encodeBinary(pkt)
	}
	if err != nil {
		return nil, errors.Wrap(err, "encode packet body")
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(t))
	return append(out, body...), nil
}

// DecodePacket parses a decompressed payload back into its packet
// struct, honoring the same serialization flags as EncodePacket.
func DecodePacket(flags byte, payload []byte) (any, error) {
	if len(payload) < 1 {
		return nil, errors.Wrap(ErrInvalidPacket, "empty payload")
	}
	pkt := packetFor(PacketType(payload[0]))
	if pkt == nil {
		return nil, errors.Wrapf(ErrInvalidPacket, "unknown packet type 0x%02x", payload[0])
	}
	body := payload[1:]
	var err error
	switch {
	case flags&FlagJSON != 0:
		err = json.Unmarshal(body, pkt)
	case flags&FlagYAML != 0:
		err = yaml.Unmarshal(body, pkt)
	default:
		err = decodeBinary(pkt, body)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode packet body")
	}
	return pkt, nil
}

func typeOf(pkt any) (PacketType, error) {
	switch pkt.(type) {
	case *Hello:
		return TypeHello, nil
	case *Challenge:
		return TypeChallenge, nil
	case *ChallengeResponse:
		return TypeChallengeResponse, nil
	case *AuthResult:
		return TypeAuthResult, nil
	case *Ping:
		return TypePing, nil
	case *Pong:
		return TypePong, nil
	case *Disconnect:
		return TypeDisconnect, nil
	case *Damage:
		return TypeDamage, nil
	case *Draw:
		return TypeDraw, nil
	case *Ack:
		return TypeAck, nil
	default:
		return 0, errors.Wrapf(ErrInvalidPacket, "unsupported packet %T", pkt)
	}
}

func packetFor(t PacketType) any {
	switch t {
	case TypeHello:
		return &Hello{}
	case TypeChallenge:
		return &Challenge{}
	case TypeChallengeResponse:
		return &ChallengeResponse{}
	case TypeAuthResult:
		return &AuthResult{}
	case TypePing:
		return &Ping{}
	case TypePong:
		return &Pong{}
	case TypeDisconnect:
		return &Disconnect{}
	case TypeDamage:
		return &Damage{}
	case TypeDraw:
		return &Draw{}
	case TypeAck:
		return &Ack{}
	default:
		return nil
	}
}

func encodeBinary(pkt any) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch p := pkt.(type) {
	case *Hello:
		writeStr(buf, p.Username)
		writeU32(buf, uint32(len(p.Digests)))
		for _, d := range p.Digests {
			writeStr(buf, d)
		}
		writeBytes(buf, p.KemKey)
	case *Challenge:
		writeBytes(buf, p.Salt)
		writeStr(buf, p.Digest)
		writeBytes(buf, p.KemCiphertext)
	case *ChallengeResponse:
		writeBytes(buf, p.Response)
		writeBytes(buf, p.ClientSalt)
	case *AuthResult:
		writeBool(buf, p.OK)
		writeStr(buf, p.Reason)
	case *Ping:
		writeI64(buf, p.EchoMillis)
	case *Pong:
		writeI64(buf, p.EchoMillis)
		writeI64(buf, p.ServerMillis)
	case *Disconnect:
		writeStr(buf, p.Reason)
	case *Damage:
		writeU32(buf, p.WID)
		writeU32(buf, uint32(p.X))
		writeU32(buf, uint32(p.Y))
		writeU32(buf, p.W)
		writeU32(buf, p.H)
		writeI64(buf, p.AtMillis)
	case *Draw:
		writeU32(buf, p.WID)
		writeU32(buf, uint32(p.X))
		writeU32(buf, uint32(p.Y))
		writeU32(buf, p.W)
		writeU32(buf, p.H)
		writeStr(buf, p.Encoding)
		writeU64(buf, p.Seq)
		writeBytes(buf, p.Data)
	case *Ack:
		writeU32(buf, p.WID)
		writeU64(buf, p.Seq)
		writeU32(buf, p.DecodeMillis)
	default:
		return nil, errors.Wrapf(ErrInvalidPacket, "unsupported packet %T", pkt)
	}
	return buf.Bytes(), nil
}

func decodeBinary(pkt any, body []byte) error {
	r := bytes.NewReader(body)
	switch p := pkt.(type) {
	case *Hello:
		var err error
		if p.Username, err = readStr(r); err != nil {
			return err
		}
		n, err := readU32(r)
		if err != nil {
			return err
		}
		if n > 64 {
			return errors.Wrap(ErrInvalidPacket, "too many digests")
		}
		p.Digests = make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			d, err := readStr(r)
			if err != nil {
				return err
			}
			p.Digests = append(p.Digests, d)
		}
		if p.KemKey, err = readBytes(r); err != nil {
			return err
		}
	case *Challenge:
		var err error
		if p.Salt, err = readBytes(r); err != nil {
			return err
		}
		if p.Digest, err = readStr(r); err != nil {
			return err
		}
		if p.KemCiphertext, err = readBytes(r); err != nil {
			return err
		}
	case *ChallengeResponse:
		var err error
		if p.Response, err = readBytes(r); err != nil {
			return err
		}
		if p.ClientSalt, err = readBytes(r); err != nil {
			return err
		}
	case *AuthResult:
		var err error
		if p.OK, err = readBool(r); err != nil {
			return err
		}
		if p.Reason, err = readStr(r); err != nil {
			return err
		}
	case *Ping:
		var err error
		if p.EchoMillis, err = readI64(r); err != nil {
			return err
		}
	case *Pong:
		var err error
		if p.EchoMillis, err = readI64(r); err != nil {
			return err
		}
		if p.ServerMillis, err = readI64(r); err != nil {
			return err
		}
	case *Disconnect:
		var err error
		if p.Reason, err = readStr(r); err != nil {
			return err
		}
	case *Damage:
		var err error
		if p.WID, err = readU32(r); err != nil {
			return err
		}
		x, err := readU32(r)
		if err != nil {
			return err
		}
		y, err := readU32(r)
		if err != nil {
			return err
		}
		p.X, p.Y = int32(x), int32(y)
		if p.W, err = readU32(r); err != nil {
			return err
		}
		if p.H, err = readU32(r); err != nil {
			return err
		}
		if p.AtMillis, err = readI64(r); err != nil {
			return err
		}
	case *Draw:
		var err error
		if p.WID, err = readU32(r); err != nil {
			return err
		}
		x, err := readU32(r)
		if err != nil {
			return err
		}
		y, err := readU32(r)
		if err != nil {
			return err
		}
		p.X, p.Y = int32(x), int32(y)
		if p.W, err = readU32(r); err != nil {
			return err
		}
		if p.H, err = readU32(r); err != nil {
			return err
		}
		if p.Encoding, err = readStr(r); err != nil {
			return err
		}
		if p.Seq, err = readU64(r); err != nil {
			return err
		}
		if p.Data, err = readBytes(r); err != nil {
			return err
		}
	case *Ack:
		var err error
		if p.WID, err = readU32(r); err != nil {
			return err
		}
		if p.Seq, err = readU64(r); err != nil {
			return err
		}
		if p.DecodeMillis, err = readU32(r); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrInvalidPacket, "unsupported packet %T", pkt)
	}
	return nil
}

func writeU32(w *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.Write(tmp[:])
}

func writeU64(w *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.Write(tmp[:])
}

func writeI64(w *bytes.Buffer, v int64) { writeU64(w, uint64(v)) }

func writeBool(w *bytes.Buffer, v bool) {
	if v {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func writeStr(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
}

func writeBytes(w *bytes.Buffer, b []byte) {
	writeU32(w, uint32(len(b)))
	w.Write(b)
}

func readU32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, errors.Wrap(ErrInvalidPacket, "truncated field")
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, errors.Wrap(ErrInvalidPacket, "truncated field")
	}
	return binary.BigEndian.Uint64(tmp[:]), nil
}

func readI64(r *bytes.Reader) (int64, error) {
	v, err := readU64(r)
	return int64(v), err
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, errors.Wrap(ErrInvalidPacket, "truncated field")
	}
	return b == 1, nil
}

func readStr(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	if n > 4096 {
		return "", errors.Wrap(ErrInvalidPacket, "string too long")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errors.Wrap(ErrInvalidPacket, "truncated string")
	}
	return string(b), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if int64(n) > int64(r.Len()) {
		return nil, errors.Wrap(ErrInvalidPacket, "truncated bytes")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(ErrInvalidPacket, "truncated bytes")
	}
	return b, nil
}
