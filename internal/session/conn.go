package session

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"dev.c0redev.viewlink/internal/crypto"
	"dev.c0redev.viewlink/internal/proto"
)

// ErrCipherRequired: an encrypted frame arrived before the session
// key was agreed.
var ErrCipherRequired = errors.New("encrypted frame without session key")

// Conn turns a byte stream into a typed packet stream: encode,
// compress, optionally seal, frame. One Conn per net.Conn; Send and
// Recv are each safe for one goroutine at a time.
type Conn struct {
	nc net.Conn

	writeMu sync.Mutex
	index   uint8

	payloadBuf []byte

	flags byte
	level uint8

	keyMu sync.RWMutex
	key   []byte
}

// NewConn wraps nc. flags selects the outgoing serialization and
// compression scheme bits, level the compression level (0 = verbatim).
func NewConn(nc net.Conn, flags byte, level uint8) *Conn {
	return &Conn{nc: nc, flags: flags, level: level}
}

// EnableCipher arms sealing with the agreed session key. Frames sent
// after this carry the cipher flag; encrypted incoming frames are
// opened with the same key.
func (c *Conn) EnableCipher(key []byte) {
	c.keyMu.Lock()
	c.key = key
	c.keyMu.Unlock()
}

func (c *Conn) sessionKey() []byte {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()
	return c.key
}

// Send encodes and writes one packet.
func (c *Conn) Send(pkt any) error {
	body, err := proto.EncodePacket(c.flags, pkt)
	if err != nil {
		return err
	}
	payload, flags, err := proto.Compress(c.flags, c.level, body)
	if err != nil {
		return err
	}
	if key := c.sessionKey(); key != nil {
		payload, err = crypto.Seal(key, payload)
		if err != nil {
			return err
		}
		flags |= proto.FlagCipher
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	f := &proto.Frame{Flags: flags, Level: c.level, Index: c.index, Payload: payload}
	c.index++
	return proto.WriteFrame(c.nc, f)
}

// Recv reads and decodes one packet. The internal read buffer is
// reused across calls; decoded packets do not alias it.
func (c *Conn) Recv() (any, error) {
	f, err := proto.ReadFrame(c.nc, c.payloadBuf)
	if err != nil {
		return nil, err
	}
	if cap(f.Payload) > cap(c.payloadBuf) {
		c.payloadBuf = f.Payload[:cap(f.Payload)]
	}
	payload := f.Payload
	if f.Flags&proto.FlagCipher != 0 {
		key := c.sessionKey()
		if key == nil {
			return nil, ErrCipherRequired
		}
		payload, err = crypto.Open(key, payload)
		if err != nil {
			return nil, errors.Wrap(err, "open frame")
		}
	}
	body, err := proto.Decompress(f.Flags, f.Level, payload)
	if err != nil {
		return nil, err
	}
	return proto.DecodePacket(f.Flags, body)
}

func (c *Conn) SetDeadline(t time.Time) error { return c.nc.SetDeadline(t) }

func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

func (c *Conn) Close() error { return c.nc.Close() }
