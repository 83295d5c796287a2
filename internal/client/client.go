// Package client implements the viewer side: connect, answer the
// challenge, consume draws and keep the server's latency statistics
// fed with acks and pings.
package client

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dev.c0redev.viewlink/internal/auth"
	"dev.c0redev.viewlink/internal/crypto"
	"dev.c0redev.viewlink/internal/proto"
	"dev.c0redev.viewlink/internal/session"
	"dev.c0redev.viewlink/internal/transport"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// ErrRejected: the server refused the session. The reason comes from
// the auth result packet.
var ErrRejected = errors.New("session rejected")

// Options configures a connection attempt.
type Options struct {
	Username string
	Password []byte

	// Cipher requests an encrypted session via key encapsulation.
	Cipher bool

	// Outgoing codec flag bits and compression level.
	Flags byte
	Level uint8
}

// Client is one authenticated viewer connection.
type Client struct {
	conn *session.Conn
	opts Options
}

// Dial connects over the named transport backend and runs the
// handshake. ctx bounds both.
func Dial(ctx context.Context, backend, addr string, opts Options) (*Client, error) {
	nc, err := transport.Dial(ctx, backend, addr)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	c, err := Connect(ctx, nc, opts)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}

// Connect runs the client side of hello/challenge/response/result on
// an established connection.
func Connect(ctx context.Context, nc net.Conn, opts Options) (*Client, error) {
	conn := session.NewConn(nc, opts.Flags, opts.Level)
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
		defer conn.SetDeadline(time.Time{})
	}

	var decap *crypto.DecapsulationKey
	hello := &proto.Hello{Username: opts.Username, Digests: auth.SupportedDigests()}
	if opts.Cipher {
		encKey, dk, err := crypto.GenerateKeyPair()
		if err != nil {
			return nil, errors.Wrap(err, "generate key pair")
		}
		hello.KemKey = encKey
		decap = dk
	}
	if err := conn.Send(hello); err != nil {
		return nil, errors.Wrap(err, "send hello")
	}

	var sessionKey []byte
	for {
		pkt, err := conn.Recv()
		if err != nil {
			return nil, errors.Wrap(err, "handshake read")
		}
		switch p := pkt.(type) {
		case *proto.Challenge:
			if len(p.KemCiphertext) > 0 {
				if decap == nil {
					return nil, errors.New("unsolicited cipher material")
				}
				sessionKey, err = crypto.Decapsulate(decap, p.KemCiphertext)
				if err != nil {
					return nil, errors.Wrap(err, "decapsulate")
				}
			}
			resp, err := answer(p, opts.Password)
			if err != nil {
				return nil, err
			}
			if err := conn.Send(resp); err != nil {
				return nil, errors.Wrap(err, "send response")
			}
		case *proto.AuthResult:
			if !p.OK {
				return nil, errors.Wrapf(ErrRejected, "%s", p.Reason)
			}
			if sessionKey != nil {
				conn.EnableCipher(sessionKey)
			}
			return &Client{conn: conn, opts: opts}, nil
		default:
			return nil, errors.Errorf("unexpected handshake packet %T", pkt)
		}
	}
}

// answer computes the challenge response: digest of the password over
// the combined server and client salts.
func answer(ch *proto.Challenge, password []byte) (*proto.ChallengeResponse, error) {
	if ch.Digest == "" || ch.Digest == "none" {
		return &proto.ChallengeResponse{}, nil
	}
	if password == nil {
		return nil, errors.New("challenged but no password configured")
	}
	clientSalt, err := auth.NewSalt()
	if err != nil {
		return nil, err
	}
	digest, err := auth.GenDigest(ch.Digest, password, auth.CombineSalts(ch.Salt, clientSalt))
	if err != nil {
		return nil, err
	}
	return &proto.ChallengeResponse{Response: digest, ClientSalt: clientSalt}, nil
}

// Damage asks the server to refresh a window region.
func (c *Client) Damage(wid uint32, x, y int32, w, h uint32) error {
	return c.conn.Send(&proto.Damage{
		WID: wid, X: x, Y: y, W: w, H: h,
		AtMillis: time.Now().UnixMilli(),
	})
}

// Ping probes the server.
func (c *Client) Ping() error {
	return c.conn.Send(&proto.Ping{EchoMillis: time.Now().UnixMilli()})
}

// Run consumes packets until the connection ends. Each draw is handed
// to onDraw; the time it takes is reported back as the decode time in
// the ack.
func (c *Client) Run(onDraw func(*proto.Draw) error) error {
	for {
		pkt, err := c.conn.Recv()
		if err != nil {
			return err
		}
		switch p := pkt.(type) {
		case *proto.Draw:
			start := time.Now()
			if err := onDraw(p); err != nil {
				return err
			}
			ack := &proto.Ack{
				WID:          p.WID,
				Seq:          p.Seq,
				DecodeMillis: uint32(time.Since(start).Milliseconds()),
			}
			if err := c.conn.Send(ack); err != nil {
				return err
			}
		case *proto.Ping:
			err := c.conn.Send(&proto.Pong{
				EchoMillis:   p.EchoMillis,
				ServerMillis: time.Now().UnixMilli(),
			})
			if err != nil {
				return err
			}
		case *proto.Pong:
			rtt := time.Now().UnixMilli() - p.EchoMillis
			logger.WithField("rtt_ms", rtt).Debug("pong")
		case *proto.Disconnect:
			return errors.Errorf("server closed session: %s", p.Reason)
		default:
			logger.Warnf("unexpected packet %T", pkt)
		}
	}
}

// Close announces the disconnect and closes the connection.
func (c *Client) Close() error {
	_ = c.conn.Send(&proto.Disconnect{Reason: "client closing"})
	return c.conn.Close()
}
