// Package session binds one accepted connection to its
// authenticator, its packet codec and its per-window batch
// controllers, and owns their teardown.
package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dev.c0redev.viewlink/internal/auth"
	"dev.c0redev.viewlink/internal/batch"
	"dev.c0redev.viewlink/internal/config"
	"dev.c0redev.viewlink/internal/crypto"
	"dev.c0redev.viewlink/internal/proto"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrUnexpectedPacket = errors.New("unexpected packet during handshake")
	ErrClosed           = errors.New("session closed")
)

// digestNone marks a challenge sent only to carry cipher material;
// the client answers with an empty response.
const digestNone = "none"

var noDeadline time.Time

// Session is the server-side state for one client connection.
type Session struct {
	ID       uuid.UUID
	Conn     *Conn
	Username string

	newAuth  func(username string) auth.Authenticator
	settings config.Settings

	mu          sync.Mutex
	controllers map[uint32]*batch.Controller
	challenge   *auth.Challenge
	closed      bool
}

// New wraps an accepted connection. newAuth builds the authenticator
// once the client has named itself; flags and level configure the
// outgoing codec.
func New(nc net.Conn, newAuth func(username string) auth.Authenticator, settings config.Settings, flags byte, level uint8) *Session {
	return &Session{
		ID:          uuid.New(),
		Conn:        NewConn(nc, flags, level),
		newAuth:     newAuth,
		settings:    settings,
		controllers: make(map[uint32]*batch.Controller),
	}
}

// Handshake runs the server side of hello/challenge/response/result.
// The caller enforces the time limit through ctx; the authenticator
// itself never blocks on timers.
func (s *Session) Handshake(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.Conn.SetDeadline(deadline); err != nil {
			return err
		}
		defer s.Conn.SetDeadline(noDeadline)
	}

	pkt, err := s.Conn.Recv()
	if err != nil {
		return errors.Wrap(err, "read hello")
	}
	hello, ok := pkt.(*proto.Hello)
	if !ok {
		return ErrUnexpectedPacket
	}
	s.Username = hello.Username
	authenticator := s.newAuth(hello.Username)

	var sessionKey, kemCiphertext []byte
	if len(hello.KemKey) > 0 {
		sessionKey, kemCiphertext, err = crypto.Encapsulate(hello.KemKey)
		if err != nil {
			_ = s.Conn.Send(&proto.AuthResult{Reason: "bad encapsulation key"})
			return errors.Wrap(err, "encapsulate")
		}
	}

	if authenticator.RequiresChallenge() {
		ch, err := authenticator.GetChallenge(hello.Digests)
		if err != nil {
			_ = s.Conn.Send(&proto.AuthResult{Reason: err.Error()})
			return err
		}
		s.mu.Lock()
		s.challenge = ch
		s.mu.Unlock()
		err = s.Conn.Send(&proto.Challenge{
			Salt:          ch.Salt,
			Digest:        ch.Digest,
			KemCiphertext: kemCiphertext,
		})
		if err != nil {
			return errors.Wrap(err, "send challenge")
		}
		resp, err := s.recvResponse()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.challenge = nil
		s.mu.Unlock()
		ok, err := authenticator.Authenticate(resp.Response, resp.ClientSalt)
		if err != nil {
			_ = s.Conn.Send(&proto.AuthResult{Reason: "authentication error"})
			return err
		}
		if !ok {
			_ = s.Conn.Send(&proto.AuthResult{Reason: "credentials rejected"})
			return ErrAuthFailed
		}
	} else if kemCiphertext != nil {
		// No credential challenge, but the cipher material still has
		// to reach the client before the result.
		err = s.Conn.Send(&proto.Challenge{Digest: digestNone, KemCiphertext: kemCiphertext})
		if err != nil {
			return errors.Wrap(err, "send challenge")
		}
		if _, err := s.recvResponse(); err != nil {
			return err
		}
	}

	if err := s.Conn.Send(&proto.AuthResult{OK: true}); err != nil {
		return errors.Wrap(err, "send result")
	}
	if sessionKey != nil {
		s.Conn.EnableCipher(sessionKey)
	}
	logger.WithFields(logrus.Fields{
		"session":  s.ID,
		"username": s.Username,
		"cipher":   sessionKey != nil,
	}).Info("session authenticated")
	return nil
}

func (s *Session) recvResponse() (*proto.ChallengeResponse, error) {
	pkt, err := s.Conn.Recv()
	if err != nil {
		return nil, errors.Wrap(err, "read challenge response")
	}
	resp, ok := pkt.(*proto.ChallengeResponse)
	if !ok {
		return nil, ErrUnexpectedPacket
	}
	return resp, nil
}

// Controller returns the batch controller for the window, creating it
// on first use.
func (s *Session) Controller(wid uint32) *batch.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctl, ok := s.controllers[wid]; ok {
		return ctl
	}
	ctl := batch.NewController(batch.NewConfig(wid, s.settings))
	s.controllers[wid] = ctl
	return ctl
}

// Controllers snapshots the current set.
func (s *Session) Controllers() []*batch.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*batch.Controller, 0, len(s.controllers))
	for _, ctl := range s.controllers {
		out = append(out, ctl)
	}
	return out
}

// Close tears the session down: connection closed, every controller
// cleaned up, any unconsumed challenge discarded. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.challenge != nil {
		logger.WithField("session", s.ID).Debug("discarding unconsumed challenge")
		s.challenge = nil
	}
	ctls := make([]*batch.Controller, 0, len(s.controllers))
	for _, ctl := range s.controllers {
		ctls = append(ctls, ctl)
	}
	s.controllers = make(map[uint32]*batch.Controller)
	s.mu.Unlock()

	for _, ctl := range ctls {
		ctl.Config.Cleanup()
	}
	return s.Conn.Close()
}
