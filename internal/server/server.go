// Package server runs the display-side engine: it accepts
// connections, authenticates them, and drives a batched update
// pipeline per damaged window.
package server

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dev.c0redev.viewlink/internal/auth"
	"dev.c0redev.viewlink/internal/capture"
	"dev.c0redev.viewlink/internal/config"
	"dev.c0redev.viewlink/internal/discovery"
	"dev.c0redev.viewlink/internal/proto"
	"dev.c0redev.viewlink/internal/session"
	"dev.c0redev.viewlink/internal/transport"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// Options configures a Server. NewAuthenticator is called once per
// connection, with the username from the hello: authenticator
// instances are single-session and issue at most one challenge.
type Options struct {
	Settings         config.Settings
	NewAuthenticator func(username string) auth.Authenticator
	Source           capture.Source
	Registry         *discovery.Registry
	Name             string

	// Outgoing codec: serialization/compression flag bits and level.
	Flags byte
	Level uint8
}

// Server owns the accept loop and the live session set.
type Server struct {
	opts Options

	mu        sync.Mutex
	ln        transport.Listener
	sessions  map[uuid.UUID]*session.Session
	publisher discovery.Publisher
	closed    bool
	wg        sync.WaitGroup
}

func New(opts Options) *Server {
	if opts.NewAuthenticator == nil {
		opts.NewAuthenticator = func(string) auth.Authenticator { return auth.NewNone() }
	}
	if opts.Source == nil {
		opts.Source = capture.NewSynthetic()
	}
	return &Server{opts: opts, sessions: make(map[uuid.UUID]*session.Session)}
}

// Serve accepts on ln until Close. It publishes the instance through
// the discovery registry when one is configured; discovery being
// unavailable is not an error.
func (s *Server) Serve(ln transport.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return net.ErrClosed
	}
	s.ln = ln
	s.mu.Unlock()

	if s.opts.Registry != nil {
		if pub, ok := s.opts.Registry.GetPublisher(); ok {
			if err := pub.Publish(s.opts.Name, ln.Addr().String()); err != nil {
				logger.WithError(err).Warn("discovery publish failed")
				_ = pub.Close()
			} else {
				s.mu.Lock()
				s.publisher = pub
				s.mu.Unlock()
			}
		}
	}

	logger.WithField("addr", ln.Addr().String()).Info("listening")
	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(nc)
		}()
	}
}

func (s *Server) handle(nc net.Conn) {
	sess := session.New(nc, s.opts.NewAuthenticator, s.opts.Settings, s.opts.Flags, s.opts.Level)
	log := logger.WithFields(logrus.Fields{"session": sess.ID, "remote": nc.RemoteAddr()})

	authTimeout := time.Duration(s.opts.Settings.Int("AUTH_TIMEOUT_MS", 10000, 100, 120000)) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	err := sess.Handshake(ctx)
	cancel()
	if err != nil {
		log.WithError(err).Info("handshake failed")
		_ = sess.Close()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = sess.Close()
		return
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID)
		s.mu.Unlock()
		_ = sess.Close()
	}()

	trk := &tracker{}
	pipelines := make(map[uint32]*pipeline)
	pipe := func(wid uint32) *pipeline {
		if p, ok := pipelines[wid]; ok {
			return p
		}
		p := newPipeline(sess, wid, s.opts.Source, trk)
		pipelines[wid] = p
		return p
	}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go s.pingLoop(sess, stopPing)

	for {
		pkt, err := sess.Conn.Recv()
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Debug("read loop ended")
			}
			return
		}
		switch p := pkt.(type) {
		case *proto.Damage:
			pipe(p.WID).Damage(p)
		case *proto.Ack:
			pipe(p.WID).Ack(p)
		case *proto.Ping:
			err := sess.Conn.Send(&proto.Pong{
				EchoMillis:   p.EchoMillis,
				ServerMillis: time.Now().UnixMilli(),
			})
			if err != nil {
				return
			}
		case *proto.Pong:
			rtt := float64(time.Now().UnixMilli()-p.EchoMillis) / 1000.0
			if rtt >= 0 {
				trk.RecordClientLatency(time.Now(), rtt)
			}
		case *proto.Disconnect:
			log.WithField("reason", p.Reason).Info("client disconnected")
			return
		default:
			log.Warnf("unexpected packet %T", pkt)
		}
	}
}

// pingLoop probes the client so the latency factor has samples even
// when no draws are in flight.
func (s *Server) pingLoop(sess *session.Session, stop <-chan struct{}) {
	interval := time.Duration(s.opts.Settings.Int("PING_INTERVAL_MS", 1000, 100, 60000)) * time.Millisecond
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := sess.Conn.Send(&proto.Ping{EchoMillis: time.Now().UnixMilli()}); err != nil {
				return
			}
		}
	}
}

// Sessions reports the live session count.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops accepting, tears every session down and withdraws the
// discovery advertisement.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	pub := s.publisher
	sessions := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, sess := range sessions {
		_ = sess.Close()
	}
	if pub != nil {
		_ = pub.Close()
	}
	s.wg.Wait()
	return nil
}
