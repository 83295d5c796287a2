package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dev.c0redev.viewlink/internal/auth"
	"dev.c0redev.viewlink/internal/client"
	"dev.c0redev.viewlink/internal/config"
	"dev.c0redev.viewlink/internal/discovery"
	"dev.c0redev.viewlink/internal/proto"
	"dev.c0redev.viewlink/internal/transport"
)

func startServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	ln, err := transport.Listen("tcp", "127.0.0.1:0", nil)
	require.NoError(t, err)
	srv := New(opts)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return srv, ln.Addr().String()
}

func TestEndToEnd(t *testing.T) {
	pw := []byte("sesame")
	srv, addr := startServer(t, Options{
		Settings:         config.Settings{},
		NewAuthenticator: func(string) auth.Authenticator { return auth.NewPassword(pw) },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, "tcp", addr, client.Options{Username: "alice", Password: pw})
	require.NoError(t, err)
	defer c.Close()

	draws := make(chan *proto.Draw, 8)
	go func() {
		_ = c.Run(func(d *proto.Draw) error {
			draws <- d
			return nil
		})
	}()

	require.NoError(t, c.Damage(1, 0, 0, 64, 48))

	select {
	case d := <-draws:
		require.Equal(t, uint32(1), d.WID)
		require.Equal(t, "synthetic", d.Encoding)
		require.Len(t, d.Data, 64*48)
		require.Equal(t, uint64(1), d.Seq)
	case <-time.After(10 * time.Second):
		t.Fatal("no draw arrived")
	}

	// A second round keeps its own sequence numbering per window.
	require.NoError(t, c.Damage(1, 0, 0, 8, 8))
	select {
	case d := <-draws:
		require.Equal(t, uint64(2), d.Seq)
		require.Len(t, d.Data, 8*8)
	case <-time.After(10 * time.Second):
		t.Fatal("no second draw")
	}

	require.Equal(t, 1, srv.Sessions())
}

func TestEndToEndCipher(t *testing.T) {
	srv, addr := startServer(t, Options{Settings: config.Settings{}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, "tcp", addr, client.Options{Username: "bob", Cipher: true})
	require.NoError(t, err)
	defer c.Close()

	draws := make(chan *proto.Draw, 1)
	go func() {
		_ = c.Run(func(d *proto.Draw) error {
			draws <- d
			return nil
		})
	}()

	require.NoError(t, c.Damage(7, 0, 0, 4, 4))
	select {
	case d := <-draws:
		require.Equal(t, uint32(7), d.WID)
	case <-time.After(10 * time.Second):
		t.Fatal("no draw over encrypted session")
	}
	require.Equal(t, 1, srv.Sessions())
}

func TestRejectedClientNotRegistered(t *testing.T) {
	srv, addr := startServer(t, Options{
		Settings:         config.Settings{},
		NewAuthenticator: func(string) auth.Authenticator { return auth.NewPassword([]byte("right")) },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := client.Dial(ctx, "tcp", addr, client.Options{Username: "eve", Password: []byte("wrong")})
	require.ErrorIs(t, err, client.ErrRejected)
	require.Equal(t, 0, srv.Sessions())
}

type fakePublisher struct {
	mu       sync.Mutex
	instance string
	addr     string
	closed   bool
}

func (f *fakePublisher) Publish(instance, addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instance = instance
	f.addr = addr
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePublisher) snapshot() (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instance, f.addr, f.closed
}

func TestServePublishesDiscovery(t *testing.T) {
	pub := &fakePublisher{}
	reg := discovery.NewRegistryWith(discovery.Backend{
		Name:    "fake",
		Enabled: true,
		Probe:   func() (discovery.Publisher, error) { return pub, nil },
	})

	srv, addr := startServer(t, Options{
		Settings: config.Settings{},
		Registry: reg,
		Name:     "testbox",
	})

	require.Eventually(t, func() bool {
		instance, _, _ := pub.snapshot()
		return instance == "testbox"
	}, 5*time.Second, 10*time.Millisecond)
	_, gotAddr, _ := pub.snapshot()
	require.Equal(t, addr, gotAddr)

	require.NoError(t, srv.Close())
	_, _, closed := pub.snapshot()
	require.True(t, closed)
}
