package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const alpnProto = "viewlink/1"

// streamConn wraps quic.Stream as net.Conn.
type streamConn struct {
	*quic.Stream
	conn *quic.Conn
}

func (c *streamConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *streamConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *streamConn) Close() error {
	_ = c.Stream.Close()
	return c.conn.CloseWithError(0, "")
}

// DefaultQUICClientTLS is the TLS config used when a client dials
// without one. Verification is skipped; sessions authenticate at the
// protocol layer.
func DefaultQUICClientTLS() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
		NextProtos:         []string{alpnProto},
	}
}

// DialQUIC dials addr, opens one stream and returns it as net.Conn.
func DialQUIC(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	if tlsConfig == nil {
		tlsConfig = DefaultQUICClientTLS()
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, err
	}
	return &streamConn{Stream: stream, conn: conn}, nil
}

// ListenOpts carries backend-specific listener settings.
type ListenOpts struct {
	TLS *tls.Config
}

type quicListener struct {
	ln *quic.Listener
}

// ListenQUIC listens on addr; tlsConfig must carry certificates.
func ListenQUIC(addr string, tlsConfig *tls.Config) (Listener, error) {
	cfg := tlsConfig.Clone()
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{alpnProto}
	}
	ln, err := quic.ListenAddr(addr, cfg, &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &quicListener{ln: ln}, nil
}

// Accept waits for a connection and its first stream.
func (l *quicListener) Accept() (net.Conn, error) {
	conn, err := l.ln.Accept(context.Background())
	if err != nil {
		return nil, err
	}
	stream, err := conn.AcceptStream(context.Background())
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, err
	}
	return &streamConn{Stream: stream, conn: conn}, nil
}

func (l *quicListener) Addr() net.Addr { return l.ln.Addr() }
func (l *quicListener) Close() error   { return l.ln.Close() }
