// Package transport provides the ordered reliable byte streams
// sessions run over. The protocol engine only sees net.Conn; which
// backend produced it is irrelevant.
package transport

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// Listener accepts session connections.
type Listener interface {
	Accept() (net.Conn, error)
	Addr() net.Addr
	Close() error
}

// Dial connects to addr over the named backend ("tcp" or "quic").
func Dial(ctx context.Context, backend, addr string) (net.Conn, error) {
	switch backend {
	case "", "tcp":
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	case "quic":
		return DialQUIC(ctx, addr, nil)
	default:
		return nil, errors.Errorf("unknown transport %q", backend)
	}
}

// Listen opens a listener for the named backend. QUIC requires a TLS
// config with certificates.
func Listen(backend, addr string, opts *ListenOpts) (Listener, error) {
	switch backend {
	case "", "tcp":
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		return tcpListener{ln}, nil
	case "quic":
		if opts == nil || opts.TLS == nil {
			return nil, errors.New("quic listener needs a TLS config")
		}
		return ListenQUIC(addr, opts.TLS)
	default:
		return nil, errors.Errorf("unknown transport %q", backend)
	}
}

type tcpListener struct {
	net.Listener
}

func (l tcpListener) Accept() (net.Conn, error) { return l.Listener.Accept() }
