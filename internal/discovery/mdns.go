package discovery

import (
	"net"
	"strings"

	"github.com/pion/mdns/v2"
	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// mdnsPublisher answers multicast DNS queries for the published
// instance name on the local network.
type mdnsPublisher struct {
	server *mdns.Conn
	conn4  *net.UDPConn
}

func probeMDNS() (Publisher, error) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		return nil, errors.Wrap(err, "resolve mdns address")
	}
	conn4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		return nil, errors.Wrap(err, "listen mdns udp4")
	}
	return &mdnsPublisher{conn4: conn4}, nil
}

func (p *mdnsPublisher) Publish(instance, addr string) error {
	name := instance
	if !strings.HasSuffix(name, ".local") {
		name += ".local"
	}
	var conn6 *ipv6.PacketConn
	server, err := mdns.Server(ipv4.NewPacketConn(p.conn4), conn6, &mdns.Config{
		LocalNames: []string{name},
	})
	if err != nil {
		return errors.Wrap(err, "start mdns responder")
	}
	p.server = server
	return nil
}

func (p *mdnsPublisher) Close() error {
	if p.server != nil {
		return p.server.Close()
	}
	return p.conn4.Close()
}
