package discovery

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Directory: a tiny TCP announce/lookup service for networks without
// multicast. Line protocol: "announce <name> <addr>" and
// "lookup <name>" -> "addr <addr>" or "none".
type Directory struct {
	mu      sync.RWMutex
	entries map[string]string
	ln      net.Listener
}

// NewDirectory returns an empty in-memory directory server.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]string)}
}

// Announce stores name -> addr.
func (d *Directory) Announce(name, addr string) {
	if name == "" || addr == "" {
		return
	}
	d.mu.Lock()
	d.entries[name] = addr
	d.mu.Unlock()
}

// Lookup returns the address registered for name.
func (d *Directory) Lookup(name string) (string, bool) {
	d.mu.RLock()
	addr, ok := d.entries[name]
	d.mu.RUnlock()
	return addr, ok
}

// Serve listens on listenAddr and answers announce/lookup lines.
func (d *Directory) Serve(listenAddr string) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	d.ln = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go d.handle(conn)
	}
}

// Addr returns the bound listen address, once Serve is running.
func (d *Directory) Addr() string {
	if d.ln == nil {
		return ""
	}
	return d.ln.Addr().String()
}

func (d *Directory) Close() error {
	if d.ln != nil {
		return d.ln.Close()
	}
	return nil
}

func (d *Directory) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "announce":
			if len(fields) == 3 {
				d.Announce(fields[1], fields[2])
				fmt.Fprintln(conn, "ok")
			} else {
				fmt.Fprintln(conn, "err")
			}
		case "lookup":
			if len(fields) == 2 {
				if addr, ok := d.Lookup(fields[1]); ok {
					fmt.Fprintln(conn, "addr", addr)
				} else {
					fmt.Fprintln(conn, "none")
				}
			} else {
				fmt.Fprintln(conn, "err")
			}
		default:
			fmt.Fprintln(conn, "err")
		}
	}
}

// directoryPublisher announces to a remote Directory.
type directoryPublisher struct {
	addr string
}

func probeDirectory(addr string) (Publisher, error) {
	// reachability check only; announcements open their own conn
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	conn.Close()
	return &directoryPublisher{addr: addr}, nil
}

func (p *directoryPublisher) Publish(instance, addr string) error {
	conn, err := net.DialTimeout("tcp", p.addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := fmt.Fprintln(conn, "announce", instance, addr); err != nil {
		return err
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(reply) != "ok" {
		return fmt.Errorf("directory refused announcement: %q", strings.TrimSpace(reply))
	}
	return nil
}

func (p *directoryPublisher) Close() error { return nil }
