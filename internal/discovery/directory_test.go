package discovery

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startDirectory(t *testing.T) *Directory {
	t.Helper()
	d := NewDirectory()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d.ln = ln
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go d.handle(conn)
		}
	}()
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDirectoryAnnounceLookup(t *testing.T) {
	d := startDirectory(t)

	p, err := probeDirectory(d.Addr())
	require.NoError(t, err)
	require.NoError(t, p.Publish("office-display", "10.0.0.5:14500"))

	addr, ok := d.Lookup("office-display")
	require.True(t, ok)
	require.Equal(t, "10.0.0.5:14500", addr)
}

func TestDirectoryLookupOverWire(t *testing.T) {
	d := startDirectory(t)
	d.Announce("lab", "10.0.0.9:14500")

	conn, err := net.DialTimeout("tcp", d.Addr(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)
	fmt.Fprintln(conn, "lookup lab")
	reply, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "addr 10.0.0.9:14500", strings.TrimSpace(reply))

	fmt.Fprintln(conn, "lookup ghost")
	reply, err = r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "none", strings.TrimSpace(reply))
}

func TestProbeDirectoryUnreachable(t *testing.T) {
	_, err := probeDirectory("127.0.0.1:1")
	require.Error(t, err)
}
