package transport

import (
	"context"
	"testing"
	"time"
)

func TestTCPRoundTrip(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := conn.Read(buf); err != nil {
			done <- err
			return
		}
		_, err = conn.Write(buf)
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("echo mismatch: %q", buf)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := Dial(context.Background(), "carrier-pigeon", "x"); err == nil {
		t.Fatal("expected error for unknown dial backend")
	}
	if _, err := Listen("carrier-pigeon", "x", nil); err == nil {
		t.Fatal("expected error for unknown listen backend")
	}
}

func TestQUICListenerNeedsTLS(t *testing.T) {
	if _, err := Listen("quic", "127.0.0.1:0", nil); err == nil {
		t.Fatal("expected error for quic listener without TLS")
	}
}
