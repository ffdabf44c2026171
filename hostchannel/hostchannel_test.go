package hostchannel_test

import (
	"net"
	"testing"
	"time"

	"github.com/mickamy/oophm-bridge/allowlist"
	"github.com/mickamy/oophm-bridge/hostchannel"
)

func TestConnectDeniedByAllowList(t *testing.T) {
	t.Parallel()

	list, err := allowlist.New([]string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("allowlist.New: %v", err)
	}

	_, err = hostchannel.Connect(list, "127.0.0.1", 1, time.Second)
	if err == nil {
		t.Fatal("expected denial error")
	}
}

func TestAcceptReadWriteFlush(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	ch := hostchannel.Accept(server)

	go func() {
		buf := make([]byte, 5)
		_, _ = client.Read(buf)
	}()

	if _, err := ch.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := ch.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()
	defer client.Close()

	ch := hostchannel.Accept(server)
	if !ch.IsConnected() {
		t.Fatal("expected connected immediately after Accept")
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if ch.IsConnected() {
		t.Fatal("expected disconnected after Close")
	}
}

func TestRemoteAddrEmptyAfterClose(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()
	defer client.Close()

	ch := hostchannel.Accept(server)
	_ = ch.Close()

	if addr := ch.RemoteAddr(); addr != "" {
		t.Fatalf("RemoteAddr = %q, want empty after Close", addr)
	}
}
