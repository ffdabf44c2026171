package bridge_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/mickamy/oophm-bridge/bridge"
	"github.com/mickamy/oophm-bridge/bridgeerr"
	"github.com/mickamy/oophm-bridge/message"
	"github.com/mickamy/oophm-bridge/wire"
)

// rawPeer is a bare, un-Session'd wire reader/writer pair for scripting
// the exact bytes a test wants to observe or send, standing in for a
// collaborator whose internals the test needs to inspect directly.
type rawPeer struct {
	r *wire.Reader
	w *wire.Writer
}

func newRawPeer(conn net.Conn) rawPeer {
	return rawPeer{r: wire.NewReader(conn), w: wire.NewWriter(conn)}
}

// fakeAdapter is a scripthost.Adapter stand-in: Invoke delegates to a
// caller-supplied function so each test can script the exact behavior it
// needs, including calling back into its own Session for nested-callback
// tests.
type fakeAdapter struct {
	invoke func(this wire.Value, method string, args []wire.Value) (wire.Value, bool, error)

	freed []int32
}

func (f *fakeAdapter) Invoke(this wire.Value, method string, args []wire.Value) (wire.Value, bool, error) {
	if f.invoke == nil {
		return wire.Undefined(), false, nil
	}
	return f.invoke(this, method, args)
}

func (f *fakeAdapter) InvokeSpecial(id message.SpecialID, args []wire.Value) (wire.Value, bool, error) {
	return wire.Value{}, true, errors.New("fakeAdapter: InvokeSpecial not scripted for this test")
}

func (f *fakeAdapter) FreeValue(ids []int32) error {
	f.freed = append(f.freed, ids...)
	return nil
}

func (f *fakeAdapter) LoadJsni(source string) error { return nil }

func newActivePair(t *testing.T, adapterA, adapterB *fakeAdapter) (a, b *bridge.Session) {
	t.Helper()
	connA, connB := net.Pipe()
	a = bridge.New(connA, adapterA, nil)
	b = bridge.New(connB, adapterB, nil)
	a.Activate(bridge.ProtocolVersion)
	b.Activate(bridge.ProtocolVersion)
	return a, b
}

func TestHandshakeConnectAndLoadModule(t *testing.T) {
	t.Parallel()

	connClient, connServer := net.Pipe()
	client := bridge.New(connClient, nil, nil)
	server := bridge.New(connServer, &fakeAdapter{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- server.Handshake(func(lm message.LoadModule) bool {
			return lm.ModuleName == "com.example.Module"
		})
	}()

	if err := client.Open("com.example.Module", "test-agent/1.0", "tok"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	if client.Status() != bridge.Active {
		t.Fatalf("client status = %s, want Active", client.Status())
	}
	if server.Status() != bridge.Active {
		t.Fatalf("server status = %s, want Active", server.Status())
	}
	if client.Version() != bridge.ProtocolVersion || server.Version() != bridge.ProtocolVersion {
		t.Fatalf("version mismatch: client=%d server=%d", client.Version(), server.Version())
	}
}

func TestHandshakeRejectedModuleStaysConnecting(t *testing.T) {
	t.Parallel()

	connClient, connServer := net.Pipe()
	client := bridge.New(connClient, nil, nil)
	server := bridge.New(connServer, &fakeAdapter{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- server.Handshake(func(message.LoadModule) bool { return false })
	}()

	err := client.Open("blocked.Module", "ua", "")
	if !errors.Is(err, bridgeerr.Policy) {
		t.Fatalf("Open err = %v, want bridgeerr.Policy", err)
	}
	if serr := <-done; !errors.Is(serr, bridgeerr.Policy) {
		t.Fatalf("Handshake err = %v, want bridgeerr.Policy", serr)
	}
	if server.Status() == bridge.Active {
		t.Fatal("server should not activate a rejected module")
	}
}

func TestCallExceptionPropagatesAsRemoteException(t *testing.T) {
	t.Parallel()

	boom := &fakeAdapter{invoke: func(this wire.Value, method string, args []wire.Value) (wire.Value, bool, error) {
		return wire.String("boom"), true, nil
	}}
	a, b := newActivePair(t, &fakeAdapter{}, boom)

	go func() { _ = b.Serve() }()

	_, err := a.Call(message.Invoke{This: wire.Null(), Method: "explode"})

	var remoteErr *bridgeerr.RemoteException
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Call err = %v, want *bridgeerr.RemoteException", err)
	}
	if remoteErr.Value.Str() != "boom" {
		t.Fatalf("exception value = %q, want %q", remoteErr.Value.Str(), "boom")
	}

	_ = a.Disconnect()
}

func TestNestedCallbackReentrancy(t *testing.T) {
	t.Parallel()

	var bSess *bridge.Session

	adapterA := &fakeAdapter{invoke: func(this wire.Value, method string, args []wire.Value) (wire.Value, bool, error) {
		if method != "inner" {
			return wire.Value{}, true, errors.New("unexpected method on A: " + method)
		}
		return wire.Int(7), false, nil
	}}
	adapterB := &fakeAdapter{}
	adapterB.invoke = func(this wire.Value, method string, args []wire.Value) (wire.Value, bool, error) {
		if method != "outer" {
			return wire.Value{}, true, errors.New("unexpected method on B: " + method)
		}
		inner, err := bSess.Call(message.Invoke{This: wire.Null(), Method: "inner"})
		if err != nil {
			return wire.Value{}, true, err
		}
		return wire.Int(inner.Int64() * 10), false, nil
	}

	a, b := newActivePair(t, adapterA, adapterB)
	bSess = b

	go func() { _ = b.Serve() }()

	result, err := a.Call(message.Invoke{This: wire.Null(), Method: "outer"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Int64() != 70 {
		t.Fatalf("result = %d, want 70", result.Int64())
	}

	_ = a.Disconnect()
}

func TestFreeValueBatchedBeforeNextCall(t *testing.T) {
	t.Parallel()

	connA, connB := net.Pipe()
	a := bridge.New(connA, &fakeAdapter{}, nil)
	a.Activate(bridge.ProtocolVersion)
	peer := newRawPeer(connB)

	var recvTypes []message.Type
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := message.Receive(peer.r)
			if err != nil {
				return
			}
			recvTypes = append(recvTypes, msg.Type())
			if msg.Type() == message.TypeInvoke {
				ret := message.Return{Value: wire.Boolean(true)}
				_ = ret.Send(peer.w)
				return
			}
		}
	}()

	w := a.Remote().Wrap(42)
	w.Release()

	if _, err := a.Call(message.Invoke{This: wire.Null(), Method: "noop"}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	<-done

	if len(recvTypes) != 2 || recvTypes[0] != message.TypeFreeValue || recvTypes[1] != message.TypeInvoke {
		t.Fatalf("recv order = %v, want [FreeValue Invoke]", recvTypes)
	}
}

func TestRevivalRaceCancelsPendingFree(t *testing.T) {
	t.Parallel()

	// This exercises only the Remote table through the session's public
	// accessor; no peer ever reads the pipe, so nothing here sends on
	// the wire.
	a, _ := newActivePair(t, &fakeAdapter{}, &fakeAdapter{})

	w := a.Remote().Wrap(9)
	w.Release()

	revived := a.Remote().Wrap(9)
	if ids := a.Remote().DrainPendingFree(); ids != nil {
		t.Fatalf("DrainPendingFree = %v, want nil after revival", ids)
	}
	if revived.ID() != 9 {
		t.Fatalf("revived id = %d, want 9", revived.ID())
	}
}

func TestQuitEndsServeWithoutError(t *testing.T) {
	t.Parallel()

	a, b := newActivePair(t, &fakeAdapter{}, &fakeAdapter{})

	serveErr := make(chan error, 1)
	go func() { serveErr <- b.Serve() }()

	if err := a.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Serve after peer Quit = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after peer Quit")
	}
}
