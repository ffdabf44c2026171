// Package bridge implements the session engine of spec.md §4.4: the
// reentrant pump that multiplexes outbound calls and inbound
// server-initiated callbacks on one TCP stream, preserving nesting so
// either side may re-enter the other while a call is in flight.
package bridge

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mickamy/oophm-bridge/bridgeerr"
	"github.com/mickamy/oophm-bridge/broker"
	"github.com/mickamy/oophm-bridge/callfmt"
	"github.com/mickamy/oophm-bridge/event"
	"github.com/mickamy/oophm-bridge/message"
	"github.com/mickamy/oophm-bridge/objtable"
	"github.com/mickamy/oophm-bridge/scripthost"
	"github.com/mickamy/oophm-bridge/wire"
)

// Status is the session's connection status enum (spec.md §3).
type Status int

const (
	Disconnected Status = iota
	Connecting
	Active
	Draining
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Active:
		return "Active"
	case Draining:
		return "Draining"
	}
	return "Unknown"
}

// Conn is the minimal surface the engine needs from the byte-level
// socket (spec.md §1's "byte-level socket" collaborator): a closable
// stream. hostchannel.Channel satisfies this with a real net.Conn.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// tapConn wraps a Conn so every byte that crosses it is mirrored to the
// optional event broker's raw-tap subscribers (SPEC_FULL.md §4.7), in
// addition to being decoded normally by the wire codec. A nil broker
// makes this a transparent passthrough.
type tapConn struct {
	Conn
	broker *broker.Broker
}

func (t *tapConn) Read(p []byte) (int, error) {
	n, err := t.Conn.Read(p)
	if n > 0 {
		t.broker.PublishRaw(p[:n])
	}
	return n, err
}

func (t *tapConn) Write(p []byte) (int, error) {
	n, err := t.Conn.Write(p)
	if n > 0 {
		t.broker.PublishRaw(p[:n])
	}
	return n, err
}

// Flush forwards to the wrapped Conn's Flush, if it has one, so
// wire.Writer.Flush still reaches a buffered transport like
// hostchannel.Channel through the tap.
func (t *tapConn) Flush() error {
	if f, ok := t.Conn.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Session owns the socket, the two object tables, the negotiated
// protocol version, and the connection status (spec.md §3). It assumes
// serial access: all engine methods are meant to be called from a single
// goroutine, matching the single-threaded cooperative model of spec.md
// §5.
type Session struct {
	id      string
	conn    Conn
	r       *wire.Reader
	w       *wire.Writer
	local   *objtable.Local
	remote  *objtable.Remote
	adapter scripthost.Adapter
	broker  *broker.Broker

	mu      sync.Mutex
	status  Status
	version int32
}

// New wraps conn in a Session. adapter may be nil only if the session
// will never receive a server-initiated Invoke/InvokeSpecial/LoadJsni
// (e.g. a pure test harness); any real deployment supplies one. b is the
// optional event broker (nil is a valid, inert choice).
func New(conn Conn, adapter scripthost.Adapter, b *broker.Broker) *Session {
	tapped := &tapConn{Conn: conn, broker: b}
	return &Session{
		id:      uuid.New().String(),
		conn:    conn,
		r:       wire.NewReader(tapped),
		w:       wire.NewWriter(tapped),
		local:   objtable.NewLocal(),
		remote:  objtable.NewRemote(),
		adapter: adapter,
		broker:  b,
		status:  Connecting,
	}
}

// ID returns the session's internal correlation id (a uuid, assigned at
// construction), used only for observability — it never appears on the
// wire.
func (s *Session) ID() string { return s.id }

// Local returns the session's L table (local scripting objects).
func (s *Session) Local() *objtable.Local { return s.local }

// Remote returns the session's R table (remote program object wrappers).
func (s *Session) Remote() *objtable.Remote { return s.remote }

// Status reports the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Version reports the protocol version negotiated by LoadModule, or 0
// before the handshake completes.
func (s *Session) Version() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Activate transitions the session to Active once the LoadModule
// handshake (spec.md §6, scenario 1) has completed, recording the
// negotiated version.
func (s *Session) Activate(version int32) {
	s.mu.Lock()
	s.version = version
	s.status = Active
	s.mu.Unlock()
}

// ProtocolVersion is the version this session negotiates (spec.md §4.2,
// "This spec defines version 2").
const ProtocolVersion int32 = 2

// Open performs the plugin side of the LoadModule handshake (spec.md
// §6, scenario 1): it sends LoadModule and blocks for the server's
// Return, activating the session on a non-exception Boolean true reply.
func (s *Session) Open(moduleName, userAgent, sessionToken string) error {
	s.mu.Lock()
	if s.status != Connecting {
		s.mu.Unlock()
		return fmt.Errorf("%w: session not connecting (%s)", bridgeerr.Terminated, s.status)
	}
	s.mu.Unlock()

	lm := message.LoadModule{
		Version:      ProtocolVersion,
		ModuleName:   moduleName,
		UserAgent:    userAgent,
		SessionToken: sessionToken,
	}
	if err := lm.Send(s.w); err != nil {
		return s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
	}
	if err := s.w.Flush(); err != nil {
		return s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
	}
	s.emitEvent("send", lm)

	msg, err := message.Receive(s.r)
	if err != nil {
		return s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
	}
	s.emitEvent("recv", msg)

	ret, ok := msg.(message.Return)
	if !ok {
		return s.fatal(fmt.Errorf("%w: expected Return from LoadModule, got %T", bridgeerr.Protocol, msg))
	}
	if ret.Exception || !ret.Value.Equal(wire.Boolean(true)) {
		return s.fatal(fmt.Errorf("%w: server refused LoadModule", bridgeerr.Policy))
	}

	s.Activate(lm.Version)
	return nil
}

// Handshake performs the server side of the LoadModule handshake: it
// blocks for the plugin's LoadModule, replies Return(Boolean true), and
// activates the session. accept returns false to refuse the module
// (e.g. an unrecognized session token), in which case Handshake replies
// with an exception instead and leaves the session Connecting.
func (s *Session) Handshake(accept func(message.LoadModule) bool) error {
	s.mu.Lock()
	if s.status != Connecting {
		s.mu.Unlock()
		return fmt.Errorf("%w: session not connecting (%s)", bridgeerr.Terminated, s.status)
	}
	s.mu.Unlock()

	msg, err := message.Receive(s.r)
	if err != nil {
		return s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
	}
	s.emitEvent("recv", msg)

	lm, ok := msg.(message.LoadModule)
	if !ok {
		return s.fatal(fmt.Errorf("%w: expected LoadModule, got %T", bridgeerr.Protocol, msg))
	}

	ok = accept == nil || accept(lm)
	ret := message.Return{Value: wire.Boolean(ok)}
	if !ok {
		ret.Exception = true
		ret.Value = wire.String("bridge: module rejected")
	}
	if err := ret.Send(s.w); err != nil {
		return s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
	}
	if err := s.w.Flush(); err != nil {
		return s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
	}
	s.emitEvent("send", ret)

	if !ok {
		return fmt.Errorf("%w: module rejected", bridgeerr.Policy)
	}
	s.Activate(lm.Version)
	return nil
}

// fatal marks the session unusable: any I/O failure or protocol
// violation tears the whole session down (spec.md §4.4 "Failure
// recovery") rather than trying to recover. Subsequent Call/Serve
// attempts fail immediately with bridgeerr.Terminated.
func (s *Session) fatal(err error) error {
	s.mu.Lock()
	already := s.status == Disconnected
	s.status = Disconnected
	s.mu.Unlock()

	if !already {
		_ = s.conn.Close()
	}
	return err
}

// Disconnect performs the orderly shutdown of spec.md §4.4: transitions
// Active -> Draining, sends Quit, flushes, and closes the socket. Asking
// to disconnect an already-disconnected session is tolerated and returns
// a benign, non-fatal error rather than panicking or double-closing.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.status == Disconnected {
		s.mu.Unlock()
		return fmt.Errorf("%w: already disconnected", bridgeerr.Terminated)
	}
	s.status = Draining
	s.mu.Unlock()

	q := message.Quit{}
	sendErr := q.Send(s.w)
	if sendErr == nil {
		sendErr = s.w.Flush()
	}
	s.emitEvent("send", q)

	s.mu.Lock()
	s.status = Disconnected
	s.mu.Unlock()

	closeErr := s.conn.Close()
	if sendErr != nil {
		return fmt.Errorf("%w: %v", bridgeerr.IO, sendErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: %v", bridgeerr.IO, closeErr)
	}
	return nil
}

// Call sends msg — draining any pending-free batch ahead of it per
// spec.md §4.3 — and blocks in the reentrant pump until the matching
// Return arrives, a fatal error occurs, or the peer sends Quit. This is
// the engine's one public blocking operation (spec.md §4.4).
func (s *Session) Call(msg message.Message) (wire.Value, error) {
	s.mu.Lock()
	if s.status != Active {
		s.mu.Unlock()
		return wire.Value{}, fmt.Errorf("%w: session not active (%s)", bridgeerr.Terminated, s.status)
	}
	s.mu.Unlock()

	if err := s.sendWithFreeBatch(msg); err != nil {
		return wire.Value{}, err
	}

	ret, err := s.pump(true)
	if err != nil {
		return wire.Value{}, err
	}
	if ret == nil {
		// Peer sent Quit instead of a Return while this call was in flight.
		return wire.Value{}, fmt.Errorf("%w: peer sent Quit while a call was in flight", bridgeerr.Terminated)
	}
	if ret.Exception {
		return wire.Value{}, &bridgeerr.RemoteException{Value: ret.Value}
	}
	return ret.Value, nil
}

// Serve runs the engine's background-like loop: it dispatches inbound
// messages to the scripting-host adapter indefinitely, until the peer
// sends Quit (a normal, non-error return) or a fatal error occurs. This
// is the top-level entry point a daemon calls once the handshake is
// complete and it has no outbound call of its own to make.
func (s *Session) Serve() error {
	s.mu.Lock()
	if s.status != Active {
		s.mu.Unlock()
		return fmt.Errorf("%w: session not active (%s)", bridgeerr.Terminated, s.status)
	}
	s.mu.Unlock()

	_, err := s.pump(false)
	return err
}

// pump is the single reentrant loop shared by Call (expectReturn=true)
// and Serve (expectReturn=false); see spec.md §4.4 for the full
// dispatch table. It is invoked recursively whenever a handler, while
// processing a server-initiated Invoke, issues an outbound Invoke that
// calls back into Call — each Return matches the innermost outstanding
// Call, by construction of the Go call stack.
func (s *Session) pump(expectReturn bool) (*message.Return, error) {
	for {
		if err := s.w.Flush(); err != nil {
			return nil, s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
		}

		msg, err := message.Receive(s.r)
		if err != nil {
			return nil, s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
		}
		s.emitEvent("recv", msg)

		switch m := msg.(type) {
		case message.Invoke:
			if err := s.handleInvoke(m); err != nil {
				return nil, err
			}
		case message.InvokeSpecial:
			if err := s.handleInvokeSpecial(m); err != nil {
				return nil, err
			}
		case message.FreeValue:
			s.handleFreeValue(m)
		case message.LoadJsni:
			s.handleLoadJsni(m)
		case message.Return:
			if !expectReturn {
				return nil, s.fatal(fmt.Errorf("%w: unexpected Return outside call()", bridgeerr.Protocol))
			}
			return &m, nil
		case message.Quit:
			s.setStatus(Disconnected)
			_ = s.conn.Close()
			return nil, nil
		default:
			return nil, s.fatal(fmt.Errorf("%w: unhandled message type %T", bridgeerr.Protocol, msg))
		}
	}
}

// sendWithFreeBatch implements the free-batching rule of spec.md §4.3:
// before any outbound Invoke, InvokeSpecial, or Return, the session's
// pending-free queue is drained into a single FreeValue naming every
// queued id, sent immediately ahead of msg. If the queue is empty, no
// FreeValue is sent at all.
func (s *Session) sendWithFreeBatch(msg message.Message) error {
	if ids := s.remote.DrainPendingFree(); len(ids) > 0 {
		fv := message.FreeValue{IDs: ids}
		if err := fv.Send(s.w); err != nil {
			return s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
		}
		s.emitEvent("send", fv)
	}
	if err := msg.Send(s.w); err != nil {
		return s.fatal(fmt.Errorf("%w: %v", bridgeerr.IO, err))
	}
	s.emitEvent("send", msg)
	return nil
}

// handleInvoke evaluates a server-initiated method call via the
// scripting-host adapter and writes the matching Return. An adapter
// error (as opposed to a scripted exception) is itself reported to the
// peer as an exception value rather than torn down as a protocol
// failure: only I/O and framing failures are session-fatal.
func (s *Session) handleInvoke(m message.Invoke) error {
	if s.adapter == nil {
		return s.sendWithFreeBatch(message.Return{
			Exception: true,
			Value:     wire.String("bridge: no scripting-host adapter configured"),
		})
	}

	val, isExc, err := s.adapter.Invoke(m.This, m.Method, m.Args)
	if err != nil {
		val, isExc = wire.String(err.Error()), true
	}
	return s.sendWithFreeBatch(message.Return{Exception: isExc, Value: val})
}

// handleInvokeSpecial routes one of the four recognized dispatch ids to
// the adapter; any other id is an Unsupported error answered with a
// string exception without tearing the session down (spec.md §4.2).
func (s *Session) handleInvokeSpecial(m message.InvokeSpecial) error {
	switch m.Dispatch {
	case message.HasMethod, message.HasProperty, message.GetProperty, message.SetProperty:
		if s.adapter == nil {
			return s.sendWithFreeBatch(message.Return{
				Exception: true,
				Value:     wire.String("bridge: no scripting-host adapter configured"),
			})
		}
		val, isExc, err := s.adapter.InvokeSpecial(m.Dispatch, m.Args)
		if err != nil {
			val, isExc = wire.String(err.Error()), true
		}
		return s.sendWithFreeBatch(message.Return{Exception: isExc, Value: val})
	default:
		val := wire.String(fmt.Sprintf("%v: dispatch id %d", bridgeerr.Unsupported, m.Dispatch))
		return s.sendWithFreeBatch(message.Return{Exception: true, Value: val})
	}
}

// handleFreeValue drops the named ids from L and notifies the adapter so
// its underlying scripting objects become collectible. It carries no
// reply (spec.md §4's message taxonomy pairs only Invoke/InvokeSpecial
// with Return).
func (s *Session) handleFreeValue(m message.FreeValue) {
	for _, id := range m.IDs {
		s.local.Free(id)
	}
	if s.adapter != nil {
		_ = s.adapter.FreeValue(m.IDs)
	}
}

// handleLoadJsni evaluates source in the scripting global scope. Like
// FreeValue, it carries no reply.
func (s *Session) handleLoadJsni(m message.LoadJsni) {
	if s.adapter != nil {
		_ = s.adapter.LoadJsni(m.Source)
	}
}

func (s *Session) emitEvent(direction string, msg message.Message) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(event.BridgeEvent{
		ID:        uuid.New().String(),
		SessionID: s.id,
		Direction: direction,
		Type:      byte(msg.Type()),
		TypeName:  msg.Type().String(),
		Summary:   callfmt.Summarize(msg),
		At:        time.Now(),
	})
}
