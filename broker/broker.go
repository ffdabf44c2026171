// Package broker fans a live trace of BridgeEvents out to zero or more
// subscribers. It is grounded on the publish/subscribe shape the teacher
// wires up from cmd/sql-tapd/main.go (broker.New(256), b.Publish(ev)) and
// consumes from web/web.go (b.Subscribe() inside handleSSE) — generalized
// here from proxy.Event to event.BridgeEvent. A nil *Broker is a valid,
// no-op configuration: Publish on a nil receiver is a no-op, so the
// session engine can carry an optional broker field without a nil check
// at every call site.
package broker

import "github.com/mickamy/oophm-bridge/event"

// Broker is safe for concurrent use. Publish is called from the session
// engine's single thread; Subscribe/unsubscribe are called from any
// number of inspector-transport goroutines.
type Broker struct {
	bufSize int
	cmds    chan command
	subs    map[int]chan event.BridgeEvent
	rawSubs map[int]chan []byte
	nextID  int
	nextRawID int
}

type command struct {
	publish     *event.BridgeEvent
	subscribe   *chan event.BridgeEvent
	subscribed  chan int
	unsubscribe *int
	done        chan struct{}

	publishRaw   []byte
	subscribeRaw *chan []byte
	rawSubscribed chan int
	unsubscribeRaw *int
}

// New returns a Broker whose subscriber channels are buffered to
// bufSize. Once a subscriber's buffer is full, newly published events
// are silently dropped for that subscriber rather than stalling
// the publisher — the broker must never add backpressure to the session
// engine's wire protocol.
func New(bufSize int) *Broker {
	b := &Broker{
		bufSize: bufSize,
		cmds:    make(chan command),
		subs:    make(map[int]chan event.BridgeEvent),
		rawSubs: make(map[int]chan []byte),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	for cmd := range b.cmds {
		switch {
		case cmd.publish != nil:
			for _, ch := range b.subs {
				select {
				case ch <- *cmd.publish:
				default:
					// subscriber too slow; drop rather than block.
				}
			}
		case cmd.subscribe != nil:
			id := b.nextID
			b.nextID++
			ch := make(chan event.BridgeEvent, b.bufSize)
			b.subs[id] = ch
			*cmd.subscribe = ch
			cmd.subscribed <- id
		case cmd.unsubscribe != nil:
			if ch, ok := b.subs[*cmd.unsubscribe]; ok {
				delete(b.subs, *cmd.unsubscribe)
				close(ch)
			}
		case cmd.publishRaw != nil:
			for _, ch := range b.rawSubs {
				select {
				case ch <- cmd.publishRaw:
				default:
				}
			}
		case cmd.subscribeRaw != nil:
			id := b.nextRawID
			b.nextRawID++
			ch := make(chan []byte, b.bufSize)
			b.rawSubs[id] = ch
			*cmd.subscribeRaw = ch
			cmd.rawSubscribed <- id
		case cmd.unsubscribeRaw != nil:
			if ch, ok := b.rawSubs[*cmd.unsubscribeRaw]; ok {
				delete(b.rawSubs, *cmd.unsubscribeRaw)
				close(ch)
			}
		}
		if cmd.done != nil {
			close(cmd.done)
		}
	}
}

// Publish delivers ev to every current subscriber. Safe to call on a nil
// Broker (no-op), so "no inspector attached" needs no special-casing by
// callers.
func (b *Broker) Publish(ev event.BridgeEvent) {
	if b == nil {
		return
	}
	b.cmds <- command{publish: &ev}
}

// Subscribe registers a new subscriber and returns its event channel
// along with an unsubscribe function. The channel is closed once
// unsubscribe is called.
func (b *Broker) Subscribe() (<-chan event.BridgeEvent, func()) {
	var ch chan event.BridgeEvent
	subscribed := make(chan int, 1)
	b.cmds <- command{subscribe: &ch, subscribed: subscribed}
	id := <-subscribed

	unsub := func() {
		done := make(chan struct{})
		b.cmds <- command{unsubscribe: &id, done: done}
		<-done
	}
	return ch, unsub
}

// PublishRaw delivers a copy of raw to every current raw-tap subscriber.
// Used by the websocket tap (SPEC_FULL.md §4.7) to mirror the exact
// bytes crossing the wire, independent of message boundaries. Safe to
// call on a nil Broker.
func (b *Broker) PublishRaw(raw []byte) {
	if b == nil || len(raw) == 0 {
		return
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	b.cmds <- command{publishRaw: cp}
}

// SubscribeRaw registers a new raw-tap subscriber and returns its byte
// channel along with an unsubscribe function.
func (b *Broker) SubscribeRaw() (<-chan []byte, func()) {
	var ch chan []byte
	subscribed := make(chan int, 1)
	b.cmds <- command{subscribeRaw: &ch, rawSubscribed: subscribed}
	id := <-subscribed

	unsub := func() {
		done := make(chan struct{})
		b.cmds <- command{unsubscribeRaw: &id, done: done}
		<-done
	}
	return ch, unsub
}
