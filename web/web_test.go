package web_test

import (
	"bufio"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mickamy/oophm-bridge/broker"
	"github.com/mickamy/oophm-bridge/event"
	"github.com/mickamy/oophm-bridge/web"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := web.New(nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSSEStreamsPublishedEvents(t *testing.T) {
	t.Parallel()

	b := broker.New(4)
	srv := web.New(b)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	// Give the handler a moment to subscribe before publishing, since
	// the subscription happens asynchronously relative to this request
	// completing its headers.
	time.Sleep(50 * time.Millisecond)
	b.Publish(event.BridgeEvent{ID: "evt-1", TypeName: "Invoke", Summary: "foo()"})

	reader := bufio.NewReader(resp.Body)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading SSE stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "evt-1") {
			return
		}
	}
	t.Fatal("did not see published event on SSE stream in time")
}
