package chatter_test

import (
	"testing"
	"time"

	"github.com/mickamy/oophm-bridge/chatter"
)

func TestBelowThreshold(t *testing.T) {
	t.Parallel()
	d := chatter.New(5, time.Second, 10*time.Second)
	now := time.Now()
	sig := "onClick/1"

	for i := range 4 {
		r := d.Record(sig, now.Add(time.Duration(i)*100*time.Millisecond))
		if r.Matched {
			t.Fatal("unexpected match before threshold")
		}
		if r.Alert != nil {
			t.Fatal("unexpected alert before threshold")
		}
	}
}

func TestAtThreshold(t *testing.T) {
	t.Parallel()
	d := chatter.New(5, time.Second, 10*time.Second)
	now := time.Now()
	sig := "onClick/1"

	for i := range 4 {
		d.Record(sig, now.Add(time.Duration(i)*100*time.Millisecond))
	}

	r := d.Record(sig, now.Add(400*time.Millisecond))
	if !r.Matched {
		t.Fatal("expected matched at threshold")
	}
	if r.Alert == nil {
		t.Fatal("expected alert at threshold")
	}
	if r.Alert.Count != 5 {
		t.Fatalf("got count %d, want 5", r.Alert.Count)
	}
}

func TestCooldownSuppressesRepeatAlerts(t *testing.T) {
	t.Parallel()
	d := chatter.New(2, time.Minute, 10*time.Second)
	now := time.Now()
	sig := "load/0"

	d.Record(sig, now)
	first := d.Record(sig, now.Add(time.Millisecond))
	if first.Alert == nil {
		t.Fatal("expected first alert")
	}

	second := d.Record(sig, now.Add(2*time.Millisecond))
	if second.Alert != nil {
		t.Fatal("expected cooldown to suppress immediate repeat alert")
	}
}

func TestWindowEvictsOldEntries(t *testing.T) {
	t.Parallel()
	d := chatter.New(3, 100*time.Millisecond, 0)
	now := time.Now()
	sig := "get/1"

	d.Record(sig, now)
	d.Record(sig, now.Add(50*time.Millisecond))
	// Both prior entries fall outside the window, so none survives the cutoff.
	r := d.Record(sig, now.Add(500*time.Millisecond))
	if r.Matched {
		t.Fatal("expected stale entries to be evicted, not counted toward threshold")
	}
}
