package allowlist_test

import (
	"testing"

	"github.com/mickamy/oophm-bridge/allowlist"
)

func TestExactHostPort(t *testing.T) {
	t.Parallel()

	l, err := allowlist.New([]string{"127.0.0.1:9997"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Allow("127.0.0.1", 9997) {
		t.Fatal("expected allow for exact match")
	}
	if l.Allow("127.0.0.1", 9998) {
		t.Fatal("expected deny for different port")
	}
	if l.Allow("10.0.0.1", 9997) {
		t.Fatal("expected deny for different host")
	}
}

func TestBareHostAnyPort(t *testing.T) {
	t.Parallel()

	l, err := allowlist.New([]string{"dev.example.com"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Allow("dev.example.com", 1) || !l.Allow("dev.example.com", 65535) {
		t.Fatal("expected bare host entry to allow any port")
	}
}

func TestEmptyDeniesEverything(t *testing.T) {
	t.Parallel()

	l, err := allowlist.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Allow("anything", 1) {
		t.Fatal("expected empty allow-list to deny")
	}
}

func TestAllowAll(t *testing.T) {
	t.Parallel()

	l := allowlist.AllowAll()
	if !l.Allow("anything", 12345) {
		t.Fatal("expected AllowAll to allow everything")
	}
}

func TestNilListDenies(t *testing.T) {
	t.Parallel()

	var l *allowlist.List
	if l.Allow("x", 1) {
		t.Fatal("expected nil *List to deny")
	}
}
