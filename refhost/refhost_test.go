package refhost_test

import (
	"testing"

	"github.com/mickamy/oophm-bridge/message"
	"github.com/mickamy/oophm-bridge/refhost"
	"github.com/mickamy/oophm-bridge/wire"
)

func TestInvokeUnknownMethodIsException(t *testing.T) {
	t.Parallel()
	h := refhost.New()
	_, isExc, err := h.Invoke(wire.Null(), "missing", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !isExc {
		t.Fatal("expected exception for unknown method")
	}
}

func TestInvokeRegisteredMethod(t *testing.T) {
	t.Parallel()
	h := refhost.New()
	h.Register("double", func(args []wire.Value) (wire.Value, error) {
		return wire.Int(int32(args[0].Int64() * 2 % (1 << 31))), nil
	})

	result, isExc, err := h.Invoke(wire.Null(), "double", []wire.Value{wire.Int(21)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if isExc {
		t.Fatal("unexpected exception")
	}
	if result.Int64() != 42 {
		t.Fatalf("got %d, want 42", result.Int64())
	}
}

func TestGetSetProperty(t *testing.T) {
	t.Parallel()
	h := refhost.New()

	_, isExc, err := h.InvokeSpecial(message.SetProperty, []wire.Value{wire.String("title"), wire.String("hello")})
	if err != nil || isExc {
		t.Fatalf("SetProperty: isExc=%v err=%v", isExc, err)
	}

	v, isExc, err := h.InvokeSpecial(message.GetProperty, []wire.Value{wire.String("title")})
	if err != nil || isExc {
		t.Fatalf("GetProperty: isExc=%v err=%v", isExc, err)
	}
	if v.Str() != "hello" {
		t.Fatalf("got %q, want %q", v.Str(), "hello")
	}
}

func TestHasMethodRefused(t *testing.T) {
	t.Parallel()
	h := refhost.New()
	_, isExc, err := h.InvokeSpecial(message.HasMethod, nil)
	if err != nil {
		t.Fatalf("InvokeSpecial: %v", err)
	}
	if !isExc {
		t.Fatal("expected HasMethod to be refused")
	}
}

func TestLoadJsniRendersTemplate(t *testing.T) {
	t.Parallel()
	h := refhost.New()
	h.InvokeSpecial(message.SetProperty, []wire.Value{wire.String("name"), wire.String("world")})

	if err := h.LoadJsni("hello {{.name}}"); err != nil {
		t.Fatalf("LoadJsni: %v", err)
	}
	loaded := h.Loaded()
	if len(loaded) != 1 || loaded[0] != "hello world" {
		t.Fatalf("got %v, want [hello world]", loaded)
	}
}

func TestFreeValueRecordsIDs(t *testing.T) {
	t.Parallel()
	h := refhost.New()
	if err := h.FreeValue([]int32{1, 2, 3}); err != nil {
		t.Fatalf("FreeValue: %v", err)
	}
	if got := h.Freed(); len(got) != 3 {
		t.Fatalf("got %v, want 3 ids", got)
	}
}
