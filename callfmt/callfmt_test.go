package callfmt_test

import (
	"testing"

	"github.com/mickamy/oophm-bridge/callfmt"
	"github.com/mickamy/oophm-bridge/message"
	"github.com/mickamy/oophm-bridge/wire"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		args   []wire.Value
		want   string
	}{
		{"no args", "foo", nil, "foo()"},
		{"int and string", "bar", []wire.Value{wire.Int(42), wire.String("alice")}, `bar(42, 'alice')`},
		{"embedded quote", "baz", []wire.Value{wire.String("it's")}, `baz('it\'s')`},
		{"object ref", "qux", []wire.Value{wire.ProgramObjectRef(3)}, "qux(program#3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := callfmt.Format(tt.method, tt.args); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSignatureIgnoresLiteralsKeepsArity(t *testing.T) {
	t.Parallel()

	a := callfmt.Signature("load", 2)
	b := callfmt.Signature("load", 2)
	c := callfmt.Signature("load", 3)
	if a != b {
		t.Fatalf("expected identical signatures, got %q and %q", a, b)
	}
	if a == c {
		t.Fatalf("expected different arity to produce different signature, got %q", a)
	}
}

func TestSummarizeInvoke(t *testing.T) {
	t.Parallel()

	m := message.Invoke{This: wire.Null(), Method: "onClick", Args: []wire.Value{wire.Int(1)}}
	got := callfmt.Summarize(m)
	want := "null.onClick(1)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSummarizeReturnException(t *testing.T) {
	t.Parallel()

	m := message.Return{Exception: true, Value: wire.String("boom")}
	got := callfmt.Summarize(m)
	want := "throw 'boom'"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
