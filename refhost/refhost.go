// Package refhost is a reference scripthost.Adapter: an in-process
// stand-in for the browser, evaluating JSNI source with Go's
// text/template engine instead of an embedded JavaScript VM. It exists
// so oophmd can run end to end without a real browser plugin attached —
// useful for demos and load tests.
package refhost

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/mickamy/oophm-bridge/message"
	"github.com/mickamy/oophm-bridge/wire"
)

// Host is a minimal scripting global scope: a set of named methods
// (simple Go funcs keyed by name, standing in for JSNI-exported
// functions) and a property bag (standing in for window/global fields).
type Host struct {
	mu        sync.Mutex
	methods   map[string]func(args []wire.Value) (wire.Value, error)
	props     map[string]wire.Value
	loaded    []string // source texts handed to LoadJsni, in order
	freed     []int32
}

// New returns a Host with no methods or properties registered.
func New() *Host {
	return &Host{
		methods: make(map[string]func(args []wire.Value) (wire.Value, error)),
		props:   make(map[string]wire.Value),
	}
}

// Register installs a callable method under name, for tests and demos
// that want the remote program-object server to be able to call back
// into the scripting host.
func (h *Host) Register(name string, fn func(args []wire.Value) (wire.Value, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.methods[name] = fn
}

// Invoke implements scripthost.Adapter.
func (h *Host) Invoke(this wire.Value, method string, args []wire.Value) (wire.Value, bool, error) {
	h.mu.Lock()
	fn, ok := h.methods[method]
	h.mu.Unlock()
	if !ok {
		return wire.String(fmt.Sprintf("TypeError: %s is not a function", method)), true, nil
	}
	result, err := fn(args)
	if err != nil {
		return wire.String(err.Error()), true, nil
	}
	return result, false, nil
}

// InvokeSpecial implements scripthost.Adapter's GetProperty/SetProperty
// pair over the property bag; HasMethod/HasProperty are refused with an
// exception, matching spec.md §9's note that servers never send them.
func (h *Host) InvokeSpecial(id message.SpecialID, args []wire.Value) (wire.Value, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch id {
	case message.GetProperty:
		if len(args) < 1 {
			return wire.String("bridge: GetProperty needs a name"), true, nil
		}
		v, ok := h.props[args[0].Str()]
		if !ok {
			return wire.Undefined(), false, nil
		}
		return v, false, nil
	case message.SetProperty:
		if len(args) < 2 {
			return wire.String("bridge: SetProperty needs a name and value"), true, nil
		}
		h.props[args[0].Str()] = args[1]
		return wire.Undefined(), false, nil
	default:
		return wire.String(fmt.Sprintf("bridge: %s not implemented by refhost", id)), true, nil
	}
}

// FreeValue implements scripthost.Adapter; refhost only records the ids
// for inspection, since it holds no real scripting objects to collect.
func (h *Host) FreeValue(ids []int32) error {
	h.mu.Lock()
	h.freed = append(h.freed, ids...)
	h.mu.Unlock()
	return nil
}

// LoadJsni implements scripthost.Adapter by executing source as a
// text/template against the current property bag, discarding the
// rendered output. A template parse/execute error is reported to the
// caller as a real error (LoadJsni has no Return, so the session engine
// discards it), matching an embedded JS engine's own syntax-error
// behavior.
func (h *Host) LoadJsni(source string) error {
	tmpl, err := template.New("jsni").Parse(source)
	if err != nil {
		return fmt.Errorf("refhost: parse: %w", err)
	}

	h.mu.Lock()
	data := make(map[string]any, len(h.props))
	for k, v := range h.props {
		if v.Tag() == wire.TagString {
			data[k] = v.Str()
		} else {
			data[k] = v.String()
		}
	}
	h.mu.Unlock()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("refhost: execute: %w", err)
	}

	h.mu.Lock()
	h.loaded = append(h.loaded, strings.TrimSpace(buf.String()))
	h.mu.Unlock()
	return nil
}

// Loaded returns every rendered LoadJsni output so far, for tests.
func (h *Host) Loaded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.loaded))
	copy(out, h.loaded)
	return out
}

// Freed returns every id ever passed to FreeValue, for tests.
func (h *Host) Freed() []int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int32, len(h.freed))
	copy(out, h.freed)
	return out
}
