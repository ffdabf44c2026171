// Package callfmt renders wire messages as short, human-readable call
// signatures for logs and the inspector feed. It is adapted from the
// teacher's query package: Bind's "substitute args into a readable
// expression" idea becomes Format, and Normalize's "collapse literals so
// structurally identical calls group together" idea becomes Signature —
// both retargeted from SQL placeholder text onto the bridge's typed
// wire.Value arguments, since there is no SQL text here to parse.
package callfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mickamy/oophm-bridge/message"
	"github.com/mickamy/oophm-bridge/wire"
)

// FormatValue renders a single wire.Value the way it would appear in a
// call expression: strings are quoted (escaping embedded quotes the way
// the teacher's quoteArg escapes embedded SQL quotes), numbers and
// booleans are bare, and object references are rendered as `program#id`
// or `script#id`.
func FormatValue(v wire.Value) string {
	switch v.Tag() {
	case wire.TagNull:
		return "null"
	case wire.TagUndefined:
		return "undefined"
	case wire.TagBoolean:
		return strconv.FormatBool(v.Bool())
	case wire.TagByte, wire.TagChar, wire.TagShort, wire.TagInt, wire.TagLong:
		return strconv.FormatInt(v.Int64(), 10)
	case wire.TagFloat, wire.TagDouble:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case wire.TagString:
		return quoteArg(v.Str())
	case wire.TagProgramObjectRef:
		return fmt.Sprintf("program#%d", v.ObjID())
	case wire.TagScriptObjectRef:
		return fmt.Sprintf("script#%d", v.ObjID())
	}
	return "?"
}

// quoteArg wraps s in single quotes, escaping embedded quotes, mirroring
// the teacher's query.quoteArg but operating on a Go string that is
// already known to be a String value rather than on unparsed SQL text.
func quoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

// Format renders method(args...) as a single-line call expression, the
// Invoke/InvokeSpecial analogue of the teacher's query.Bind.
func Format(method string, args []wire.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}
	return fmt.Sprintf("%s(%s)", method, strings.Join(parts, ", "))
}

// Signature returns a grouping key for method calls that ignores literal
// argument values but keeps arity — the call-shape analogue of the
// teacher's query.Normalize, which collapses SQL literals so structurally
// identical queries group together. Nothing in this module calls it: the
// chatty-call watcher in cmd/oophmd keys on Summarize output instead.
func Signature(method string, argc int) string {
	return fmt.Sprintf("%s/%d", method, argc)
}

// Summarize renders a one-line human-readable description of any message
// in the catalog, used for the inspector's live feed (event.BridgeEvent.Summary).
func Summarize(m message.Message) string {
	switch v := m.(type) {
	case message.Invoke:
		return fmt.Sprintf("%s.%s", FormatValue(v.This), Format(v.Method, v.Args))
	case message.InvokeSpecial:
		parts := make([]string, len(v.Args))
		for i, a := range v.Args {
			parts[i] = FormatValue(a)
		}
		return fmt.Sprintf("%s(%s)", v.Dispatch, strings.Join(parts, ", "))
	case message.Return:
		if v.Exception {
			return "throw " + FormatValue(v.Value)
		}
		return "return " + FormatValue(v.Value)
	case message.Quit:
		return "quit"
	case message.FreeValue:
		ids := make([]string, len(v.IDs))
		for i, id := range v.IDs {
			ids[i] = strconv.Itoa(int(id))
		}
		return "free [" + strings.Join(ids, ", ") + "]"
	case message.LoadJsni:
		src := v.Source
		if len(src) > 60 {
			src = src[:57] + "..."
		}
		return "jsni: " + src
	case message.LoadModule:
		return fmt.Sprintf("load %s (v%d, ua=%s)", v.ModuleName, v.Version, v.UserAgent)
	}
	return m.Type().String()
}
