// Package scripthost declares the scripting host adapter: the
// out-of-scope collaborator (spec.md §1, §4.4, §6) that embeds
// JavaScript objects into the session. The bridge core consumes exactly
// this interface; it never assumes anything about how the adapter
// represents scripting objects or evaluates source.
package scripthost

import (
	"github.com/mickamy/oophm-bridge/message"
	"github.com/mickamy/oophm-bridge/wire"
)

// Adapter is the capability record the session engine dispatches
// inbound Invoke/InvokeSpecial/FreeValue/LoadJsni frames to (spec.md
// §4.4's "Dynamic adapter dispatch" design note: modelled as a record of
// functions held by the session, not as inheritance). Implementations
// must not assume the call stack is empty on entry: the engine may
// invoke the adapter again, reentrantly, while still inside a previous
// adapter call (spec.md §6).
type Adapter interface {
	// Invoke evaluates method on this (or the global object if this is
	// Null) with args, and reports whether the result is an exception
	// value rather than a normal return.
	Invoke(this wire.Value, method string, args []wire.Value) (result wire.Value, isException bool, err error)

	// InvokeSpecial handles one of the four special-method operations
	// (spec.md §4.2, §4.4). Only GetProperty and SetProperty are
	// expected to do real work; HasMethod and HasProperty are present in
	// the tag set but current servers never send them, so a correct
	// implementation may refuse them with an exception rather than
	// implement them (spec.md §9, Open Questions).
	InvokeSpecial(id message.SpecialID, args []wire.Value) (result wire.Value, isException bool, err error)

	// FreeValue releases the named local-scripting ids from L. It is
	// called after the table entries have already been dropped; the
	// adapter's job is to let its underlying scripting objects become
	// collectible.
	FreeValue(ids []int32) error

	// LoadJsni evaluates source in the scripting global scope.
	LoadJsni(source string) error
}
