package wire

import "errors"

// ErrUnknownTag is returned by ReadValue when the tag byte does not match
// any variant in spec.md §3. Per §4.1 this marks the session unusable.
var ErrUnknownTag = errors.New("unknown value tag")

// ErrUnsupportedTag is returned by WriteValue for a Value constructed
// with an invalid Tag (this should not happen via the constructors in
// value.go; the zero Value is Null and encodes normally).
var ErrUnsupportedTag = errors.New("unsupported value tag")
