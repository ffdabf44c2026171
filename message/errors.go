package message

import "errors"

// ErrUnknownType is returned by Receive when the leading tag byte does
// not match any entry in the message catalog (spec.md §4).
var ErrUnknownType = errors.New("unknown message type")
