// Package wire implements the bit-exact codec for the bridge's framed byte
// stream: the fixed-width primitive readers/writers and the tagged Value
// union that rides on top of them.
package wire

import (
	"fmt"
	"math"
)

// Tag identifies a Value variant on the wire. The tag byte uniquely
// determines the payload length; see the table in spec.md §3.
type Tag byte

const (
	TagNull             Tag = 0
	TagProgramObjectRef Tag = 1
	TagScriptObjectRef  Tag = 2
	TagBoolean          Tag = 3
	TagByte             Tag = 4
	TagChar             Tag = 5
	TagShort            Tag = 6
	TagInt              Tag = 7
	TagLong             Tag = 8
	TagFloat            Tag = 9
	TagDouble           Tag = 10
	TagString           Tag = 11
	TagUndefined        Tag = 12
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "Null"
	case TagProgramObjectRef:
		return "ProgramObjectRef"
	case TagScriptObjectRef:
		return "ScriptObjectRef"
	case TagBoolean:
		return "Boolean"
	case TagByte:
		return "Byte"
	case TagChar:
		return "Char"
	case TagShort:
		return "Short"
	case TagInt:
		return "Int"
	case TagLong:
		return "Long"
	case TagFloat:
		return "Float"
	case TagDouble:
		return "Double"
	case TagString:
		return "String"
	case TagUndefined:
		return "Undefined"
	}
	return fmt.Sprintf("Tag(%d)", byte(t))
}

// Value is a tagged union carrying exactly one of the variants in spec.md
// §3. The zero Value is Null.
type Value struct {
	tag Tag

	boolean bool
	i64     int64  // Byte, Char, Short, Int, Long all widen into here
	f64     float64 // Float widens into here, Double uses it directly
	str     string
	objID   int32 // ProgramObjectRef / ScriptObjectRef
}

// Tag reports the variant carried by v.
func (v Value) Tag() Tag { return v.tag }

func Null() Value      { return Value{tag: TagNull} }
func Undefined() Value { return Value{tag: TagUndefined} }

func Boolean(b bool) Value { return Value{tag: TagBoolean, boolean: b} }
func Byte(b int8) Value    { return Value{tag: TagByte, i64: int64(b)} }
func Char(c uint16) Value  { return Value{tag: TagChar, i64: int64(c)} }
func Short(s int16) Value  { return Value{tag: TagShort, i64: int64(s)} }
func Int(i int32) Value    { return Value{tag: TagInt, i64: int64(i)} }
func Long(l int64) Value   { return Value{tag: TagLong, i64: l} }
func Float(f float32) Value {
	return Value{tag: TagFloat, f64: float64(f)}
}
func Double(f float64) Value { return Value{tag: TagDouble, f64: f} }
func String(s string) Value  { return Value{tag: TagString, str: s} }

func ProgramObjectRef(id int32) Value {
	return Value{tag: TagProgramObjectRef, objID: id}
}
func ScriptObjectRef(id int32) Value {
	return Value{tag: TagScriptObjectRef, objID: id}
}

// Bool returns the payload of a Boolean value. Behavior is undefined
// (returns the zero value) for any other tag.
func (v Value) Bool() bool { return v.boolean }

// Int64 returns the payload of Byte/Char/Short/Int/Long, widened to
// int64. Behavior is undefined for any other tag.
func (v Value) Int64() int64 { return v.i64 }

// Float64 returns the payload of Float/Double, widened to float64.
// Behavior is undefined for any other tag.
func (v Value) Float64() float64 { return v.f64 }

// Str returns the payload of a String value. Behavior is undefined for
// any other tag.
func (v Value) Str() string { return v.str }

// ObjID returns the payload of a ProgramObjectRef/ScriptObjectRef value.
// Behavior is undefined for any other tag.
func (v Value) ObjID() int32 { return v.objID }

// Equal reports structural equality, per the roundtrip property in
// spec.md §8. Two Float NaN payloads compare equal only if their IEEE-754
// bit patterns match exactly, matching the write path (which always
// round-trips the raw bit pattern rather than the FP value).
func (v Value) Equal(o Value) bool {
	if v.tag != o.tag {
		return false
	}
	switch v.tag {
	case TagNull, TagUndefined:
		return true
	case TagBoolean:
		return v.boolean == o.boolean
	case TagByte, TagChar, TagShort, TagInt, TagLong:
		return v.i64 == o.i64
	case TagFloat:
		return math.Float32bits(float32(v.f64)) == math.Float32bits(float32(o.f64))
	case TagDouble:
		return math.Float64bits(v.f64) == math.Float64bits(o.f64)
	case TagString:
		return v.str == o.str
	case TagProgramObjectRef, TagScriptObjectRef:
		return v.objID == o.objID
	}
	return false
}

func (v Value) String() string {
	switch v.tag {
	case TagNull:
		return "null"
	case TagUndefined:
		return "undefined"
	case TagBoolean:
		return fmt.Sprintf("%t", v.boolean)
	case TagByte, TagChar, TagShort, TagInt, TagLong:
		return fmt.Sprintf("%d", v.i64)
	case TagFloat:
		return fmt.Sprintf("%g", float32(v.f64))
	case TagDouble:
		return fmt.Sprintf("%g", v.f64)
	case TagString:
		return fmt.Sprintf("%q", v.str)
	case TagProgramObjectRef:
		return fmt.Sprintf("ProgramObject#%d", v.objID)
	case TagScriptObjectRef:
		return fmt.Sprintf("ScriptObject#%d", v.objID)
	}
	return "<invalid value>"
}
