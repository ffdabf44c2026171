package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// maxStringLen bounds the length prefix accepted by ReadString so a
// corrupt or hostile peer cannot force an unbounded heap allocation.
const maxStringLen = 64 << 20 // 64 MiB

// Reader is the read half of the wire codec. It wraps any io.Reader.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader over r. Callers that already have a
// *bufio.Reader (e.g. from hostchannel) should pass it directly so reads
// are not double-buffered.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// Writer is the write half of the wire codec.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (r *Reader) fill(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("wire: read %d bytes: %w", n, err)
	}
	return buf, nil
}

// ReadU8 reads a single unsigned byte.
func (r *Reader) ReadU8() (byte, error) {
	buf, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteU8 writes a single unsigned byte.
func (w *Writer) WriteU8(b byte) error {
	if _, err := w.w.Write([]byte{b}); err != nil {
		return fmt.Errorf("wire: write u8: %w", err)
	}
	return nil
}

// ReadI16 reads a big-endian signed 16-bit integer.
func (r *Reader) ReadI16() (int16, error) {
	buf, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(buf)), nil
}

// WriteI16 writes a big-endian signed 16-bit integer.
func (w *Writer) WriteI16(v int16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	if _, err := w.w.Write(buf[:]); err != nil {
		return fmt.Errorf("wire: write i16: %w", err)
	}
	return nil
}

// ReadI32 reads a big-endian signed 32-bit integer.
func (r *Reader) ReadI32() (int32, error) {
	buf, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf)), nil
}

// WriteI32 writes a big-endian signed 32-bit integer.
func (w *Writer) WriteI32(v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	if _, err := w.w.Write(buf[:]); err != nil {
		return fmt.Errorf("wire: write i32: %w", err)
	}
	return nil
}

// ReadI64 reads a big-endian signed 64-bit integer, hi-word then lo-word
// per spec.md §3 (equivalent to a single 8-byte big-endian integer).
func (r *Reader) ReadI64() (int64, error) {
	buf, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

// WriteI64 writes a big-endian signed 64-bit integer.
func (w *Writer) WriteI64(v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	if _, err := w.w.Write(buf[:]); err != nil {
		return fmt.Errorf("wire: write i64: %w", err)
	}
	return nil
}

// ReadF32 reads a 4-byte big-endian IEEE-754 float by bit-casting from the
// like-width integer codec (spec.md §4.1).
func (r *Reader) ReadF32() (float32, error) {
	bits, err := r.ReadI32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(bits)), nil
}

// WriteF32 writes a 4-byte big-endian IEEE-754 float.
func (w *Writer) WriteF32(f float32) error {
	return w.WriteI32(int32(math.Float32bits(f)))
}

// ReadF64 reads an 8-byte big-endian IEEE-754 double.
func (r *Reader) ReadF64() (float64, error) {
	bits, err := r.ReadI64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}

// WriteF64 writes an 8-byte big-endian IEEE-754 double.
func (w *Writer) WriteF64(f float64) error {
	return w.WriteI64(int64(math.Float64bits(f)))
}

// ReadString reads a 4-byte length prefix (a non-negative 32-bit integer)
// followed by that many bytes of UTF-8. A negative length or a length
// beyond maxStringLen is rejected before any allocation is made.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadI32()
	if err != nil {
		return "", fmt.Errorf("wire: read string length: %w", err)
	}
	if n < 0 {
		return "", fmt.Errorf("wire: read string: negative length %d", n)
	}
	if n > maxStringLen {
		return "", fmt.Errorf("wire: read string: length %d exceeds limit", n)
	}
	buf, err := r.fill(int(n))
	if err != nil {
		return "", fmt.Errorf("wire: read string body: %w", err)
	}
	return string(buf), nil
}

// WriteString writes a 4-byte length prefix followed by the UTF-8 bytes
// of s.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteI32(int32(len(s))); err != nil {
		return fmt.Errorf("wire: write string length: %w", err)
	}
	if _, err := io.WriteString(w.w, s); err != nil {
		return fmt.Errorf("wire: write string body: %w", err)
	}
	return nil
}

// ReadValue reads a tag byte and dispatches to the variant's payload
// decoder. An unknown tag is a protocol error (spec.md §4.1): the caller
// is expected to treat the session as unusable from that point on.
func (r *Reader) ReadValue() (Value, error) {
	tagByte, err := r.ReadU8()
	if err != nil {
		return Value{}, fmt.Errorf("wire: read value tag: %w", err)
	}

	switch Tag(tagByte) {
	case TagNull:
		return Null(), nil
	case TagUndefined:
		return Undefined(), nil
	case TagBoolean:
		b, err := r.ReadU8()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read boolean: %w", err)
		}
		return Boolean(b != 0), nil
	case TagByte:
		b, err := r.ReadU8()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read byte: %w", err)
		}
		return Byte(int8(b)), nil
	case TagChar:
		v, err := r.ReadI16()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read char: %w", err)
		}
		return Char(uint16(v)), nil
	case TagShort:
		v, err := r.ReadI16()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read short: %w", err)
		}
		return Short(v), nil
	case TagInt:
		v, err := r.ReadI32()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read int: %w", err)
		}
		return Int(v), nil
	case TagLong:
		v, err := r.ReadI64()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read long: %w", err)
		}
		return Long(v), nil
	case TagFloat:
		v, err := r.ReadF32()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read float: %w", err)
		}
		return Float(v), nil
	case TagDouble:
		v, err := r.ReadF64()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read double: %w", err)
		}
		return Double(v), nil
	case TagString:
		s, err := r.ReadString()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read string value: %w", err)
		}
		return String(s), nil
	case TagProgramObjectRef:
		id, err := r.ReadI32()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read program object ref: %w", err)
		}
		return ProgramObjectRef(id), nil
	case TagScriptObjectRef:
		id, err := r.ReadI32()
		if err != nil {
			return Value{}, fmt.Errorf("wire: read script object ref: %w", err)
		}
		return ScriptObjectRef(id), nil
	}

	return Value{}, fmt.Errorf("wire: %w: tag %d", ErrUnknownTag, tagByte)
}

// WriteValue writes the tag byte followed by the variant's payload.
func (w *Writer) WriteValue(v Value) error {
	if err := w.WriteU8(byte(v.tag)); err != nil {
		return fmt.Errorf("wire: write value tag: %w", err)
	}

	switch v.tag {
	case TagNull, TagUndefined:
		return nil
	case TagBoolean:
		if v.boolean {
			return w.WriteU8(1)
		}
		return w.WriteU8(0)
	case TagByte:
		return w.WriteU8(byte(int8(v.i64)))
	case TagChar:
		return w.WriteI16(int16(uint16(v.i64)))
	case TagShort:
		return w.WriteI16(int16(v.i64))
	case TagInt:
		return w.WriteI32(int32(v.i64))
	case TagLong:
		return w.WriteI64(v.i64)
	case TagFloat:
		return w.WriteF32(float32(v.f64))
	case TagDouble:
		return w.WriteF64(v.f64)
	case TagString:
		return w.WriteString(v.str)
	case TagProgramObjectRef, TagScriptObjectRef:
		return w.WriteI32(v.objID)
	}

	return fmt.Errorf("wire: %w: tag %d", ErrUnsupportedTag, v.tag)
}

// flusher is satisfied by *bufio.Writer and by hostchannel.Channel; a
// plain io.Writer simply has nothing to flush.
type flusher interface {
	Flush() error
}

// Flush forces out any buffering the underlying writer performs. A
// Writer built over a plain io.Writer with no Flush method treats this
// as a no-op.
func (w *Writer) Flush() error {
	if f, ok := w.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("wire: flush: %w", err)
		}
	}
	return nil
}
