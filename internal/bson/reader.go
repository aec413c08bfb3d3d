package bson

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
)

// Failure kinds raised while walking or decoding a document.
var (
	ErrInvalidPrefix = asterr.New(asterr.KindBSONInvalid, "bson.Reader", errString("declared length prefix does not match buffer"))
	ErrTruncated     = asterr.New(asterr.KindBSONInvalid, "bson.Reader", errString("buffer shorter than a valid element requires"))
	ErrNotFound      = asterr.New(asterr.KindNotFound, "bson.Reader", errString("no element with that key"))
	ErrTypeMismatch  = asterr.New(asterr.KindBSONTypeMismatch, "bson.Reader", errString("element type does not match the requested accessor"))
)

type errString string

func (e errString) Error() string { return string(e) }

// Element is a single borrowed view into a Reader's underlying buffer: a
// type byte, a key, and the raw, not-yet-decoded body. Binary returns a
// sub-slice of the Reader's buffer without allocating; Key and String are
// Go strings copied out of the buffer, not borrows of it.
type Element struct {
	Type    byte
	Key     string
	body    []byte
	bodyEnd int
}

// Reader walks the elements of one BSON document without copying the input.
type Reader struct {
	buf []byte // the full document, length-prefixed
}

// NewReader validates the 4-byte length prefix against len(buf) and returns
// a Reader ready to walk buf's elements.
func NewReader(buf []byte) (*Reader, error) {
	if len(buf) < 5 {
		return nil, ErrTruncated
	}
	declared := binary.LittleEndian.Uint32(buf[0:4])
	if int(declared) != len(buf) {
		return nil, ErrInvalidPrefix
	}
	if buf[len(buf)-1] != 0x00 {
		return nil, ErrInvalidPrefix
	}
	return &Reader{buf: buf}, nil
}

// First returns the first element of the document, or ok=false for an
// empty document (just the 4-byte length and the terminator).
func (r *Reader) First() (Element, bool, error) {
	return r.elementAt(4)
}

// Next returns the element immediately following e, or ok=false if e was
// the last element.
func (r *Reader) Next(e Element) (Element, bool, error) {
	offset := e.end()
	return r.elementAt(offset)
}

// Find performs a linear scan for the element with the given key.
func (r *Reader) Find(key string) (Element, error) {
	el, ok, err := r.First()
	if err != nil {
		return Element{}, err
	}
	for ok {
		if el.Key == key {
			return el, nil
		}
		el, ok, err = r.Next(el)
		if err != nil {
			return Element{}, err
		}
	}
	return Element{}, ErrNotFound
}

// end returns the buffer offset of the byte immediately after e's body,
// i.e. where the next element (or terminator) begins.
func (e Element) end() int {
	return e.bodyEnd
}

func (r *Reader) elementAt(offset int) (Element, bool, error) {
	if offset >= len(r.buf) {
		return Element{}, false, ErrTruncated
	}
	typ := r.buf[offset]
	if typ == 0x00 {
		return Element{}, false, nil
	}
	keyStart := offset + 1
	keyEnd := keyStart
	for {
		if keyEnd >= len(r.buf) {
			return Element{}, false, ErrTruncated
		}
		if r.buf[keyEnd] == 0x00 {
			break
		}
		keyEnd++
	}
	key := string(r.buf[keyStart:keyEnd])
	bodyStart := keyEnd + 1

	bodyLen, err := bodyLength(typ, r.buf, bodyStart)
	if err != nil {
		return Element{}, false, err
	}
	bodyEnd := bodyStart + bodyLen
	if bodyEnd > len(r.buf) {
		return Element{}, false, ErrTruncated
	}

	return Element{
		Type:    typ,
		Key:     key,
		body:    r.buf[bodyStart:bodyEnd],
		bodyEnd: bodyEnd,
	}, true, nil
}

func bodyLength(typ byte, buf []byte, bodyStart int) (int, error) {
	switch typ {
	case TypeDouble, TypeInt64, TypeDateTime:
		return 8, nil
	case TypeInt32:
		return 4, nil
	case TypeBool:
		return 1, nil
	case TypeString:
		if bodyStart+4 > len(buf) {
			return 0, ErrTruncated
		}
		n := binary.LittleEndian.Uint32(buf[bodyStart : bodyStart+4])
		return 4 + int(n), nil
	case TypeBinary:
		if bodyStart+4 > len(buf) {
			return 0, ErrTruncated
		}
		n := binary.LittleEndian.Uint32(buf[bodyStart : bodyStart+4])
		return 4 + 1 + int(n), nil
	case TypeDocument, TypeArray:
		if bodyStart+4 > len(buf) {
			return 0, ErrTruncated
		}
		n := binary.LittleEndian.Uint32(buf[bodyStart : bodyStart+4])
		return int(n), nil
	default:
		return 0, ErrTypeMismatch
	}
}

// Double decodes a double element.
func (e Element) Double() (float64, error) {
	if e.Type != TypeDouble {
		return 0, ErrTypeMismatch
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(e.body)), nil
}

// Int32 decodes an int32 element.
func (e Element) Int32() (int32, error) {
	if e.Type != TypeInt32 {
		return 0, ErrTypeMismatch
	}
	return int32(binary.LittleEndian.Uint32(e.body)), nil
}

// Int64 decodes an int64 element, also accepting an int32 payload widened
// to 64 bits (the long_integer compatibility rule).
func (e Element) Int64() (int64, error) {
	switch e.Type {
	case TypeInt64:
		return int64(binary.LittleEndian.Uint64(e.body)), nil
	case TypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(e.body))), nil
	default:
		return 0, ErrTypeMismatch
	}
}

// Bool decodes a boolean element.
func (e Element) Bool() (bool, error) {
	if e.Type != TypeBool {
		return false, ErrTypeMismatch
	}
	return e.body[0] != 0x00, nil
}

// DateTime decodes a UTC datetime element.
func (e Element) DateTime() (time.Time, error) {
	if e.Type != TypeDateTime {
		return time.Time{}, ErrTypeMismatch
	}
	ms := int64(binary.LittleEndian.Uint64(e.body))
	return time.UnixMilli(ms).UTC(), nil
}

// String decodes a string element. The returned string is a copy of the
// element's bytes (one allocation); it does not borrow the underlying
// buffer and stays valid if that buffer is later reused.
func (e Element) String() (string, error) {
	if e.Type != TypeString {
		return "", ErrTypeMismatch
	}
	if len(e.body) < 5 {
		return "", ErrTruncated
	}
	return string(e.body[4 : len(e.body)-1]), nil
}

// Binary decodes a binary element, returning a borrowed sub-slice.
func (e Element) Binary() ([]byte, error) {
	if e.Type != TypeBinary {
		return nil, ErrTypeMismatch
	}
	if len(e.body) < 5 {
		return nil, ErrTruncated
	}
	return e.body[5:], nil
}

// Document returns a Reader over an embedded document or array element.
func (e Element) Document() (*Reader, error) {
	if e.Type != TypeDocument && e.Type != TypeArray {
		return nil, ErrTypeMismatch
	}
	return NewReader(e.body)
}
