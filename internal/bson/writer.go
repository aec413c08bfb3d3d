// Package bson implements the little-endian BSON subset the Astarte wire
// protocol relies on: documents, arrays (as documents with decimal string
// keys), doubles, strings, embedded documents, binary, booleans, UTC
// datetimes, and 32/64-bit integers. It intentionally does not implement
// the rest of the BSON spec.
package bson

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"
)

// Element type bytes, as laid out on the wire.
const (
	TypeDouble    byte = 0x01
	TypeString    byte = 0x02
	TypeDocument  byte = 0x03
	TypeArray     byte = 0x04
	TypeBinary    byte = 0x05
	TypeBool      byte = 0x08
	TypeDateTime  byte = 0x09
	TypeInt32     byte = 0x10
	TypeInt64     byte = 0x12
	binarySubtype byte = 0x00
)

// Writer builds one BSON document into a growable buffer. The zero value is
// not usable; use NewWriter.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer primed with the 4-byte length placeholder that
// Finish later re-stamps.
func NewWriter() *Writer {
	return &Writer{buf: []byte{0, 0, 0, 0}}
}

// Bytes returns the buffer as it stands; call Finish first to get a valid
// document.
func (w *Writer) Bytes() []byte { return w.buf }

// Finish stamps the 4-byte little-endian total-size prefix and appends the
// terminating 0x00, returning the complete document.
func (w *Writer) Finish() []byte {
	w.buf = append(w.buf, 0x00)
	binary.LittleEndian.PutUint32(w.buf[0:4], uint32(len(w.buf)))
	return w.buf
}

func (w *Writer) appendHeader(typ byte, key string) {
	w.buf = append(w.buf, typ)
	w.buf = append(w.buf, key...)
	w.buf = append(w.buf, 0x00)
}

// AppendDouble writes a float64 element.
func (w *Writer) AppendDouble(key string, v float64) {
	w.appendHeader(TypeDouble, key)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	w.buf = append(w.buf, tmp[:]...)
}

// AppendString writes a UTF-8 string element: int32 length (including the
// trailing NUL) followed by the bytes and a NUL terminator.
func (w *Writer) AppendString(key string, v string) {
	w.appendHeader(TypeString, key)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)+1))
	w.buf = append(w.buf, tmp[:]...)
	w.buf = append(w.buf, v...)
	w.buf = append(w.buf, 0x00)
}

// AppendBool writes a boolean element.
func (w *Writer) AppendBool(key string, v bool) {
	w.appendHeader(TypeBool, key)
	if v {
		w.buf = append(w.buf, 0x01)
	} else {
		w.buf = append(w.buf, 0x00)
	}
}

// AppendInt32 writes a 32-bit integer element.
func (w *Writer) AppendInt32(key string, v int32) {
	w.appendHeader(TypeInt32, key)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	w.buf = append(w.buf, tmp[:]...)
}

// AppendInt64 writes a 64-bit integer element.
func (w *Writer) AppendInt64(key string, v int64) {
	w.appendHeader(TypeInt64, key)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	w.buf = append(w.buf, tmp[:]...)
}

// AppendDateTime writes a UTC datetime element as milliseconds since the
// Unix epoch, stored as an int64.
func (w *Writer) AppendDateTime(key string, v time.Time) {
	w.appendHeader(TypeDateTime, key)
	ms := v.UnixMilli()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(ms))
	w.buf = append(w.buf, tmp[:]...)
}

// AppendBinary writes a binary element: int32 length, subtype byte (0x00),
// then the raw payload.
func (w *Writer) AppendBinary(key string, v []byte) {
	w.appendHeader(TypeBinary, key)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)))
	w.buf = append(w.buf, tmp[:]...)
	w.buf = append(w.buf, binarySubtype)
	w.buf = append(w.buf, v...)
}

// AppendDocument embeds a pre-finished document (from another Writer's
// Finish) under key.
func (w *Writer) AppendDocument(key string, doc []byte) {
	w.appendHeader(TypeDocument, key)
	w.buf = append(w.buf, doc...)
}

// AppendArray embeds a pre-finished document under key, tagged as an array.
func (w *Writer) AppendArray(key string, doc []byte) {
	w.appendHeader(TypeArray, key)
	w.buf = append(w.buf, doc...)
}

// ArrayKey returns the decimal string key BSON arrays use for index i.
func ArrayKey(i int) string { return strconv.Itoa(i) }
