package astarte

import (
	"bytes"
	"time"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/cirrus-iot/astarte-device-sdk/internal/bson"
)

// AstarteData is the sum type over the fourteen mapping kinds. The zero
// value is not a valid data point; build one with the From* constructors or
// Decode.
type AstarteData struct {
	kind    MappingType
	payload any
}

// Kind reports which of the fourteen variants v holds.
func (v AstarteData) Kind() MappingType { return v.kind }

// DestroyDeserialized is a documented no-op kept for API parity with the
// original SDK and for symmetrical test helpers; Go's garbage collector
// owns v's backing memory.
func (v AstarteData) DestroyDeserialized() {}

func FromInteger(n int32) AstarteData          { return AstarteData{kind: Integer, payload: n} }
func FromIntegerArray(n []int32) AstarteData   { return AstarteData{kind: IntegerArray, payload: n} }
func FromLongInteger(n int64) AstarteData      { return AstarteData{kind: LongInteger, payload: n} }
func FromLongIntegerArray(n []int64) AstarteData {
	return AstarteData{kind: LongIntegerArray, payload: n}
}
func FromDouble(f float64) AstarteData        { return AstarteData{kind: Double, payload: f} }
func FromDoubleArray(f []float64) AstarteData { return AstarteData{kind: DoubleArray, payload: f} }
func FromString(s string) AstarteData         { return AstarteData{kind: String, payload: s} }
func FromStringArray(s []string) AstarteData  { return AstarteData{kind: StringArray, payload: s} }
func FromBoolean(b bool) AstarteData          { return AstarteData{kind: Boolean, payload: b} }
func FromBooleanArray(b []bool) AstarteData   { return AstarteData{kind: BooleanArray, payload: b} }
func FromBinaryBlob(b []byte) AstarteData     { return AstarteData{kind: BinaryBlob, payload: b} }
func FromBinaryBlobArray(b [][]byte) AstarteData {
	return AstarteData{kind: BinaryBlobArray, payload: b}
}
func FromDateTime(t time.Time) AstarteData { return AstarteData{kind: DateTime, payload: t} }
func FromDateTimeArray(t []time.Time) AstarteData {
	return AstarteData{kind: DateTimeArray, payload: t}
}

// Integer returns v's payload and true if v.Kind() == Integer.
func (v AstarteData) Integer() (int32, bool) { n, ok := v.payload.(int32); return n, ok && v.kind == Integer }

func (v AstarteData) IntegerArray() ([]int32, bool) {
	n, ok := v.payload.([]int32)
	return n, ok && v.kind == IntegerArray
}

func (v AstarteData) LongInteger() (int64, bool) {
	n, ok := v.payload.(int64)
	return n, ok && v.kind == LongInteger
}

func (v AstarteData) LongIntegerArray() ([]int64, bool) {
	n, ok := v.payload.([]int64)
	return n, ok && v.kind == LongIntegerArray
}

func (v AstarteData) Double() (float64, bool) {
	f, ok := v.payload.(float64)
	return f, ok && v.kind == Double
}

func (v AstarteData) DoubleArray() ([]float64, bool) {
	f, ok := v.payload.([]float64)
	return f, ok && v.kind == DoubleArray
}

func (v AstarteData) String() (string, bool) {
	s, ok := v.payload.(string)
	return s, ok && v.kind == String
}

func (v AstarteData) StringArray() ([]string, bool) {
	s, ok := v.payload.([]string)
	return s, ok && v.kind == StringArray
}

func (v AstarteData) Boolean() (bool, bool) {
	b, ok := v.payload.(bool)
	return b, ok && v.kind == Boolean
}

func (v AstarteData) BooleanArray() ([]bool, bool) {
	b, ok := v.payload.([]bool)
	return b, ok && v.kind == BooleanArray
}

func (v AstarteData) BinaryBlob() ([]byte, bool) {
	b, ok := v.payload.([]byte)
	return b, ok && v.kind == BinaryBlob
}

func (v AstarteData) BinaryBlobArray() ([][]byte, bool) {
	b, ok := v.payload.([][]byte)
	return b, ok && v.kind == BinaryBlobArray
}

func (v AstarteData) DateTime() (time.Time, bool) {
	t, ok := v.payload.(time.Time)
	return t, ok && v.kind == DateTime
}

func (v AstarteData) DateTimeArray() ([]time.Time, bool) {
	t, ok := v.payload.([]time.Time)
	return t, ok && v.kind == DateTimeArray
}

// Equal implements the structural equality rule: tags must match, scalars
// compare by value, arrays compare elementwise in index order, and
// binary-blob arrays compare element count, per-element size, and bytes.
func Equal(a, b AstarteData) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Integer:
		av, _ := a.Integer()
		bv, _ := b.Integer()
		return av == bv
	case IntegerArray:
		av, _ := a.IntegerArray()
		bv, _ := b.IntegerArray()
		return equalSlice(av, bv)
	case LongInteger:
		av, _ := a.LongInteger()
		bv, _ := b.LongInteger()
		return av == bv
	case LongIntegerArray:
		av, _ := a.LongIntegerArray()
		bv, _ := b.LongIntegerArray()
		return equalSlice(av, bv)
	case Double:
		av, _ := a.Double()
		bv, _ := b.Double()
		return av == bv
	case DoubleArray:
		av, _ := a.DoubleArray()
		bv, _ := b.DoubleArray()
		return equalSlice(av, bv)
	case String:
		av, _ := a.String()
		bv, _ := b.String()
		return av == bv
	case StringArray:
		av, _ := a.StringArray()
		bv, _ := b.StringArray()
		return equalSlice(av, bv)
	case Boolean:
		av, _ := a.Boolean()
		bv, _ := b.Boolean()
		return av == bv
	case BooleanArray:
		av, _ := a.BooleanArray()
		bv, _ := b.BooleanArray()
		return equalSlice(av, bv)
	case BinaryBlob:
		av, _ := a.BinaryBlob()
		bv, _ := b.BinaryBlob()
		return bytes.Equal(av, bv)
	case BinaryBlobArray:
		av, _ := a.BinaryBlobArray()
		bv, _ := b.BinaryBlobArray()
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !bytes.Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case DateTime:
		av, _ := a.DateTime()
		bv, _ := b.DateTime()
		return av.Equal(bv)
	case DateTimeArray:
		av, _ := a.DateTimeArray()
		bv, _ := b.DateTimeArray()
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !av[i].Equal(bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Encode appends v to w under key, dispatching on v.Kind(). Array variants
// build a nested document whose keys are decimal indices.
func Encode(w *bson.Writer, key string, v AstarteData) error {
	const op = "astarte.Encode"
	switch v.kind {
	case Integer:
		n, _ := v.Integer()
		w.AppendInt32(key, n)
	case LongInteger:
		n, _ := v.LongInteger()
		w.AppendInt64(key, n)
	case Double:
		f, _ := v.Double()
		w.AppendDouble(key, f)
	case String:
		s, _ := v.String()
		w.AppendString(key, s)
	case Boolean:
		b, _ := v.Boolean()
		w.AppendBool(key, b)
	case BinaryBlob:
		b, _ := v.BinaryBlob()
		w.AppendBinary(key, b)
	case DateTime:
		t, _ := v.DateTime()
		w.AppendDateTime(key, t)
	case IntegerArray:
		n, _ := v.IntegerArray()
		nested := bson.NewWriter()
		for i, e := range n {
			nested.AppendInt32(bson.ArrayKey(i), e)
		}
		w.AppendArray(key, nested.Finish())
	case LongIntegerArray:
		n, _ := v.LongIntegerArray()
		nested := bson.NewWriter()
		for i, e := range n {
			nested.AppendInt64(bson.ArrayKey(i), e)
		}
		w.AppendArray(key, nested.Finish())
	case DoubleArray:
		n, _ := v.DoubleArray()
		nested := bson.NewWriter()
		for i, e := range n {
			nested.AppendDouble(bson.ArrayKey(i), e)
		}
		w.AppendArray(key, nested.Finish())
	case StringArray:
		n, _ := v.StringArray()
		nested := bson.NewWriter()
		for i, e := range n {
			nested.AppendString(bson.ArrayKey(i), e)
		}
		w.AppendArray(key, nested.Finish())
	case BooleanArray:
		n, _ := v.BooleanArray()
		nested := bson.NewWriter()
		for i, e := range n {
			nested.AppendBool(bson.ArrayKey(i), e)
		}
		w.AppendArray(key, nested.Finish())
	case BinaryBlobArray:
		n, _ := v.BinaryBlobArray()
		nested := bson.NewWriter()
		for i, e := range n {
			nested.AppendBinary(bson.ArrayKey(i), e)
		}
		w.AppendArray(key, nested.Finish())
	case DateTimeArray:
		n, _ := v.DateTimeArray()
		nested := bson.NewWriter()
		for i, e := range n {
			nested.AppendDateTime(bson.ArrayKey(i), e)
		}
		w.AppendArray(key, nested.Finish())
	default:
		return asterr.New(asterr.KindInternal, op, nil)
	}
	return nil
}

// Decode reads e as a value of mapping type want. The BSON type byte must
// be the canonical one for want (int32 is accepted where int64/long_integer
// is expected and is widened). Arrays walk the nested document, validating
// each element's type, and return an empty typed array if the nested
// document has no first element.
func Decode(e bson.Element, want MappingType) (AstarteData, error) {
	const op = "astarte.Decode"
	if want.IsArray() {
		return decodeArray(e, want, op)
	}
	switch want {
	case Integer:
		n, err := e.Int32()
		if err != nil {
			return AstarteData{}, wrapMismatch(op, err)
		}
		return FromInteger(n), nil
	case LongInteger:
		n, err := e.Int64()
		if err != nil {
			return AstarteData{}, wrapMismatch(op, err)
		}
		return FromLongInteger(n), nil
	case Double:
		f, err := e.Double()
		if err != nil {
			return AstarteData{}, wrapMismatch(op, err)
		}
		return FromDouble(f), nil
	case String:
		s, err := e.String()
		if err != nil {
			return AstarteData{}, wrapMismatch(op, err)
		}
		return FromString(s), nil
	case Boolean:
		b, err := e.Bool()
		if err != nil {
			return AstarteData{}, wrapMismatch(op, err)
		}
		return FromBoolean(b), nil
	case BinaryBlob:
		b, err := e.Binary()
		if err != nil {
			return AstarteData{}, wrapMismatch(op, err)
		}
		owned := make([]byte, len(b))
		copy(owned, b)
		return FromBinaryBlob(owned), nil
	case DateTime:
		t, err := e.DateTime()
		if err != nil {
			return AstarteData{}, wrapMismatch(op, err)
		}
		return FromDateTime(t), nil
	default:
		return AstarteData{}, asterr.New(asterr.KindInternal, op, nil)
	}
}

func wrapMismatch(op string, err error) error {
	return asterr.New(asterr.KindOf(err), op, err)
}

func decodeArray(e bson.Element, want MappingType, op string) (AstarteData, error) {
	doc, err := e.Document()
	if err != nil {
		return AstarteData{}, wrapMismatch(op, err)
	}
	scalar := want.Scalar()

	switch want {
	case IntegerArray:
		out := make([]int32, 0)
		err := walk(doc, func(el bson.Element) error {
			n, err := Decode(el, scalar)
			if err != nil {
				return err
			}
			v, _ := n.Integer()
			out = append(out, v)
			return nil
		})
		if err != nil {
			return AstarteData{}, err
		}
		return FromIntegerArray(out), nil
	case LongIntegerArray:
		out := make([]int64, 0)
		err := walk(doc, func(el bson.Element) error {
			n, err := Decode(el, scalar)
			if err != nil {
				return err
			}
			v, _ := n.LongInteger()
			out = append(out, v)
			return nil
		})
		if err != nil {
			return AstarteData{}, err
		}
		return FromLongIntegerArray(out), nil
	case DoubleArray:
		out := make([]float64, 0)
		err := walk(doc, func(el bson.Element) error {
			n, err := Decode(el, scalar)
			if err != nil {
				return err
			}
			v, _ := n.Double()
			out = append(out, v)
			return nil
		})
		if err != nil {
			return AstarteData{}, err
		}
		return FromDoubleArray(out), nil
	case StringArray:
		out := make([]string, 0)
		err := walk(doc, func(el bson.Element) error {
			n, err := Decode(el, scalar)
			if err != nil {
				return err
			}
			v, _ := n.String()
			out = append(out, v)
			return nil
		})
		if err != nil {
			return AstarteData{}, err
		}
		return FromStringArray(out), nil
	case BooleanArray:
		out := make([]bool, 0)
		err := walk(doc, func(el bson.Element) error {
			n, err := Decode(el, scalar)
			if err != nil {
				return err
			}
			v, _ := n.Boolean()
			out = append(out, v)
			return nil
		})
		if err != nil {
			return AstarteData{}, err
		}
		return FromBooleanArray(out), nil
	case BinaryBlobArray:
		out := make([][]byte, 0)
		err := walk(doc, func(el bson.Element) error {
			n, err := Decode(el, scalar)
			if err != nil {
				return err
			}
			v, _ := n.BinaryBlob()
			out = append(out, v)
			return nil
		})
		if err != nil {
			return AstarteData{}, err
		}
		return FromBinaryBlobArray(out), nil
	case DateTimeArray:
		out := make([]time.Time, 0)
		err := walk(doc, func(el bson.Element) error {
			n, err := Decode(el, scalar)
			if err != nil {
				return err
			}
			v, _ := n.DateTime()
			out = append(out, v)
			return nil
		})
		if err != nil {
			return AstarteData{}, err
		}
		return FromDateTimeArray(out), nil
	default:
		return AstarteData{}, asterr.New(asterr.KindInternal, op, nil)
	}
}

func walk(r *bson.Reader, fn func(bson.Element) error) error {
	el, ok, err := r.First()
	if err != nil {
		return err
	}
	for ok {
		if err := fn(el); err != nil {
			return err
		}
		el, ok, err = r.Next(el)
		if err != nil {
			return err
		}
	}
	return nil
}
