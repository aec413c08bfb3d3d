// Package astarte implements the typed value, interface, and introspection
// model: the sum type devices exchange over MQTT, the schema that constrains
// it, and the bookkeeping a device advertises about itself at session start.
package astarte

import "github.com/cirrus-iot/astarte-device-sdk/internal/bson"

// MappingType enumerates the fourteen scalar/array mapping kinds a device
// interface can declare, and doubles as AstarteData's tag.
type MappingType int

const (
	Integer MappingType = iota
	IntegerArray
	LongInteger
	LongIntegerArray
	Double
	DoubleArray
	String
	StringArray
	Boolean
	BooleanArray
	BinaryBlob
	BinaryBlobArray
	DateTime
	DateTimeArray
)

func (t MappingType) String() string {
	switch t {
	case Integer:
		return "integer"
	case IntegerArray:
		return "integerarray"
	case LongInteger:
		return "longinteger"
	case LongIntegerArray:
		return "longintegerarray"
	case Double:
		return "double"
	case DoubleArray:
		return "doublearray"
	case String:
		return "string"
	case StringArray:
		return "stringarray"
	case Boolean:
		return "boolean"
	case BooleanArray:
		return "booleanarray"
	case BinaryBlob:
		return "binaryblob"
	case BinaryBlobArray:
		return "binaryblobarray"
	case DateTime:
		return "datetime"
	case DateTimeArray:
		return "datetimearray"
	default:
		return "unknown"
	}
}

// IsArray reports whether t is the array variant of a scalar type.
func (t MappingType) IsArray() bool {
	switch t {
	case IntegerArray, LongIntegerArray, DoubleArray, StringArray, BooleanArray, BinaryBlobArray, DateTimeArray:
		return true
	default:
		return false
	}
}

// Scalar returns the scalar form of t (a no-op for already-scalar types),
// used when validating the element type of a decoded array's members.
func (t MappingType) Scalar() MappingType {
	switch t {
	case IntegerArray:
		return Integer
	case LongIntegerArray:
		return LongInteger
	case DoubleArray:
		return Double
	case StringArray:
		return String
	case BooleanArray:
		return Boolean
	case BinaryBlobArray:
		return BinaryBlob
	case DateTimeArray:
		return DateTime
	default:
		return t
	}
}

// bsonTypeHint returns the canonical wire type byte for the scalar form of
// t, mirroring astarte_data_to_bson_type_hint from the original C SDK.
func bsonTypeHint(t MappingType) byte {
	switch t.Scalar() {
	case Integer:
		return bson.TypeInt32
	case LongInteger:
		return bson.TypeInt64
	case Double:
		return bson.TypeDouble
	case String:
		return bson.TypeString
	case Boolean:
		return bson.TypeBool
	case BinaryBlob:
		return bson.TypeBinary
	case DateTime:
		return bson.TypeDateTime
	default:
		return 0
	}
}

// Reliability is the delivery guarantee a mapping declares, mapped directly
// to an MQTT QoS level at publish time.
type Reliability int

const (
	Unreliable Reliability = iota
	Guaranteed
	Unique
)

// QoS returns the MQTT quality-of-service level r implies.
func (r Reliability) QoS() byte {
	switch r {
	case Guaranteed:
		return 1
	case Unique:
		return 2
	default:
		return 0
	}
}

// Retention controls whether the broker or device is asked to hold a
// message across a disconnection. Astarte's own persistence (store-and-
// forward beyond MQTT's QoS queue) is a declared non-goal; this enum exists
// so mapping descriptors round-trip the field without the SDK acting on it.
type Retention int

const (
	Discard Retention = iota
	Volatile
	Stored
)

// Ownership identifies which side of the connection originates a value.
type Ownership int

const (
	OwnershipDevice Ownership = iota
	OwnershipServer
)

// Aggregation identifies whether an interface's mappings are published one
// at a time or bundled as a single object under a common path.
type Aggregation int

const (
	AggregationIndividual Aggregation = iota
	AggregationObject
)

// InterfaceType distinguishes one-shot event streams from retained state.
type InterfaceType int

const (
	Datastream InterfaceType = iota
	Properties
)
