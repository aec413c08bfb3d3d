// Package uuidgen generates the RFC 4122 v4 and v5 identifiers the device
// SDK uses to derive stable device and hardware IDs, delegating the
// version/variant fixup to google/uuid and adding the text/base64/base64url
// codecs the rest of the SDK needs on top.
package uuidgen

import (
	"encoding/base64"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/google/uuid"
)

// UUID is a 16-byte RFC 4122 identifier.
type UUID = uuid.UUID

// Nil is the all-zero UUID, used as the v5 namespace in determinism tests.
var Nil UUID

// V4 returns a random (version 4) UUID.
func V4() (UUID, error) {
	const op = "uuidgen.V4"
	u, err := uuid.NewRandom()
	if err != nil {
		return UUID{}, asterr.New(asterr.KindInternal, op, err)
	}
	return u, nil
}

// V5 returns a name-based (version 5, SHA-1) UUID derived from namespace and
// data.
func V5(namespace UUID, data []byte) UUID {
	return uuid.NewSHA1(namespace, data)
}

// ParseString parses the canonical 36-character 8-4-4-4-12 lowercase-hex
// form.
func ParseString(s string) (UUID, error) {
	const op = "uuidgen.ParseString"
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, asterr.New(asterr.KindInvalidParam, op, err)
	}
	return u, nil
}

// String returns the canonical 36-character text form.
func String(u UUID) string {
	return u.String()
}

// ToBase64 returns the standard (padded) base64 encoding of u's 16 bytes.
func ToBase64(u UUID) string {
	return base64.StdEncoding.EncodeToString(u[:])
}

// FromBase64 decodes the standard base64 form produced by ToBase64.
func FromBase64(s string) (UUID, error) {
	const op = "uuidgen.FromBase64"
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return UUID{}, asterr.New(asterr.KindInvalidParam, op, err)
	}
	var u UUID
	copy(u[:], raw)
	return u, nil
}

// ToBase64URL returns the 22-character, unpadded, URL-safe base64 encoding
// of u's 16 bytes.
func ToBase64URL(u UUID) string {
	return base64.RawURLEncoding.EncodeToString(u[:])
}

// FromBase64URL decodes the URL-safe, unpadded form produced by
// ToBase64URL.
func FromBase64URL(s string) (UUID, error) {
	const op = "uuidgen.FromBase64URL"
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return UUID{}, asterr.New(asterr.KindInvalidParam, op, err)
	}
	var u UUID
	copy(u[:], raw)
	return u, nil
}
