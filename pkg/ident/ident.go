// Package ident holds the core identifier types: 128-bit object IDs,
// 64-bit type IDs, monotonic versions, and the millisecond wall clock.
package ident

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/iris/pkg/errdefs"
)

// ObjectID is the 128-bit identity of a stored object. IDs are opaque; the
// canonical text form is 32 lowercase hex characters.
type ObjectID [16]byte

// TypeID identifies a type defined by a TypeDefinition. Zero is reserved.
type TypeID uint64

// Version is a monotonic per-ObjectID revision number.
type Version uint64

// ObjectRef names one immutable revision of an object.
type ObjectRef struct {
	ID  ObjectID
	Ver Version
}

// NewObjectID returns a fresh random ObjectID. The bytes carry the UUID v4
// pattern (byte 6 high nibble = 4, byte 8 top two bits = 10) so IDs read as
// UUIDs in debug output; cryptographic quality is not a contract.
func NewObjectID() ObjectID {
	return ObjectID(uuid.New())
}

// Hex returns the 32-character lowercase hex form.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// ParseHex parses the canonical hex form. Case-insensitive; anything that is
// not exactly 32 hex digits fails with errdefs.ErrInvalidHex.
func ParseHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 32 {
		return id, fmt.Errorf("%w: object id hex must be 32 chars, got %d", errdefs.ErrInvalidHex, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", errdefs.ErrInvalidHex, err)
	}
	copy(id[:], raw)
	return id, nil
}

// IsZero reports whether the ID is all zero bytes.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

func (id ObjectID) String() string { return id.Hex() }

// NowMS is the wall clock in milliseconds since the Unix epoch, used as
// created_at_ms on every record. It is not a causal clock; insertion order
// is the ordering key.
func NowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// Hash64 mixes the ObjectID bytes and the version with FNV-1a. The segment
// store keys its in-memory ref indexes on this value; collisions are resolved
// by full ref comparison at the call site.
func (r ObjectRef) Hash64() uint64 {
	h := uint64(fnvOffset)
	for _, b := range r.ID {
		h ^= uint64(b)
		h *= fnvPrime
	}
	h ^= uint64(r.Ver)
	h *= fnvPrime
	return h
}
