// Package idutil holds identifier conversions shared by the ingest
// pipeline: base58-decoded well-known property IDs and the raw-bytes-to-UUID
// mapping used for wire identifiers.
package idutil

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// NamePropertyBase58 and DescriptionPropertyBase58 are the well-known
// property identifiers the upstream substream uses for an entity's
// display name and description, as published in base58 form.
const (
	NamePropertyBase58        = "LuBWqZAu6pz5RVyeN6bWYy"
	DescriptionPropertyBase58 = "LuBWqZAu6pz5RVyeN6bWYx"
)

// MustDecodePropertyID decodes a base58 well-known property ID into its
// raw 16-byte form. It panics on malformed input because the whitelist is
// a compile-time constant, never external input.
func MustDecodePropertyID(encoded string) [16]byte {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		panic(fmt.Sprintf("idutil: malformed well-known property id %q: %v", encoded, err))
	}
	var id [16]byte
	copy(id[:], decoded)
	return id
}

// NamePropertyID and DescriptionPropertyID are the decoded forms of the
// well-known property constants above, computed once at package init.
var (
	NamePropertyID        = MustDecodePropertyID(NamePropertyBase58)
	DescriptionPropertyID = MustDecodePropertyID(DescriptionPropertyBase58)
)

// UUIDFromBytes converts a raw 16-byte wire identifier to a UUID
// deterministically: the bytes are the UUID's own representation, not a
// hash of it, so the same wire identifier always yields the same UUID.
func UUIDFromBytes(raw []byte) (uuid.UUID, error) {
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("idutil: invalid id bytes: %w", err)
	}
	return id, nil
}

// DocumentKey builds the search index document key for an entity within a
// space: "{entity_id}_{space_id}".
func DocumentKey(entityID, spaceID uuid.UUID) string {
	return entityID.String() + "_" + spaceID.String()
}
