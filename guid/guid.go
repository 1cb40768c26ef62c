// Package guid issues the opaque identifiers used to track in-flight tasks.
//
// An ID is a fixed-size byte array, so it is comparable and can key a Go map
// directly. The textual form is 32 lowercase hex characters.
package guid

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Size is the width of an ID in bytes.
const Size = 16

// ID identifies a single tracked task.
type ID [Size]byte

// Nil is the zero ID. New never returns it.
var Nil ID

// ErrInvalidID is returned by Parse for malformed input.
var ErrInvalidID = errors.New("guid: invalid identifier")

// Source produces identifiers that do not collide for the lifetime of a process.
type Source interface {
	NewID() ID
}

// Random is a Source backed by random (version 4) UUIDs.
type Random struct{}

// NewID implements Source.
func (Random) NewID() ID { return New() }

// New returns a fresh random identifier.
func New() ID {
	for {
		id := ID(uuid.New())
		if id != Nil {
			return id
		}
	}
}

// Parse decodes the 32-character hex form produced by String. The dashed
// UUID form is accepted as well.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if len(s) == 2*Size {
		var id ID
		if _, err := hex.Decode(id[:], []byte(s)); err != nil {
			return Nil, ErrInvalidID
		}
		return id, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, ErrInvalidID
	}
	return ID(u), nil
}

// String renders the identifier as lowercase hex.
func (id ID) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether id is Nil.
func (id ID) IsZero() bool { return id == Nil }
