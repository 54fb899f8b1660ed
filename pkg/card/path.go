package card

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// FILE REFERENCING (ISO 7816-4):
// A file on the card is addressed in one of three shapes.
//
//  1. File identifier: two bytes naming a child of the currently selected DF.
//  2. Path: a chain of two-byte identifiers starting at the MF ('3F00').
//  3. DF name: an application identifier (AID) of up to 16 bytes, locating a
//     DF anywhere on the card without knowing its position in the tree.
//
// A DF name path cannot grow by appending identifiers. When the user walks
// into a child of an AID-selected application, the name moves into the
// auxiliary AID buffer and the path restarts as an identifier chain relative
// to that application.

const (
	// MaxPathLen bounds the identifier chain of a path, in bytes.
	MaxPathLen = 16
	// MaxAIDLen bounds a DF name / application identifier, in bytes.
	MaxAIDLen = 16
)

// MasterFileID is the reserved identifier of the file system root.
const MasterFileID uint16 = 0x3F00

var (
	ErrPathTooLong = errors.New("path exceeds maximum length")
	ErrAIDTooLong  = errors.New("DF name exceeds maximum AID length")
	// ErrAlreadyAtRoot is reported when ".." is applied at (or one level
	// from) the MF.
	ErrAlreadyAtRoot = errors.New("already at MF")
)

// PathKind tags the addressing shape of a Path.
type PathKind byte

const (
	// PathKindFileID addresses a direct child of the selected DF.
	PathKindFileID PathKind = iota
	// PathKindAbsolute addresses by full identifier chain from the MF.
	PathKindAbsolute
	// PathKindDFName addresses a DF by application name.
	PathKindDFName
)

func (k PathKind) String() string {
	switch k {
	case PathKindFileID:
		return "file identifier"
	case PathKindAbsolute:
		return "absolute path"
	case PathKindDFName:
		return "DF name"
	default:
		return fmt.Sprintf("unknown kind (%d)", byte(k))
	}
}

// Path is a card file reference. The zero value is an empty identifier
// path, ready to have components appended.
type Path struct {
	Kind  PathKind
	Value []byte

	// AID holds the application name an identifier chain hangs under, once
	// a DF name path has been converted for appending. Empty otherwise.
	AID []byte
}

// MasterFile returns the absolute path of the root DF.
func MasterFile() Path {
	return Path{Kind: PathKindAbsolute, Value: []byte{0x3F, 0x00}}
}

// NewPath builds a validated path of the given kind.
func NewPath(kind PathKind, value []byte) (Path, error) {
	if kind == PathKindDFName {
		if len(value) > MaxAIDLen {
			return Path{}, ErrAIDTooLong
		}
		return Path{Kind: kind, Value: cloneBytes(value)}, nil
	}
	if len(value) > MaxPathLen {
		return Path{}, ErrPathTooLong
	}
	if len(value)%2 != 0 {
		return Path{}, fmt.Errorf("identifier path must be a whole number of 2-byte components, got %d bytes", len(value))
	}
	return Path{Kind: kind, Value: cloneBytes(value)}, nil
}

// Append returns a copy of p extended by one file identifier. A DF name
// path is first rewritten as an identifier chain under its AID, since
// identifier components cannot follow a name-shaped value.
func (p Path) Append(id []byte) (Path, error) {
	next := Path{Kind: p.Kind, Value: cloneBytes(p.Value), AID: cloneBytes(p.AID)}

	if next.Kind == PathKindDFName {
		if len(next.Value) > MaxAIDLen {
			return Path{}, ErrAIDTooLong
		}
		next.AID = next.Value
		next.Value = nil
		next.Kind = PathKindFileID
	}
	if len(next.Value)+len(id) > MaxPathLen {
		return Path{}, ErrPathTooLong
	}
	next.Value = append(next.Value, id...)
	return next, nil
}

// Parent returns the path one directory level up. Going up from an
// AID-selected application always lands on the MF.
func (p Path) Parent() (Path, error) {
	if len(p.Value) < 4 {
		return Path{}, ErrAlreadyAtRoot
	}
	if p.Kind == PathKindDFName {
		return MasterFile(), nil
	}
	return Path{Kind: p.Kind, Value: cloneBytes(p.Value[:len(p.Value)-2]), AID: cloneBytes(p.AID)}, nil
}

// ID returns the last identifier of the chain, zero if the path is too
// short to carry one.
func (p Path) ID() uint16 {
	if p.Kind == PathKindDFName || len(p.Value) < 2 {
		return 0
	}
	return uint16(p.Value[len(p.Value)-2])<<8 | uint16(p.Value[len(p.Value)-1])
}

// Components splits an identifier chain into its 2-byte elements.
func (p Path) Components() [][]byte {
	if p.Kind == PathKindDFName {
		return nil
	}
	var out [][]byte
	for i := 0; i+2 <= len(p.Value); i += 2 {
		out = append(out, p.Value[i:i+2])
	}
	return out
}

// String renders an identifier chain as slash-separated hex components
// ("3F00/5015") and a DF name as plain hex.
func (p Path) String() string {
	if p.Kind == PathKindDFName {
		return fmt.Sprintf("%X", p.Value)
	}
	parts := make([]string, 0, len(p.Value)/2)
	for _, c := range p.Components() {
		parts = append(parts, fmt.Sprintf("%X", c))
	}
	return strings.Join(parts, "/")
}

// Equal reports whether two paths address the same file the same way.
func (p Path) Equal(o Path) bool {
	return p.Kind == o.Kind && bytes.Equal(p.Value, o.Value) && bytes.Equal(p.AID, o.AID)
}

// IsEmpty reports whether the path carries no addressing information yet.
func (p Path) IsEmpty() bool {
	return len(p.Value) == 0 && len(p.AID) == 0
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
