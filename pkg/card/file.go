package card

import (
	"fmt"
	"strings"
)

// FileType separates the two elementary file categories from directories.
// Working EFs hold data the outside world reads and writes; internal EFs
// hold data only the card itself interprets (keys, counters).
type FileType byte

const (
	FileTypeWorkingEF FileType = iota
	FileTypeInternalEF
	FileTypeDF
)

func (t FileType) String() string {
	switch t {
	case FileTypeWorkingEF:
		return "wEF"
	case FileTypeInternalEF:
		return "iEF"
	case FileTypeDF:
		return "DF"
	default:
		return "???"
	}
}

// EFStructure is the data organisation of an elementary file, encoded in
// the low three bits of the file descriptor byte.
type EFStructure byte

const (
	StructureNone              EFStructure = 0x00
	StructureTransparent       EFStructure = 0x01
	StructureLinearFixed       EFStructure = 0x02
	StructureLinearFixedTLV    EFStructure = 0x03
	StructureLinearVariable    EFStructure = 0x04
	StructureLinearVariableTLV EFStructure = 0x05
	StructureCyclic            EFStructure = 0x06
	StructureCyclicTLV         EFStructure = 0x07
)

func (s EFStructure) String() string {
	switch s {
	case StructureTransparent:
		return "Transparent"
	case StructureLinearFixed:
		return "Linear fixed"
	case StructureLinearFixedTLV:
		return "Linear fixed, SIMPLE-TLV"
	case StructureLinearVariable:
		return "Linear variable"
	case StructureLinearVariableTLV:
		return "Linear variable, SIMPLE-TLV"
	case StructureCyclic:
		return "Cyclic"
	case StructureCyclicTLV:
		return "Cyclic, SIMPLE-TLV"
	default:
		return "Unknown"
	}
}

// FileStatus is the life cycle state reported in FCP tag '8A'.
type FileStatus byte

const (
	StatusUnknown FileStatus = iota
	StatusCreation
	StatusInitialisation
	StatusActivated
	StatusDeactivated
	StatusTerminated
)

func (s FileStatus) String() string {
	switch s {
	case StatusCreation:
		return "creation"
	case StatusInitialisation:
		return "initialisation"
	case StatusActivated:
		return "activated"
	case StatusDeactivated:
		return "deactivated"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Operation names an action access conditions can be attached to.
type Operation byte

const (
	OpSelect Operation = iota
	OpLock
	OpDelete
	OpCreate
	OpRehabilitate
	OpInvalidate
	OpListFiles
	OpCrypto
	OpDeleteSelf
	OpRead
	OpUpdate
	OpWrite
	OpErase

	operationCount
)

func (op Operation) String() string {
	switch op {
	case OpSelect:
		return "SELECT"
	case OpLock:
		return "LOCK"
	case OpDelete:
		return "DELETE"
	case OpCreate:
		return "CREATE"
	case OpRehabilitate:
		return "REHABILITATE"
	case OpInvalidate:
		return "INVALIDATE"
	case OpListFiles:
		return "LIST FILES"
	case OpCrypto:
		return "CRYPTO"
	case OpDeleteSelf:
		return "DELETE SELF"
	case OpRead:
		return "READ"
	case OpUpdate:
		return "UPDATE"
	case OpWrite:
		return "WRITE"
	case OpErase:
		return "ERASE"
	default:
		return fmt.Sprintf("OP(%d)", byte(op))
	}
}

// DFOperations lists the operations meaningful on a directory, in
// reporting order.
var DFOperations = []Operation{
	OpSelect, OpLock, OpDelete, OpCreate, OpRehabilitate,
	OpInvalidate, OpListFiles, OpCrypto, OpDeleteSelf,
}

// EFOperations lists the operations meaningful on an elementary file, in
// reporting order.
var EFOperations = []Operation{
	OpRead, OpUpdate, OpDelete, OpWrite, OpRehabilitate,
	OpInvalidate, OpListFiles, OpCrypto,
}

// AccessMethod is how a condition is satisfied before an operation is
// allowed.
type AccessMethod byte

const (
	// AccessUnknown means no access information is available.
	AccessUnknown AccessMethod = iota
	// AccessNone means the operation is always allowed.
	AccessNone
	// AccessNever means the operation is never allowed.
	AccessNever
	// AccessCHV requires a verified card holder PIN.
	AccessCHV
	// AccessTerminal requires terminal authentication.
	AccessTerminal
	// AccessProtected requires secure messaging.
	AccessProtected
	// AccessAuth requires external authentication with a key.
	AccessAuth
)

// NoReference marks a condition whose method carries no key or PIN number.
const NoReference = -1

// AccessCondition is one link of an operation's condition chain.
type AccessCondition struct {
	Method    AccessMethod
	Reference int
}

func (c AccessCondition) String() string {
	switch c.Method {
	case AccessNone:
		return "NONE"
	case AccessNever:
		return "NEVR"
	case AccessCHV:
		if c.Reference != NoReference {
			return fmt.Sprintf("CHV%d", c.Reference)
		}
		return "CHV"
	case AccessTerminal:
		return "TERM"
	case AccessProtected:
		return "PROT"
	case AccessAuth:
		if c.Reference != NoReference {
			return fmt.Sprintf("AUTH%d", c.Reference)
		}
		return "AUTH"
	case AccessUnknown:
		return "N/A"
	default:
		return "????"
	}
}

// ACL maps each operation to its chain of access conditions. A missing
// entry means nothing is known about the operation.
type ACL map[Operation][]AccessCondition

// Add appends one condition to an operation's chain.
func (a ACL) Add(op Operation, cond AccessCondition) {
	a[op] = append(a[op], cond)
}

// Describe renders an operation's chain in the conventional short form:
// space-joined tokens such as "CHV1 AUTH0", or a single token for the
// absolute verdicts ("NONE", "NEVR", "N/A").
func (a ACL) Describe(op Operation) string {
	conds := a[op]
	if len(conds) == 0 {
		return "N/A"
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		switch c.Method {
		case AccessUnknown, AccessNone, AccessNever:
			// Absolute verdicts stand alone, whatever else is chained.
			return c.String()
		case AccessCHV, AccessTerminal, AccessProtected, AccessAuth:
			parts = append(parts, c.String())
		default:
			return "????"
		}
	}
	return strings.Join(parts, " ")
}

// OpenACL grants every operation unconditionally. Used when creating
// files that should start with no restrictions.
func OpenACL() ACL {
	a := make(ACL, int(operationCount))
	for op := Operation(0); op < operationCount; op++ {
		a.Add(op, AccessCondition{Method: AccessNone, Reference: NoReference})
	}
	return a
}

// File describes one card file as learned from a SELECT response.
type File struct {
	ID   uint16
	Path Path

	Type      FileType
	Structure EFStructure
	Status    FileStatus

	// Size is the byte count of a transparent EF's body. For other
	// structures it is whatever the card reported, usually total capacity.
	Size int

	// RecordLength and RecordCount are present for record-oriented
	// structures when the descriptor carries them, zero otherwise.
	RecordLength int
	RecordCount  int

	// Name is the DF name (AID) for directories that have one.
	Name []byte

	// PropAttr and SecAttr are the raw proprietary ('85') and security
	// ('86') attribute bytes, kept undecoded.
	PropAttr []byte
	SecAttr  []byte

	ACL ACL
}

// IsDF reports whether the file is a directory.
func (f *File) IsDF() bool {
	return f.Type == FileTypeDF
}
