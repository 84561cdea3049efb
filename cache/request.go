package cache

import "fmt"

// AccessType is the kind of request a bank serves.
type AccessType int

// The access types, named after the coherence messages that carry them.
const (
	ReadShared     AccessType = iota // GETS
	ReadExclusive                    // GETX
	WriteShared                      // PUTS
	WriteExclusive                   // PUTX
)

func (t AccessType) String() string {
	switch t {
	case ReadShared:
		return "GETS"
	case ReadExclusive:
		return "GETX"
	case WriteShared:
		return "PUTS"
	case WriteExclusive:
		return "PUTX"
	default:
		return fmt.Sprintf("AccessType(%d)", int(t))
	}
}

// IsRead returns true for the access types that move the line up the
// replacement order.
func (t AccessType) IsRead() bool {
	return t == ReadShared || t == ReadExclusive
}

// WritesData returns true for the access types that may change a resident
// line's content. A GETX obtains ownership so it is treated as a write.
func (t AccessType) WritesData() bool {
	return t == ReadExclusive || t == WriteShared || t == WriteExclusive
}

// InvType is the kind of invalidation a controller asks for.
type InvType int

// The invalidation types.
const (
	InvTypeInvalidate InvType = iota // INV
	InvTypeDowngrade                 // INVX
)

func (t InvType) String() string {
	switch t {
	case InvTypeInvalidate:
		return "INV"
	case InvTypeDowngrade:
		return "INVX"
	default:
		return fmt.Sprintf("InvType(%d)", int(t))
	}
}

// A Request is an access or an invalidation seen by a bank.
//
// Data is the full line image as known by the requester. A write merges
// Data[Offset:Offset+Size] into the resident line; a fill stores Data as is.
type Request struct {
	ID      string
	Address uint64
	Type    AccessType
	Data    []byte
	Offset  int
	Size    int
	Cycle   uint64
}

// writeRange returns the bytes a write hit should merge into a line of the
// given size.
func (r Request) writeRange(lineSize int) []byte {
	if r.Offset < 0 || r.Offset >= lineSize || r.Offset >= len(r.Data) {
		return nil
	}

	n := r.Size
	if n <= 0 {
		n = lineSize - r.Offset
	}

	end := min(r.Offset+n, lineSize, len(r.Data))

	return r.Data[r.Offset:end]
}
