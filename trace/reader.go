// Package trace reads text traces of cache accesses.
//
// Each line holds one record:
//
//	<OP> <hex address> [hex line data] [offset size]
//
// OP is one of GETS, GETX, PUTS, PUTX, INV and INVX. Addresses are line
// addresses. Everything after a '#' is a comment.
package trace

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/bdicache/cache"
)

// Op is the operation of a record.
type Op int

// The operations a trace can hold.
const (
	OpGETS Op = iota
	OpGETX
	OpPUTS
	OpPUTX
	OpINV
	OpINVX
)

var opNames = map[string]Op{
	"GETS": OpGETS,
	"GETX": OpGETX,
	"PUTS": OpPUTS,
	"PUTX": OpPUTX,
	"INV":  OpINV,
	"INVX": OpINVX,
}

func (o Op) String() string {
	switch o {
	case OpGETS, OpGETX, OpPUTS, OpPUTX:
		return o.AccessType().String()
	case OpINV, OpINVX:
		return o.InvType().String()
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// IsInvalidation returns true for INV and INVX.
func (o Op) IsInvalidation() bool {
	return o == OpINV || o == OpINVX
}

// AccessType returns the access type of a GETS, GETX, PUTS or PUTX.
func (o Op) AccessType() cache.AccessType {
	switch o {
	case OpGETS:
		return cache.ReadShared
	case OpGETX:
		return cache.ReadExclusive
	case OpPUTS:
		return cache.WriteShared
	case OpPUTX:
		return cache.WriteExclusive
	default:
		panic(fmt.Sprintf("%s is not an access", o))
	}
}

// InvType returns the invalidation type of an INV or INVX.
func (o Op) InvType() cache.InvType {
	switch o {
	case OpINV:
		return cache.InvTypeInvalidate
	case OpINVX:
		return cache.InvTypeDowngrade
	default:
		panic(fmt.Sprintf("%s is not an invalidation", o))
	}
}

// A Record is one line of a trace.
type Record struct {
	LineNo   int
	Op       Op
	Address  uint64
	Data     []byte
	Offset   int
	Size     int
	HasRange bool
}

// Request turns the record into a bank request.
func (r Record) Request(id string, cycle uint64) cache.Request {
	req := cache.Request{
		ID:      id,
		Address: r.Address,
		Data:    r.Data,
		Offset:  r.Offset,
		Size:    r.Size,
		Cycle:   cycle,
	}

	if !r.Op.IsInvalidation() {
		req.Type = r.Op.AccessType()
	}

	return req
}

// A Reader reads records one by one.
type Reader struct {
	scanner *bufio.Scanner
	lineNo  int
}

// NewReader creates a reader on r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	return &Reader{scanner: scanner}
}

// Next returns the next record. It returns io.EOF after the last record.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.lineNo++

		text := r.scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		rec, err := parseRecord(fields)
		if err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.lineNo, err)
		}

		rec.LineNo = r.lineNo

		return rec, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("line %d: %w", r.lineNo+1, err)
	}

	return Record{}, io.EOF
}

// ReadAll reads every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return records, err
		}

		records = append(records, rec)
	}
}

func parseRecord(fields []string) (Record, error) {
	var rec Record

	op, ok := opNames[strings.ToUpper(fields[0])]
	if !ok {
		return rec, fmt.Errorf("unknown operation %q", fields[0])
	}

	rec.Op = op

	if len(fields) < 2 {
		return rec, errors.New("missing address")
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
	if err != nil {
		return rec, fmt.Errorf("bad address %q: %w", fields[1], err)
	}

	rec.Address = addr

	rest := fields[2:]
	if len(rest) == 1 || len(rest) == 3 {
		rec.Data, err = hex.DecodeString(strings.TrimPrefix(rest[0], "0x"))
		if err != nil {
			return rec, fmt.Errorf("bad line data: %w", err)
		}

		rest = rest[1:]
	}

	switch len(rest) {
	case 0:
	case 2:
		rec.Offset, rec.Size, err = parseRange(rest[0], rest[1])
		if err != nil {
			return rec, err
		}

		rec.HasRange = true
	default:
		return rec, fmt.Errorf("expected at most 5 fields, got %d",
			len(fields))
	}

	return rec, nil
}

func parseRange(offsetStr, sizeStr string) (offset, size int, err error) {
	offset, err = strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("bad offset %q", offsetStr)
	}

	size, err = strconv.Atoi(sizeStr)
	if err != nil || size <= 0 {
		return 0, 0, fmt.Errorf("bad size %q", sizeStr)
	}

	return offset, size, nil
}
