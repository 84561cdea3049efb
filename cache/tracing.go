package cache

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/bdicache/cachearray"
	"github.com/sarchlab/bdicache/hooking"
	"github.com/sarchlab/bdicache/tagging"
)

var (
	// HookPosFill marks a line placed in the bank.
	HookPosFill = &hooking.HookPos{Name: "Fill"}

	// HookPosEvict marks a slot cleared to make room.
	HookPosEvict = &hooking.HookPos{Name: "Evict"}

	// HookPosUpdate marks a resident line rewritten by a write hit.
	HookPosUpdate = &hooking.HookPos{Name: "Update"}

	// HookPosInvalidate marks a line invalidated or downgraded.
	HookPosInvalidate = &hooking.HookPos{Name: "Invalidate"}
)

// HookPositions lists every position a bank invokes its hooks at.
var HookPositions = []*hooking.HookPos{
	HookPosFill,
	HookPosEvict,
	HookPosUpdate,
	HookPosInvalidate,
}

// HookPosByName finds a bank hook position by its name, ignoring case.
func HookPosByName(name string) (*hooking.HookPos, error) {
	for _, pos := range HookPositions {
		if strings.EqualFold(pos.Name, name) {
			return pos, nil
		}
	}

	return nil, fmt.Errorf("unknown hook position %q", name)
}

// A LineEvent is the hook item for every content change of a bank. It only
// has flat fields so that it can be stored as a table row.
type LineEvent struct {
	Where     string
	ReqID     string
	Cycle     uint64
	Address   uint64
	SetID     int
	Slot      int
	Valid     bool
	Size      int
	SetSize   int
	SetBudget int
}

// LogFields returns the event as logrus fields.
func (e LineEvent) LogFields() logrus.Fields {
	return logrus.Fields{
		"req":     e.ReqID,
		"cycle":   e.Cycle,
		"addr":    e.Address,
		"set":     e.SetID,
		"slot":    e.Slot,
		"valid":   e.Valid,
		"size":    e.Size,
		"setSize": e.SetSize,
		"budget":  e.SetBudget,
	}
}

func (b *Bank) lineEvent(req Request, slot int, addr uint64, valid bool) LineEvent {
	setID := b.array.SetOf(addr)

	return LineEvent{
		Where:     b.name,
		ReqID:     req.ID,
		Cycle:     req.Cycle,
		Address:   addr,
		SetID:     setID,
		Slot:      slot,
		Valid:     valid,
		Size:      b.array.Line(slot).Size,
		SetSize:   b.array.SetSize(setID),
		SetBudget: b.array.SetBudget(),
	}
}

func (b *Bank) traceFill(req Request, slot int) {
	if b.NumHooks() == 0 {
		return
	}

	ctx := hooking.HookCtx{
		Domain: b,
		Pos:    HookPosFill,
		Item:   b.lineEvent(req, slot, req.Address, true),
	}

	b.InvokeHook(ctx)
}

func (b *Bank) traceEvict(req Request, v cachearray.Victim) {
	if b.NumHooks() == 0 {
		return
	}

	e := b.lineEvent(req, v.Slot, v.Address, v.Valid)
	e.Size = v.Size

	ctx := hooking.HookCtx{
		Domain: b,
		Pos:    HookPosEvict,
		Item:   e,
		Detail: v,
	}

	b.InvokeHook(ctx)
}

func (b *Bank) traceUpdate(req Request, slot int) {
	if b.NumHooks() == 0 {
		return
	}

	ctx := hooking.HookCtx{
		Domain: b,
		Pos:    HookPosUpdate,
		Item:   b.lineEvent(req, slot, req.Address, true),
	}

	b.InvokeHook(ctx)
}

func (b *Bank) traceInvalidate(req Request, line tagging.Line, inv InvType) {
	if b.NumHooks() == 0 {
		return
	}

	e := b.lineEvent(req, line.Slot, line.Address, line.Valid)
	e.Size = line.Size

	ctx := hooking.HookCtx{
		Domain: b,
		Pos:    HookPosInvalidate,
		Item:   e,
		Detail: inv,
	}

	b.InvokeHook(ctx)
}
