package stats

import (
	"github.com/sarchlab/bdicache/datarecording"
	"github.com/sarchlab/bdicache/hooking"
)

// A RecordingHook writes the item of every invocation into a table named
// after the hook position. Items must be flat structs.
type RecordingHook struct {
	recorder datarecording.DataRecorder
	prefix   string
	created  map[string]bool
}

// NewRecordingHook creates a hook that writes into recorder. Table names are
// prefix followed by the hook position name.
func NewRecordingHook(
	recorder datarecording.DataRecorder,
	prefix string,
) *RecordingHook {
	return &RecordingHook{
		recorder: recorder,
		prefix:   prefix,
		created:  make(map[string]bool),
	}
}

// Func records ctx.Item.
func (h *RecordingHook) Func(ctx hooking.HookCtx) {
	if ctx.Item == nil {
		return
	}

	tableName := h.prefix + ctx.Pos.Name
	if !h.created[tableName] {
		h.recorder.CreateTable(tableName, ctx.Item)
		h.created[tableName] = true
	}

	h.recorder.InsertData(tableName, ctx.Item)
}
