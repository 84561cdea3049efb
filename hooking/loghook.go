package hooking

import (
	"github.com/sirupsen/logrus"
)

// A LogHook writes every hook invocation to a logger at debug level.
type LogHook struct {
	Logger *logrus.Logger
}

// NewLogHook creates a LogHook that writes to logger.
func NewLogHook(logger *logrus.Logger) *LogHook {
	return &LogHook{Logger: logger}
}

// Func logs the position and the item of the invocation.
func (h *LogHook) Func(ctx HookCtx) {
	if !h.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}

	entry := h.Logger.WithField("pos", ctx.Pos.Name)
	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		entry = entry.WithField("where", named.Name())
	}

	if fields, ok := ctx.Item.(interface{ LogFields() logrus.Fields }); ok {
		entry = entry.WithFields(fields.LogFields())
	} else if ctx.Item != nil {
		entry = entry.WithField("item", ctx.Item)
	}

	entry.Debug("hook")
}
