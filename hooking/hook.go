// Package hooking lets observers attach to the points where a cache bank
// changes its content.
package hooking

import "fmt"

// HookPos names a point where a hookable object invokes its hooks.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation. Item is a flat value that can be stored
// as a table row; Detail carries whatever else the position has to offer.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable is an object that hooks can attach to.
type Hookable interface {
	// AcceptHook registers a hook. With positions given, the hook is only
	// invoked at those positions.
	AcceptHook(hook Hook, positions ...*HookPos)

	// RemoveHook unregisters a hook. Removing a hook that is not registered
	// does nothing.
	RemoveHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int
}

// Hook is invoked by a hookable object.
type Hook interface {
	Func(ctx HookCtx)
}

type hookEntry struct {
	hook      Hook
	positions []*HookPos
}

func (e hookEntry) accepts(pos *HookPos) bool {
	if len(e.positions) == 0 {
		return true
	}

	for _, p := range e.positions {
		if p == pos {
			return true
		}
	}

	return false
}

// A HookableBase keeps the hooks of a Hookable and invokes them.
type HookableBase struct {
	entries []hookEntry
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.entries)
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook, positions ...*HookPos) {
	for _, e := range h.entries {
		if e.hook == hook {
			panic(fmt.Sprintf("hook %T is already registered", hook))
		}
	}

	h.entries = append(h.entries, hookEntry{
		hook:      hook,
		positions: positions,
	})
}

// RemoveHook unregisters a hook.
func (h *HookableBase) RemoveHook(hook Hook) {
	for i, e := range h.entries {
		if e.hook == hook {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			return
		}
	}
}

// InvokeHook calls, in registration order, every hook that listens to
// ctx.Pos.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, e := range h.entries {
		if e.accepts(ctx.Pos) {
			e.hook.Func(ctx)
		}
	}
}
