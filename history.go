package main

import "reflect"

// History is a single-branch undo/redo store. States form one linear array
// with a pointer; committing after an undo discards the abandoned future.
type History[T any] struct {
	states []T
	index  int
}

// NewHistory creates a history holding a single initial snapshot.
func NewHistory[T any](initial T) *History[T] {
	return &History[T]{states: []T{initial}}
}

// Commit appends state and moves the pointer to it. Committing a state equal
// to the current head is a no-op, and any redo tail beyond the pointer is
// truncated first.
func (h *History[T]) Commit(state T) {
	if reflect.DeepEqual(h.states[h.index], state) {
		return
	}
	h.states = append(h.states[:h.index+1], state)
	h.index++
}

// Undo moves the pointer back one state. At the start boundary it does nothing.
func (h *History[T]) Undo() {
	if h.index > 0 {
		h.index--
	}
}

// Redo moves the pointer forward one state. At the tail it does nothing.
func (h *History[T]) Redo() {
	if h.index < len(h.states)-1 {
		h.index++
	}
}

// Reset replaces the entire history with a single snapshot. Used when the
// underlying image changes and previous edits lose meaning.
func (h *History[T]) Reset(state T) {
	h.states = []T{state}
	h.index = 0
}

// Current returns the state at the pointer.
func (h *History[T]) Current() T {
	return h.states[h.index]
}

func (h *History[T]) CanUndo() bool { return h.index > 0 }

func (h *History[T]) CanRedo() bool { return h.index < len(h.states)-1 }

// Len reports how many snapshots the history holds.
func (h *History[T]) Len() int { return len(h.states) }
