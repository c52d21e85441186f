package main

import "testing"

func TestHistoryCommitAndUndo(t *testing.T) {
	h := NewHistory("a")
	h.Commit("b")
	h.Commit("c")

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	if h.Current() != "c" {
		t.Errorf("Current() = %q, want %q", h.Current(), "c")
	}

	h.Undo()
	if h.Current() != "b" {
		t.Errorf("Current() after undo = %q, want %q", h.Current(), "b")
	}
	if !h.CanUndo() || !h.CanRedo() {
		t.Errorf("CanUndo()/CanRedo() = %v/%v, want true/true", h.CanUndo(), h.CanRedo())
	}
}

func TestHistoryNoOpCommit(t *testing.T) {
	h := NewHistory(TransformState{Zoom: 1})
	h.Commit(TransformState{Zoom: 2})
	h.Commit(TransformState{Zoom: 2})

	if h.Len() != 2 {
		t.Errorf("Len() after duplicate commit = %d, want 2", h.Len())
	}
}

func TestHistoryRedoTruncation(t *testing.T) {
	h := NewHistory("a")
	h.Commit("b")
	h.Commit("c")

	h.Undo()
	h.Commit("d")

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	if h.Current() != "d" {
		t.Errorf("Current() = %q, want %q", h.Current(), "d")
	}
	if h.CanRedo() {
		t.Error("CanRedo() = true after commit over undone state, want false")
	}

	// Redo must be a no-op now.
	h.Redo()
	if h.Current() != "d" {
		t.Errorf("Current() after redo = %q, want %q", h.Current(), "d")
	}
}

func TestHistoryBoundaries(t *testing.T) {
	h := NewHistory("a")

	h.Undo()
	if h.Current() != "a" {
		t.Errorf("Current() after undo at start = %q, want %q", h.Current(), "a")
	}
	h.Redo()
	if h.Current() != "a" {
		t.Errorf("Current() after redo at tail = %q, want %q", h.Current(), "a")
	}
	if h.CanUndo() || h.CanRedo() {
		t.Errorf("CanUndo()/CanRedo() = %v/%v, want false/false", h.CanUndo(), h.CanRedo())
	}
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory("a")
	h.Commit("b")
	h.Commit("c")

	h.Reset("z")

	if h.Len() != 1 {
		t.Errorf("Len() after reset = %d, want 1", h.Len())
	}
	if h.Current() != "z" {
		t.Errorf("Current() after reset = %q, want %q", h.Current(), "z")
	}
	if h.CanUndo() || h.CanRedo() {
		t.Error("reset history should have no undo or redo")
	}
}
