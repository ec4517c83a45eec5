package session

import (
	"fmt"
	"testing"
)

func resultFor(prompt string) GenerationResult {
	return GenerationResult{Meta: GenerationMeta{Width: 512, Height: 512, Model: "sd-turbo", Timestamp: Now()}}
}

func TestAddIterationIndices(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 5; i++ {
		iter := h.AddIteration(fmt.Sprintf("prompt %d", i), resultFor(""))
		if iter.Index != i {
			t.Errorf("iteration %d assigned index %d", i, iter.Index)
		}
	}
	for i, iter := range h.GetAllIterations() {
		if iter.Index != i {
			t.Errorf("GetAllIterations()[%d].Index = %d", i, iter.Index)
		}
	}
}

func TestUndoRedoCursor(t *testing.T) {
	h := NewHistory()
	h.AddIteration("red", resultFor("red"))
	h.AddIteration("blue", resultFor("blue"))

	if h.CurrentIndex() != 1 {
		t.Fatalf("CurrentIndex() = %d, want 1", h.CurrentIndex())
	}

	iter, ok := h.Undo()
	if !ok || iter.Index != 0 {
		t.Fatalf("Undo() = (%v, %v), want iteration 0", iter, ok)
	}
	if !h.CanRedo() {
		t.Error("CanRedo() = false after undo")
	}

	redone, ok := h.Redo()
	if !ok || redone.Index != 1 {
		t.Fatalf("Redo() = (%v, %v), want iteration 1", redone, ok)
	}
	if h.CurrentIndex() != 1 {
		t.Errorf("cursor after undo+redo = %d, want 1", h.CurrentIndex())
	}
}

func TestUndoRedoSameObject(t *testing.T) {
	h := NewHistory()
	h.AddIteration("a", resultFor("a"))
	h.AddIteration("b", resultFor("b"))

	before, _ := h.Current()
	h.Undo()
	after, _ := h.Redo()
	if before != after {
		t.Error("undo then redo did not yield the same iteration object")
	}
}

func TestUndoAtStart(t *testing.T) {
	h := NewHistory()
	if _, ok := h.Undo(); ok {
		t.Error("Undo() on empty history succeeded")
	}
	h.AddIteration("only", resultFor("only"))
	if h.CanUndo() {
		t.Error("CanUndo() = true with a single iteration")
	}
	if _, ok := h.Undo(); ok {
		t.Error("Undo() at first iteration succeeded")
	}
}

func TestAddInvalidatesRedo(t *testing.T) {
	h := NewHistory()
	h.AddIteration("a", resultFor("a"))
	h.AddIteration("b", resultFor("b"))
	h.Undo()
	h.AddIteration("c", resultFor("c"))
	if h.CanRedo() {
		t.Error("CanRedo() = true after a new addition")
	}
	if h.CurrentIndex() != 2 {
		t.Errorf("cursor = %d, want 2 (new end)", h.CurrentIndex())
	}
}

func TestGetLastNClamps(t *testing.T) {
	h := NewHistory()
	h.AddIteration("a", resultFor("a"))
	h.AddIteration("b", resultFor("b"))

	if got := h.GetLastN(10); len(got) != 2 {
		t.Errorf("GetLastN(10) returned %d, want 2", len(got))
	}
	if got := h.GetLastN(1); len(got) != 1 || got[0].Prompt != "b" {
		t.Errorf("GetLastN(1) = %v", got)
	}
	if got := h.GetLastN(0); got != nil {
		t.Errorf("GetLastN(0) = %v, want nil", got)
	}
}

func TestMarkRolledBackToAnnotates(t *testing.T) {
	h := NewHistory()
	h.AddIteration("a", resultFor("a"))
	h.AddIteration("b", resultFor("b"))

	if !h.MarkRolledBackTo(0) {
		t.Fatal("MarkRolledBackTo(0) = false")
	}
	if h.MarkRolledBackTo(5) {
		t.Error("MarkRolledBackTo(5) = true for missing index")
	}
	if h.Len() != 2 {
		t.Errorf("Len() = %d after mark, want 2 (no truncation)", h.Len())
	}
	iter, _ := h.GetIteration(0)
	if !iter.RolledBack {
		t.Error("iteration 0 not flagged")
	}
	if h.CurrentIndex() != 1 {
		t.Errorf("cursor moved by mark: %d", h.CurrentIndex())
	}
}

func TestTruncateAfter(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 4; i++ {
		h.AddIteration(fmt.Sprintf("p%d", i), resultFor(""))
	}
	h.TruncateAfter(1)
	if h.Len() != 2 {
		t.Errorf("Len() = %d after truncate, want 2", h.Len())
	}
	if h.CurrentIndex() != 1 {
		t.Errorf("cursor = %d after truncate, want 1", h.CurrentIndex())
	}
}

func TestClear(t *testing.T) {
	h := NewHistory()
	h.AddIteration("a", resultFor("a"))
	h.Clear()
	if h.Len() != 0 || h.CurrentIndex() != -1 {
		t.Errorf("Clear() left len=%d cursor=%d", h.Len(), h.CurrentIndex())
	}
}

func TestRebuildSharesObjects(t *testing.T) {
	iters := []*Iteration{
		{Index: 0, Prompt: "a"},
		{Index: 1, Prompt: "b"},
	}
	h := Rebuild(iters)
	if h.CurrentIndex() != 1 {
		t.Errorf("Rebuild cursor = %d, want 1", h.CurrentIndex())
	}
	got, _ := h.GetIteration(0)
	if got != iters[0] {
		t.Error("Rebuild copied iterations instead of sharing them")
	}
}
