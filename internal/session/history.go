package session

// History is the per-session append-only log of iterations with a movable
// undo/redo cursor. It is a secondary index over the same Iteration objects
// held by the active Session, not an independent copy. No internal locking:
// one logical writer per session is assumed.
type History struct {
	iterations []*Iteration
	cursor     int // index of the current iteration; -1 when empty
}

func NewHistory() *History {
	return &History{cursor: -1}
}

// Rebuild attaches an existing iteration sequence (shared pointers, not
// copies) and places the cursor at the end.
func Rebuild(iterations []*Iteration) *History {
	return &History{iterations: iterations, cursor: len(iterations) - 1}
}

// AddIteration assigns the next sequential index, appends, and moves the
// cursor to the new end. Every addition invalidates redo.
func (h *History) AddIteration(prompt string, result GenerationResult) *Iteration {
	iter := &Iteration{
		Index:  len(h.iterations),
		Prompt: prompt,
		Result: result,
	}
	h.iterations = append(h.iterations, iter)
	h.cursor = len(h.iterations) - 1
	return iter
}

// GetIteration returns the iteration at index i.
func (h *History) GetIteration(i int) (*Iteration, bool) {
	if i < 0 || i >= len(h.iterations) {
		return nil, false
	}
	return h.iterations[i], true
}

// GetLastN returns up to the last n iterations in order. n is clamped to
// the available length; n > size is never an error.
func (h *History) GetLastN(n int) []*Iteration {
	if n <= 0 {
		return nil
	}
	if n > len(h.iterations) {
		n = len(h.iterations)
	}
	return h.iterations[len(h.iterations)-n:]
}

// GetAllIterations returns the full log in insertion order.
func (h *History) GetAllIterations() []*Iteration {
	return h.iterations
}

// Len returns the number of recorded iterations.
func (h *History) Len() int { return len(h.iterations) }

// CurrentIndex returns the cursor position, -1 when empty.
func (h *History) CurrentIndex() int { return h.cursor }

// Current returns the iteration under the cursor.
func (h *History) Current() (*Iteration, bool) {
	return h.GetIteration(h.cursor)
}

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor < len(h.iterations)-1 }

// Undo moves the cursor one step back and returns the iteration now under
// it. Returns false when already at the first iteration or empty.
func (h *History) Undo() (*Iteration, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.cursor--
	return h.iterations[h.cursor], true
}

// Redo is the mirror of Undo.
func (h *History) Redo() (*Iteration, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.cursor++
	return h.iterations[h.cursor], true
}

// MarkRolledBackTo flags iteration i as the target of a rollback. It is an
// annotation: neither the log length nor the cursor changes.
func (h *History) MarkRolledBackTo(i int) bool {
	iter, ok := h.GetIteration(i)
	if !ok {
		return false
	}
	iter.RolledBack = true
	return true
}

// TruncateAfter drops all iterations after index i; used by destructive
// rollback. The cursor is clamped to the new end.
func (h *History) TruncateAfter(i int) []*Iteration {
	if i < 0 || i >= len(h.iterations)-1 {
		return h.iterations
	}
	h.iterations = h.iterations[:i+1]
	if h.cursor > i {
		h.cursor = i
	}
	return h.iterations
}

// Clear resets the log and cursor completely.
func (h *History) Clear() {
	h.iterations = nil
	h.cursor = -1
}
