package engine

import "draftpad/doc"

// Edit entry points for the UI layer. All document mutation must come
// through these (or HandleKey) so the change callback always runs with
// the engine mutex held.

// ApplyUserEdit applies an editor delta as a user edit, which propagates
// it over the sync channel and re-arms the suggestion debouncer.
func (e *Engine) ApplyUserEdit(delta doc.Delta) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docu.Apply(delta, doc.SourceUser)
}

// InsertText types text at index with no formatting.
func (e *Engine) InsertText(index int, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docu.InsertText(index, text, nil, doc.SourceUser)
}

// DeleteRange removes length characters starting at index.
func (e *Engine) DeleteRange(index, length int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docu.Delete(index, length, doc.SourceUser)
}

// SetCaret moves the caret; length > 0 selects a range.
func (e *Engine) SetCaret(index, length int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docu.SetSelection(index, length, doc.SourceUser)
}

// Text returns the canonical document text.
func (e *Engine) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docu.Text()
}
