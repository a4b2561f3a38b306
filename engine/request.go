package engine

import (
	"time"

	"draftpad/logger"
	"draftpad/types"
)

// scheduleSuggestionRequest records the post-edit caret as the single
// pending suggestion request and (re)arms the debounce timer. A newer edit
// before the timer fires supersedes the pending request; nothing queues.
// Caller holds the mutex.
func (e *Engine) scheduleSuggestionRequest() {
	e.pending = &types.SuggestionRequestPayload{
		DocumentID:     e.docID,
		CursorPosition: e.caretIndex(),
		RequestID:      e.nextRequestID(),
	}

	e.stopDebounceTimer()
	e.debounceTimer = time.AfterFunc(e.config.DebounceDelay, func() {
		e.Post(Event{Type: EventDebounceTimeout})
	})
}

// issueSuggestionRequest emits the pending request, if any, and records
// its id as the one fresh responses must match. Caller holds the mutex.
func (e *Engine) issueSuggestionRequest() {
	if e.pending == nil {
		return
	}
	req := e.pending
	e.pending = nil
	e.lastIssuedID = req.RequestID

	logger.Debug("requesting suggestions at %d (request %d)", req.CursorPosition, req.RequestID)
	e.emit(types.EventClientRequestSuggestions, req)
}

// nextRequestID stamps a monotonically increasing request id. Wall-clock
// milliseconds, bumped past the previous stamp when edits land within the
// same millisecond.
func (e *Engine) nextRequestID() int64 {
	id := e.clock.Now().UnixMilli()
	if id <= e.lastStampedID {
		id = e.lastStampedID + 1
	}
	e.lastStampedID = id
	return id
}

func (e *Engine) stopDebounceTimer() {
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
}
