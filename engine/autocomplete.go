package engine

import (
	"strings"
	"time"
	"unicode"

	"draftpad/doc"
	"draftpad/logger"
	"draftpad/types"

	"github.com/google/uuid"
)

// AttrGhost marks runs holding the not-yet-committed candidate suffix.
// The UI renders these in a muted style.
const AttrGhost = "ghost"

// autocompleteSession is the single active ghost-suggestion cycle. At most
// one exists per engine; a newer valid response replaces it wholesale.
type autocompleteSession struct {
	candidates []string
	idx        int
	anchor     int    // cursorPositionBeforeSuggestion
	typed      string // prefix of the current candidate the user typed
	requestID  int64
	metricsID  string
	shownAt    time.Time

	// renderedLen is the fallback size of the rendered candidate when the
	// ghost marker cannot be located in the document.
	renderedLen int
}

func (s *autocompleteSession) candidate() string {
	return s.candidates[s.idx]
}

// matchesSuggestion reports whether typed is an acceptable prefix of the
// candidate: case-sensitive when the typed text contains an uppercase
// letter, case-insensitive otherwise.
func matchesSuggestion(typed, candidate string) bool {
	if typed == "" {
		return true
	}
	for _, r := range typed {
		if unicode.IsUpper(r) {
			return strings.HasPrefix(candidate, typed)
		}
	}
	return strings.HasPrefix(strings.ToLower(candidate), strings.ToLower(typed))
}

// showSuggestions enters (or replaces) the showing state from an inbound
// suggestions response. The freshness guard drops anything that does not
// match the last issued request id. Caller holds the mutex.
func (e *Engine) showSuggestions(p *types.SuggestionsPayload) {
	if p.RequestID != e.lastIssuedID {
		logger.Debug("dropping stale suggestions (request %d, latest %d)", p.RequestID, e.lastIssuedID)
		return
	}
	if len(p.Suggestions) == 0 || p.CursorPosition == nil {
		// Malformed or empty response: no suggestion to show.
		e.cancelSession()
		return
	}

	// Replace any active session wholesale, ghost rendering included.
	if e.session != nil {
		e.removeRendered()
	}

	anchor := e.caretIndex()
	e.session = &autocompleteSession{
		candidates: p.Suggestions,
		idx:        0,
		anchor:     anchor,
		requestID:  p.RequestID,
		metricsID:  uuid.NewString(),
		shownAt:    e.clock.Now(),
	}
	e.renderCandidate()
	if e.session == nil {
		// Rendering failed and tore the session down.
		return
	}
	e.state = stateShowing

	if e.metrics != nil {
		e.metrics.SuggestionShown(e.session.metricsID)
	}
}

// HandleKey feeds one keystroke to the autocompletion state machine.
// The returned bool is whether the engine consumed the key (the UI must
// suppress its default handling); in idle state every key passes through.
func (e *Engine) HandleKey(k Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || e.state != stateShowing || e.session == nil {
		return false
	}

	switch k.Kind {
	case KeyArrowDown:
		e.cycleCandidate(1)
		return true
	case KeyArrowUp:
		e.cycleCandidate(-1)
		return true
	case KeyEnter, KeyTab:
		e.commitCandidate()
		return true
	case KeyEscape:
		e.cancelSession()
		return true
	case KeyChar, KeyBackspace:
		e.typeIntoSession(k)
		return true
	default:
		// Shift and unrecognized keys pass through untouched.
		return false
	}
}

// renderCandidate renders the current candidate at the anchor as
// [typed prefix, normal style][remaining suffix, ghost style], with the
// caret placed after the typed portion.
func (e *Engine) renderCandidate() {
	s := e.session
	cand := []rune(s.candidate())
	typedLen := len([]rune(s.typed))

	delta := doc.Delta{}.Push(doc.Op{Retain: s.anchor})
	if typedLen > 0 {
		delta = delta.Push(doc.Op{Insert: string(cand[:typedLen])})
	}
	delta = delta.Push(doc.Op{Insert: string(cand[typedLen:]), Attrs: doc.Attributes{AttrGhost: true}})

	if err := e.docu.Apply(delta, doc.SourceSilent); err != nil {
		logger.Error("rendering candidate: %v", err)
		e.session = nil
		e.state = stateIdle
		return
	}
	s.renderedLen = len(cand)
	e.docu.SetSelection(s.anchor+typedLen, 0, doc.SourceSilent)
}

// renderedRange locates the rendered candidate in the live document. The
// ghost marker moves with unrelated edits, so the range is re-derived
// rather than trusted from the anchor recorded at show time.
func (e *Engine) renderedRange() (start, length int) {
	s := e.session
	typedLen := len([]rune(s.typed))
	if ghostStart, ghostLen, ok := e.docu.AttributeRange(AttrGhost, true); ok {
		return ghostStart - typedLen, typedLen + ghostLen
	}
	return s.anchor, s.renderedLen
}

// removeRendered deletes the rendered candidate, sized to exactly what was
// rendered, and re-anchors the session at its start.
func (e *Engine) removeRendered() {
	start, length := e.renderedRange()
	if err := e.docu.Delete(start, length, doc.SourceSilent); err != nil {
		logger.Error("removing rendered candidate: %v", err)
		return
	}
	e.session.anchor = start
	e.docu.SetSelection(start, 0, doc.SourceSilent)
}

// cycleCandidate advances or retreats through the candidate list with
// wraparound, resetting the typed prefix.
func (e *Engine) cycleCandidate(dir int) {
	s := e.session
	e.removeRendered()
	n := len(s.candidates)
	s.idx = (s.idx + dir + n) % n
	s.typed = ""
	e.renderCandidate()
}

// commitCandidate commits the current candidate: the ghost rendering is
// replaced by the same text in normal style, with the caret at its end.
// Committed text is a user-visible edit, so it propagates over the sync
// channel like typed input.
func (e *Engine) commitCandidate() {
	s := e.session
	cand := s.candidate()
	e.removeRendered()
	start := s.anchor

	if err := e.docu.InsertText(start, cand, nil, doc.SourceUser); err != nil {
		logger.Error("committing candidate: %v", err)
	}
	e.docu.SetSelection(start+len([]rune(cand)), 0, doc.SourceSilent)

	if e.metrics != nil {
		e.metrics.SuggestionAccepted(s.metricsID, e.clock.Now().Sub(s.shownAt))
	}
	e.session = nil
	e.state = stateIdle
}

// cancelSession tears the session down without inserting anything further:
// the ghost suffix is removed while any typed prefix, being real user
// input, stays in place.
func (e *Engine) cancelSession() {
	if e.session == nil {
		return
	}
	s := e.session
	start, length := e.renderedRange()
	typedLen := len([]rune(s.typed))
	if err := e.docu.Delete(start+typedLen, length-typedLen, doc.SourceSilent); err != nil {
		logger.Error("removing ghost rendering: %v", err)
	}
	e.docu.SetSelection(start+typedLen, 0, doc.SourceSilent)

	if e.metrics != nil {
		e.metrics.SuggestionDisposed(s.metricsID, e.clock.Now().Sub(s.shownAt))
	}
	e.session = nil
	e.state = stateIdle
}

// typeIntoSession handles a printable character or Backspace while
// showing: the typed prefix is updated and matched against the current
// candidate; a match re-renders typed-vs-suffix, a mismatch abandons the
// suggestion while keeping the typed text.
func (e *Engine) typeIntoSession(k Key) {
	s := e.session

	typed := s.typed
	if k.Kind == KeyBackspace {
		if runes := []rune(typed); len(runes) > 0 {
			typed = string(runes[:len(runes)-1])
		}
	} else {
		typed += string(k.Rune)
	}

	cand := s.candidate()
	if !matchesSuggestion(typed, cand) {
		// Mismatch: the suggestion is abandoned but the keystrokes still
		// take effect as ordinary typed input.
		e.removeRendered()
		start := s.anchor
		if err := e.docu.InsertText(start, typed, nil, doc.SourceUser); err != nil {
			logger.Error("inserting typed text: %v", err)
		}
		e.docu.SetSelection(start+len([]rune(typed)), 0, doc.SourceSilent)

		if e.metrics != nil {
			e.metrics.SuggestionDisposed(s.metricsID, e.clock.Now().Sub(s.shownAt))
		}
		e.session = nil
		e.state = stateIdle
		return
	}

	// Removal must be sized to the previous rendering, so it happens
	// before the typed prefix is updated.
	e.removeRendered()
	s.typed = typed

	if len([]rune(typed)) >= len([]rune(cand)) {
		// The user typed the whole candidate through.
		start := s.anchor
		if err := e.docu.InsertText(start, cand, nil, doc.SourceUser); err != nil {
			logger.Error("inserting fully-typed candidate: %v", err)
		}
		e.docu.SetSelection(start+len([]rune(cand)), 0, doc.SourceSilent)

		if e.metrics != nil {
			e.metrics.SuggestionAccepted(s.metricsID, e.clock.Now().Sub(s.shownAt))
		}
		e.session = nil
		e.state = stateIdle
		return
	}

	e.renderCandidate()
}
