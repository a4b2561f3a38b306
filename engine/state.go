package engine

import (
	"draftpad/logger"
	"draftpad/types"
)

type state int

const (
	stateIdle state = iota
	stateShowing
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateShowing:
		return "Showing"
	default:
		return "Unknown"
	}
}

// Transition is one valid (state, event) pair in the engine's state machine.
type Transition struct {
	From   state
	Event  EventType
	Action func(*Engine, Event)
}

// transitions defines the autocompletion state machine.
//
//	stateIdle
//	├─[TextChanged]──────► debouncer armed, stays idle
//	├─[DebounceTimeout]──► client_request_suggestions emitted, stays idle
//	└─[SuggestionsReady + fresh requestId + non-empty]──► stateShowing
//
//	stateShowing
//	├─[SuggestionsReady + fresh]──► stateShowing (session replaced wholesale)
//	├─[TextChanged]──────► debouncer armed, stays showing
//	├─[DebounceTimeout]──► next request emitted, stays showing
//	└─key handling (Enter/Tab commit, Escape cancel, prefix mismatch)
//	    happens synchronously in HandleKey, all → stateIdle
//
// Stale or empty suggestion responses are dropped without a state change.
var transitions = []Transition{
	{stateIdle, EventTextChanged, (*Engine).doScheduleRequest},
	{stateIdle, EventDebounceTimeout, (*Engine).doIssueRequest},
	{stateIdle, EventSuggestionsReady, (*Engine).doShowSuggestions},

	{stateShowing, EventTextChanged, (*Engine).doScheduleRequest},
	{stateShowing, EventDebounceTimeout, (*Engine).doIssueRequest},
	{stateShowing, EventSuggestionsReady, (*Engine).doShowSuggestions},
}

// transitionMap provides O(1) lookup for transitions by (state, event) pair
var transitionMap map[transitionKey]*Transition

type transitionKey struct {
	from  state
	event EventType
}

func init() {
	transitionMap = make(map[transitionKey]*Transition)
	for i := range transitions {
		t := &transitions[i]
		transitionMap[transitionKey{from: t.From, event: t.Event}] = t
	}
}

func findTransition(from state, event EventType) *Transition {
	return transitionMap[transitionKey{from: from, event: event}]
}

// dispatch finds and executes the transition for an event. Caller holds
// the engine mutex.
func (e *Engine) dispatch(event Event) bool {
	t := findTransition(e.state, event.Type)
	if t == nil {
		logger.Debug("no handler: state=%s event=%s", e.state, event.Type)
		return false
	}
	if t.Action != nil {
		t.Action(e, event)
	}
	return true
}

// Action functions for state transitions.

func (e *Engine) doScheduleRequest(event Event) {
	e.scheduleSuggestionRequest()
}

func (e *Engine) doIssueRequest(event Event) {
	e.issueSuggestionRequest()
}

func (e *Engine) doShowSuggestions(event Event) {
	e.showSuggestions(event.Data.(*types.SuggestionsPayload))
}
