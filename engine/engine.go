package engine

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"draftpad/doc"
	"draftpad/logger"
	"draftpad/types"
)

// Emitter sends named events over the sync channel. Implementations must
// not block on delivery; a send failure is returned for logging only.
type Emitter interface {
	Emit(event string, payload any) error
}

// Frontend receives render-side effects from the engine. The daemon bridges
// it to whatever UI is attached; tests use a mock.
type Frontend interface {
	DocumentChanged(change doc.Change)
	ShowTooltip(regionID, text string)
	HideTooltip(regionID string)
	ShowDecisionControls(regionID string, anchor int)
	HideDecisionControls(regionID string)
	SetTitle(title string)
	ForceLogout()
}

// Clock supplies time; injectable so tests control request ids and timers.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// MetricsSink observes the ghost-suggestion lifecycle. All methods are
// fire-and-forget.
type MetricsSink interface {
	SuggestionShown(id string)
	SuggestionAccepted(id string, lifespan time.Duration)
	SuggestionDisposed(id string, lifespan time.Duration)
}

// Config carries engine construction options.
type Config struct {
	DocumentID    string
	DebounceDelay time.Duration // default 100ms
	Clock         Clock         // default system clock
	Metrics       MetricsSink   // optional
}

// Engine owns one document plus the suggestion machinery layered on it:
// the autocompletion state machine, the suggestion overlay regions, and
// the request debouncer. All entry points are serialized on one mutex;
// async results (network responses, timer fires) arrive through the event
// loop, which funnels into the same mutex.
type Engine struct {
	mu      sync.Mutex
	docID   string
	docu    *doc.Document
	emitter Emitter
	front   Frontend
	clock   Clock
	metrics MetricsSink
	config  Config

	state   state
	session *autocompleteSession
	regions map[string]*Region
	chatLog []types.ChatMessage

	// Debouncer state
	pending       *types.SuggestionRequestPayload
	debounceTimer *time.Timer
	lastStampedID int64
	lastIssuedID  int64

	eventChan chan Event

	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once
}

// New constructs an engine around a fresh document. The emitter and
// frontend are injected; the engine never reaches for global connections.
func New(emitter Emitter, front Frontend, config Config) *Engine {
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = 100 * time.Millisecond
	}
	if config.Clock == nil {
		config.Clock = systemClock{}
	}

	e := &Engine{
		docID:     config.DocumentID,
		docu:      doc.NewDocument(),
		emitter:   emitter,
		front:     front,
		clock:     config.Clock,
		metrics:   config.Metrics,
		config:    config,
		state:     stateIdle,
		regions:   make(map[string]*Region),
		eventChan: make(chan Event, 100),
	}
	e.docu.OnChange(e.onDocChange)
	return e
}

// Document exposes the engine's document model.
func (e *Engine) Document() *doc.Document {
	return e.docu
}

// DocumentID returns the id of the open document.
func (e *Engine) DocumentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docID
}

// Start launches the event loop.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.eventLoop(e.mainCtx)
	logger.Info("engine started for document %q", e.docID)
}

// Stop shuts the engine down and releases all timers.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		e.stopped = true
		if e.mainCancel != nil {
			e.mainCancel()
		}
		e.stopDebounceTimer()
		e.pending = nil
		e.session = nil
		e.regions = make(map[string]*Region)
		e.state = stateIdle
		close(e.eventChan)

		logger.Info("engine stopped")
	})
}

// Post delivers an event to the event loop. Used by the daemon to feed
// inbound sync-channel events.
func (e *Engine) Post(event Event) {
	e.mu.Lock()
	stopped := e.stopped
	ctx := e.mainCtx
	e.mu.Unlock()
	if stopped || ctx == nil {
		return
	}

	select {
	case e.eventChan <- event:
	case <-ctx.Done():
	}
}

const maxEventLoopRestarts = 3

func (e *Engine) eventLoop(ctx context.Context) {
	restarts := 0
	defer func() {
		if r := recover(); r != nil {
			restarts++
			logger.Error("event loop panic [%d/%d]: %v\n%s", restarts, maxEventLoopRestarts, r, debug.Stack())
			if restarts < maxEventLoopRestarts {
				e.eventLoop(ctx)
			} else {
				logger.Error("max event loop restarts reached, stopping engine")
				go e.Stop()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-e.eventChan:
			if !ok {
				return
			}

			e.mu.Lock()
			stopped := e.stopped
			e.mu.Unlock()
			if stopped {
				return
			}

			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	logger.Debug("handle event: %v (state=%s)", event.Type, e.state)

	// Layer 1: state-independent server pushes
	if e.handleBackgroundEvent(event) {
		return
	}

	// Layer 2: dispatch table for state-dependent events
	e.dispatch(event)
}

// handleBackgroundEvent handles inbound server events that apply in any
// engine state.
func (e *Engine) handleBackgroundEvent(event Event) bool {
	switch event.Type {
	case EventChatAnswer:
		e.handleChatAnswer(event.Data.(*types.ChatAnswerPayload))
		return true
	case EventDocumentContent:
		e.handleDocumentContent(event.Data.(*types.DocumentContentPayload))
		return true
	case EventTitleGenerated:
		p := event.Data.(*types.TitleGeneratedPayload)
		e.front.SetTitle(p.Title)
		return true
	case EventEditApplied:
		p := event.Data.(*types.EditAppliedPayload)
		logger.Debug("server acknowledged edit %s: %s", p.EditID, p.Status)
		return true
	case EventAuthFailed:
		logger.Warn("authentication rejected by server, forcing logout")
		e.cancelSession()
		e.front.ForceLogout()
		return true
	}
	return false
}

// onDocChange is the single change callback; it runs while the engine
// mutex is already held by whichever entry point mutated the document.
func (e *Engine) onDocChange(change doc.Change) {
	e.front.DocumentChanged(change)

	if change.Source != doc.SourceUser {
		return
	}

	// User edits flow out immediately and (re)arm the debouncer. The
	// mutex is already held here, so dispatch directly instead of going
	// through the event channel.
	e.emit(types.EventClientTextChange, &types.TextChangePayload{
		Delta:      change.Delta,
		DocumentID: e.docID,
	})
	e.dispatch(Event{Type: EventTextChanged})
}

// emit logs and swallows send failures; a disconnected channel degrades to
// "no suggestion shown", never to a crash.
func (e *Engine) emit(event string, payload any) {
	if err := e.emitter.Emit(event, payload); err != nil {
		logger.Error("emit %s: %v", event, err)
	}
}

// caretIndex returns the current caret position, defaulting to the end of
// the document when no selection is set.
func (e *Engine) caretIndex() int {
	if sel := e.docu.GetSelection(); sel != nil {
		return sel.Index
	}
	return e.docu.Len()
}
