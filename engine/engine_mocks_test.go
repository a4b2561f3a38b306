package engine

import (
	"sync"
	"time"

	"draftpad/doc"
)

// --- Mock implementations ---

type emittedEvent struct {
	name    string
	payload any
}

// mockEmitter records everything sent over the sync channel.
type mockEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
	err    error
}

func (m *mockEmitter) Emit(name string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, emittedEvent{name: name, payload: payload})
	return m.err
}

func (m *mockEmitter) byName(name string) []emittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []emittedEvent
	for _, e := range m.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

// mockFrontend records render-side effects.
type mockFrontend struct {
	mu sync.Mutex

	changes []doc.Change

	tooltips         map[string]string // region id -> text, present while shown
	decisionControls map[string]int    // region id -> anchor, present while shown

	title        string
	forcedLogout bool
}

func newMockFrontend() *mockFrontend {
	return &mockFrontend{
		tooltips:         make(map[string]string),
		decisionControls: make(map[string]int),
	}
}

func (m *mockFrontend) DocumentChanged(change doc.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
}

func (m *mockFrontend) ShowTooltip(regionID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tooltips[regionID] = text
}

func (m *mockFrontend) HideTooltip(regionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tooltips, regionID)
}

func (m *mockFrontend) ShowDecisionControls(regionID string, anchor int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisionControls[regionID] = anchor
}

func (m *mockFrontend) HideDecisionControls(regionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.decisionControls, regionID)
}

func (m *mockFrontend) SetTitle(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.title = title
}

func (m *mockFrontend) ForceLogout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedLogout = true
}

func (m *mockFrontend) tooltipFor(regionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.tooltips[regionID]
	return text, ok
}

func (m *mockFrontend) controlsVisible(regionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.decisionControls[regionID]
	return ok
}

// mockClock advances only when told to.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(1700000000, 0)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockMetrics counts lifecycle events.
type mockMetrics struct {
	mu       sync.Mutex
	shown    []string
	accepted []string
	disposed []string
}

func (m *mockMetrics) SuggestionShown(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, id)
}

func (m *mockMetrics) SuggestionAccepted(id string, lifespan time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted = append(m.accepted, id)
}

func (m *mockMetrics) SuggestionDisposed(id string, lifespan time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = append(m.disposed, id)
}

// createTestEngine wires an engine to mocks without starting the event
// loop; tests drive it synchronously through handleEvent and the public
// entry points.
func createTestEngine(t interface{ Helper() }) (*Engine, *mockEmitter, *mockFrontend, *mockClock, *mockMetrics) {
	t.Helper()
	emitter := &mockEmitter{}
	front := newMockFrontend()
	clock := newMockClock()
	metrics := &mockMetrics{}
	eng := New(emitter, front, Config{
		DocumentID:    "doc-1",
		DebounceDelay: 20 * time.Millisecond,
		Clock:         clock,
		Metrics:       metrics,
	})
	return eng, emitter, front, clock, metrics
}
