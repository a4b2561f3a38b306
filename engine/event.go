package engine

// EventType identifies an event consumed by the engine's event loop.
type EventType string

const (
	EventTextChanged      EventType = "text_changed"
	EventDebounceTimeout  EventType = "request_suggestions"
	EventSuggestionsReady EventType = "suggestions_ready"
	EventChatAnswer       EventType = "chat_answer"
	EventDocumentContent  EventType = "document_content"
	EventTitleGenerated   EventType = "title_generated"
	EventEditApplied      EventType = "edit_applied"
	EventAuthFailed       EventType = "auth_failed"
)

// Event is one unit of work for the event loop.
type Event struct {
	Type EventType
	Data any
}

// KeyKind classifies keyboard input delivered to the engine.
type KeyKind int

const (
	KeyChar KeyKind = iota
	KeyEnter
	KeyTab
	KeyEscape
	KeyBackspace
	KeyArrowUp
	KeyArrowDown
	KeyShift
	KeyOther
)

// Key is one keystroke. Rune is set only for KeyChar.
type Key struct {
	Kind KeyKind
	Rune rune
}

var keyKindNames = map[string]KeyKind{
	"Enter":     KeyEnter,
	"Tab":       KeyTab,
	"Escape":    KeyEscape,
	"Backspace": KeyBackspace,
	"ArrowUp":   KeyArrowUp,
	"ArrowDown": KeyArrowDown,
	"Shift":     KeyShift,
}

// KeyFromName maps a DOM-style key name to a Key. Single printable
// characters become KeyChar; everything unrecognized becomes KeyOther.
func KeyFromName(name string) Key {
	if kind, ok := keyKindNames[name]; ok {
		return Key{Kind: kind}
	}
	if runes := []rune(name); len(runes) == 1 {
		return Key{Kind: KeyChar, Rune: runes[0]}
	}
	return Key{Kind: KeyOther}
}
