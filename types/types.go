package types

import (
	"encoding/json"

	"draftpad/doc"
)

// Event names carried over the sync channel. Client-prefixed events are
// outbound, server-prefixed events are inbound.
const (
	EventClientTextChange         = "client_text_change"
	EventClientRequestSuggestions = "client_request_suggestions"
	EventClientChat               = "client_chat"
	EventClientApplyEdit          = "client_apply_edit"
	EventClientGetDocument        = "client_get_document"
	EventClientTitleChange        = "client_title_change"

	EventServerDocumentContent         = "server_sent_document_content"
	EventServerAutocompleteSuggestions = "server_autocompletion_suggestions"
	EventServerChatAnswer              = "server_chat_answer"
	EventServerTitleGenerated          = "server_document_title_generated"
	EventServerAuthFailed              = "server_authentication_failed"
	EventServerEditApplied             = "server_edit_applied"
)

// TextChangePayload carries a local edit to the backend.
type TextChangePayload struct {
	Delta      doc.Delta `json:"delta"`
	DocumentID string    `json:"documentId"`
}

// SuggestionRequestPayload asks the backend for autocompletion candidates
// at the given cursor position. RequestID is monotonically increasing so
// stale responses can be discarded.
type SuggestionRequestPayload struct {
	DocumentID     string `json:"documentId"`
	CursorPosition int    `json:"cursorPosition"`
	RequestID      int64  `json:"requestId"`
}

// ChatPayload carries a user chat message to the AI backend.
type ChatPayload struct {
	Text string `json:"text"`
}

// ApplyEditPayload confirms the user's decision on a proposed edit.
type ApplyEditPayload struct {
	DocumentID string `json:"documentId"`
	EditID     string `json:"edit_id"`
	Accepted   bool   `json:"accepted"`
}

// GetDocumentPayload requests the content of a document.
type GetDocumentPayload struct {
	DocumentID string `json:"documentId"`
}

// TitleChangePayload carries a local title rename.
type TitleChangePayload struct {
	Title      string `json:"title"`
	DocumentID string `json:"documentId"`
}

// DocumentContentPayload delivers a document snapshot from the backend.
type DocumentContentPayload struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
	Title      string `json:"title"`
}

// SuggestionsPayload delivers ranked autocompletion candidates. The
// response is only honored while RequestID matches the last issued request
// and CursorPosition is defined.
type SuggestionsPayload struct {
	RequestID      int64    `json:"requestId"`
	CursorPosition *int     `json:"cursorPosition"`
	Suggestions    []string `json:"suggestions"`
}

// Names of edit proposals embedded in chat answers.
const (
	EditInsertText  = "insert_text"
	EditDeleteText  = "delete_text"
	EditReplaceText = "replace_text"
)

// SuggestedEdit is one AI-proposed edit attached to a chat answer.
// Arguments is kind-specific; see InsertArgs, DeleteArgs, ReplaceArgs.
type SuggestedEdit struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// InsertArgs inserts Text at Position.
type InsertArgs struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// DeleteArgs deletes [Start, End).
type DeleteArgs struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ReplaceArgs replaces [Start, End) with Text.
type ReplaceArgs struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// ChatAnswerPayload delivers the AI answer plus zero or more edit proposals.
type ChatAnswerPayload struct {
	Response       string          `json:"response"`
	SuggestedEdits []SuggestedEdit `json:"suggested_edits"`
}

// TitleGeneratedPayload delivers an AI-generated document title.
type TitleGeneratedPayload struct {
	Title string `json:"title"`
}

// EditAppliedPayload acknowledges a client_apply_edit.
type EditAppliedPayload struct {
	EditID string `json:"edit_id"`
	Status string `json:"status"`
}

// ChatSender identifies who authored a chat message.
type ChatSender string

const (
	ChatSenderUser   ChatSender = "user"
	ChatSenderServer ChatSender = "server"
)

// ChatMessage is one entry in the append-only chat log.
type ChatMessage struct {
	Text   string     `json:"text"`
	Sender ChatSender `json:"sender"`
}
