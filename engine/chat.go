package engine

import (
	"strings"

	"draftpad/doc"
	"draftpad/logger"
	"draftpad/types"
)

// SendChat appends a user message to the chat log and sends it to the AI
// backend. Empty and whitespace-only messages are dropped.
func (e *Engine) SendChat(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.chatLog = append(e.chatLog, types.ChatMessage{
		Text:   text,
		Sender: types.ChatSenderUser,
	})
	e.emit(types.EventClientChat, &types.ChatPayload{Text: text})
}

// ChatLog returns a copy of the chat transcript, oldest first.
func (e *Engine) ChatLog() []types.ChatMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.ChatMessage, len(e.chatLog))
	copy(out, e.chatLog)
	return out
}

// handleChatAnswer appends the AI response to the chat log and anchors any
// edit proposals it carries. Caller holds the mutex.
func (e *Engine) handleChatAnswer(p *types.ChatAnswerPayload) {
	e.chatLog = append(e.chatLog, types.ChatMessage{
		Text:   p.Response,
		Sender: types.ChatSenderServer,
	})
	if len(p.SuggestedEdits) > 0 {
		e.anchorProposals(p.SuggestedEdits)
	}
}

// handleDocumentContent replaces local state with a server snapshot. Any
// in-flight completion session and pending regions are discarded first so
// their markers never leak into the diff; the snapshot itself is applied
// as a minimal diff so an unchanged document produces no change event.
// Caller holds the mutex.
func (e *Engine) handleDocumentContent(p *types.DocumentContentPayload) {
	if p.DocumentID != "" && p.DocumentID != e.docID {
		logger.Debug("ignoring snapshot for foreign document %s", p.DocumentID)
		return
	}

	e.cancelSession()
	e.discardRegions()
	e.stopDebounceTimer()
	e.pending = nil

	delta := doc.DiffDelta(e.docu.Text(), p.Content)
	if len(delta) > 0 {
		if err := e.docu.Apply(delta, doc.SourceAPI); err != nil {
			logger.Error("applying document snapshot: %v", err)
			return
		}
	}
	if p.Title != "" {
		e.front.SetTitle(p.Title)
	}
	logger.Info("loaded document %s (%d chars)", e.docID, e.docu.Len())
}

// OpenDocument requests the document's content from the backend.
func (e *Engine) OpenDocument() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emit(types.EventClientGetDocument, &types.GetDocumentPayload{
		DocumentID: e.docID,
	})
}

// RenameDocument pushes a local title change to the backend and reflects
// it in the UI.
func (e *Engine) RenameDocument(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.front.SetTitle(title)
	e.emit(types.EventClientTitleChange, &types.TitleChangePayload{
		Title:      title,
		DocumentID: e.docID,
	})
}
