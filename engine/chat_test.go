package engine

import (
	"testing"

	"draftpad/doc"
	"draftpad/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendChatAppendsAndEmits(t *testing.T) {
	eng, emitter, _, _, _ := createTestEngine(t)

	eng.SendChat("summarize this")

	log := eng.ChatLog()
	require.Len(t, log, 1)
	assert.Equal(t, types.ChatSenderUser, log[0].Sender)
	assert.Equal(t, "summarize this", log[0].Text)

	sent := emitter.byName(types.EventClientChat)
	require.Len(t, sent, 1)
	assert.Equal(t, "summarize this", sent[0].payload.(*types.ChatPayload).Text)
}

func TestSendChatDropsBlankMessages(t *testing.T) {
	eng, emitter, _, _, _ := createTestEngine(t)

	eng.SendChat("")
	eng.SendChat("   \n\t")

	assert.Empty(t, eng.ChatLog())
	assert.Empty(t, emitter.byName(types.EventClientChat))
}

func TestChatAnswerAppendsServerMessage(t *testing.T) {
	eng, _, _, _, _ := createTestEngine(t)

	eng.SendChat("question")
	chatAnswer(t, eng)

	log := eng.ChatLog()
	require.Len(t, log, 2)
	assert.Equal(t, types.ChatSenderUser, log[0].Sender)
	assert.Equal(t, types.ChatSenderServer, log[1].Sender)
}

func TestDocumentContentReplacesState(t *testing.T) {
	eng, emitter, front, _, _ := createTestEngine(t)
	seedText(t, eng, "stale text")
	eng.docu.SetSelection(10, 0, doc.SourceUser)

	// Leave a ghost session and a pending region behind, both of which
	// must not survive the snapshot.
	driveSuggestions(t, eng, emitter, []string{" and more"}, 10)
	chatAnswer(t, eng, insertEdit(0, "x"))
	require.NotEmpty(t, eng.Regions())

	eng.handleEvent(Event{Type: EventDocumentContent, Data: &types.DocumentContentPayload{
		DocumentID: "doc-1",
		Content:    "fresh text from server",
		Title:      "My Draft",
	}})

	assert.Equal(t, "fresh text from server", eng.docu.Text())
	assert.Empty(t, eng.Regions())
	assert.Nil(t, eng.session)
	assert.Equal(t, stateIdle, eng.state)
	assert.Equal(t, "My Draft", front.title)
	assert.Nil(t, eng.pending)
}

func TestForeignDocumentSnapshotIgnored(t *testing.T) {
	eng, _, _, _, _ := createTestEngine(t)
	seedText(t, eng, "mine")

	eng.handleEvent(Event{Type: EventDocumentContent, Data: &types.DocumentContentPayload{
		DocumentID: "someone-elses",
		Content:    "other content",
	}})

	assert.Equal(t, "mine", eng.docu.Text())
}

func TestOpenDocumentRequestsContent(t *testing.T) {
	eng, emitter, _, _, _ := createTestEngine(t)

	eng.OpenDocument()

	reqs := emitter.byName(types.EventClientGetDocument)
	require.Len(t, reqs, 1)
	assert.Equal(t, "doc-1", reqs[0].payload.(*types.GetDocumentPayload).DocumentID)
}

func TestRenameDocument(t *testing.T) {
	eng, emitter, front, _, _ := createTestEngine(t)

	eng.RenameDocument("New Title")

	assert.Equal(t, "New Title", front.title)
	sent := emitter.byName(types.EventClientTitleChange)
	require.Len(t, sent, 1)
	p := sent[0].payload.(*types.TitleChangePayload)
	assert.Equal(t, "New Title", p.Title)
	assert.Equal(t, "doc-1", p.DocumentID)
}

func TestTitleGeneratedSetsTitle(t *testing.T) {
	eng, _, front, _, _ := createTestEngine(t)

	eng.handleEvent(Event{Type: EventTitleGenerated, Data: &types.TitleGeneratedPayload{
		Title: "Generated",
	}})

	assert.Equal(t, "Generated", front.title)
}
