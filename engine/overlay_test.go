package engine

import (
	"encoding/json"
	"testing"

	"draftpad/doc"
	"draftpad/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatAnswer(t *testing.T, eng *Engine, edits ...types.SuggestedEdit) {
	t.Helper()
	eng.handleEvent(Event{Type: EventChatAnswer, Data: &types.ChatAnswerPayload{
		Response:       "here are my suggestions",
		SuggestedEdits: edits,
	}})
}

func replaceEdit(start, end int, text string) types.SuggestedEdit {
	args, _ := json.Marshal(types.ReplaceArgs{Start: start, End: end, Text: text})
	return types.SuggestedEdit{Name: types.EditReplaceText, Arguments: args}
}

func insertEdit(position int, text string) types.SuggestedEdit {
	args, _ := json.Marshal(types.InsertArgs{Position: position, Text: text})
	return types.SuggestedEdit{Name: types.EditInsertText, Arguments: args}
}

func deleteEdit(start, end int) types.SuggestedEdit {
	args, _ := json.Marshal(types.DeleteArgs{Start: start, End: end})
	return types.SuggestedEdit{Name: types.EditDeleteText, Arguments: args}
}

func soleRegion(t *testing.T, eng *Engine) string {
	t.Helper()
	ids := eng.Regions()
	require.Len(t, ids, 1)
	return ids[0]
}

func TestReplaceProposalAcceptFlow(t *testing.T) {
	eng, emitter, front, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, replaceEdit(4, 7, "dog"))

	id := soleRegion(t, eng)
	assert.Equal(t, "The * sat", eng.docu.Text())
	anchor, ok := eng.RegionAnchor(id)
	require.True(t, ok)
	assert.Equal(t, 4, anchor)
	assert.Equal(t, "proposed", eng.regions[id].State())

	eng.ClickRegion(id)
	assert.Equal(t, "decision-visible", eng.regions[id].State())
	assert.True(t, front.controlsVisible(id))

	eng.AcceptRegion(id)
	assert.Equal(t, "The dog sat", eng.docu.Text())
	assert.Empty(t, eng.Regions())
	assert.False(t, front.controlsVisible(id))

	applied := emitter.byName(types.EventClientApplyEdit)
	require.Len(t, applied, 1)
	p := applied[0].payload.(*types.ApplyEditPayload)
	assert.Equal(t, id, p.EditID)
	assert.True(t, p.Accepted)
	assert.Equal(t, "doc-1", p.DocumentID)
}

func TestReplaceProposalRejectRestoresOriginal(t *testing.T) {
	eng, emitter, _, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, replaceEdit(4, 7, "dog"))
	id := soleRegion(t, eng)
	require.Equal(t, "The * sat", eng.docu.Text())

	eng.ClickRegion(id)
	eng.RejectRegion(id)

	assert.Equal(t, "The cat sat", eng.docu.Text())
	assert.Empty(t, eng.Regions())

	applied := emitter.byName(types.EventClientApplyEdit)
	require.Len(t, applied, 1)
	assert.False(t, applied[0].payload.(*types.ApplyEditPayload).Accepted)
}

func TestInsertProposal(t *testing.T) {
	eng, _, _, _, _ := createTestEngine(t)
	seedText(t, eng, "Hello world")

	chatAnswer(t, eng, insertEdit(5, " there"))
	id := soleRegion(t, eng)
	assert.Equal(t, "Hello* world", eng.docu.Text())

	eng.ClickRegion(id)
	eng.AcceptRegion(id)
	assert.Equal(t, "Hello there world", eng.docu.Text())
}

func TestDeleteProposal(t *testing.T) {
	eng, _, _, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, deleteEdit(3, 7))
	id := soleRegion(t, eng)
	assert.Equal(t, "The* sat", eng.docu.Text())

	eng.ClickRegion(id)
	eng.AcceptRegion(id)
	// The range was already removed at anchor time; accept only drops the
	// placeholder.
	assert.Equal(t, "The sat", eng.docu.Text())
}

func TestDeleteProposalRejectRestores(t *testing.T) {
	eng, _, _, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, deleteEdit(3, 7))
	id := soleRegion(t, eng)

	eng.ClickRegion(id)
	eng.RejectRegion(id)
	assert.Equal(t, "The cat sat", eng.docu.Text())
}

func TestBatchUsesPreBatchCoordinates(t *testing.T) {
	eng, _, _, _, _ := createTestEngine(t)
	seedText(t, eng, "one two three")

	// Both offsets address the original 13-character document; the second
	// anchor lands after the first shrank the text.
	chatAnswer(t, eng,
		replaceEdit(4, 7, "TWO"),
		insertEdit(13, "!"),
	)

	require.Len(t, eng.Regions(), 2)
	assert.Equal(t, "one * three*", eng.docu.Text())
}

func TestProposalOffsetsClamped(t *testing.T) {
	eng, _, _, _, _ := createTestEngine(t)
	seedText(t, eng, "short")

	chatAnswer(t, eng, insertEdit(999, " tail"), replaceEdit(3, 999, "t stuff"))

	require.Len(t, eng.Regions(), 2)
	// First anchors at the clamped end, second replaces [3, 5).
	assert.Equal(t, "sho**", eng.docu.Text())
}

func TestMalformedProposalsSkipped(t *testing.T) {
	eng, _, _, _, _ := createTestEngine(t)
	seedText(t, eng, "text")

	chatAnswer(t, eng,
		types.SuggestedEdit{Name: "unknown_kind", Arguments: json.RawMessage(`{}`)},
		types.SuggestedEdit{Name: types.EditInsertText, Arguments: json.RawMessage(`not json`)},
	)

	assert.Empty(t, eng.Regions())
	assert.Equal(t, "text", eng.docu.Text())
}

func TestTooltipLifecycle(t *testing.T) {
	eng, _, front, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, replaceEdit(4, 7, "dog"))
	id := soleRegion(t, eng)

	eng.PointerEnter(id)
	text, ok := front.tooltipFor(id)
	require.True(t, ok)
	assert.Equal(t, `Replace "cat" with "dog"`, text)
	assert.Equal(t, "hovered", eng.regions[id].State())

	eng.PointerLeave(id)
	_, ok = front.tooltipFor(id)
	assert.False(t, ok)
	assert.Equal(t, "proposed", eng.regions[id].State())
}

func TestClickTogglesDecisionControls(t *testing.T) {
	eng, _, front, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, replaceEdit(4, 7, "dog"))
	id := soleRegion(t, eng)

	eng.ClickRegion(id)
	assert.True(t, front.controlsVisible(id))

	eng.ClickRegion(id)
	assert.False(t, front.controlsVisible(id))
	assert.Equal(t, "proposed", eng.regions[id].State())
}

func TestClickOutsideCollapsesControls(t *testing.T) {
	eng, _, front, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, replaceEdit(4, 7, "dog"))
	id := soleRegion(t, eng)

	eng.ClickRegion(id)
	require.True(t, front.controlsVisible(id))

	eng.ClickOutside()
	assert.False(t, front.controlsVisible(id))
	assert.Equal(t, "proposed", eng.regions[id].State())
}

func TestAcceptRequiresVisibleControls(t *testing.T) {
	eng, emitter, _, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, replaceEdit(4, 7, "dog"))
	id := soleRegion(t, eng)

	// Accept without clicking the anchor first is a no-op.
	eng.AcceptRegion(id)
	assert.Equal(t, "The * sat", eng.docu.Text())
	assert.Len(t, eng.Regions(), 1)
	assert.Empty(t, emitter.byName(types.EventClientApplyEdit))
}

func TestResolutionTracksDriftedPlaceholder(t *testing.T) {
	eng, _, front, _, _ := createTestEngine(t)
	seedText(t, eng, "The cat sat")

	chatAnswer(t, eng, replaceEdit(4, 7, "dog"))
	id := soleRegion(t, eng)

	// Unrelated edit before the placeholder moves it right.
	require.NoError(t, eng.docu.InsertText(0, ">> ", nil, doc.SourceSilent))
	anchor, ok := eng.RegionAnchor(id)
	require.True(t, ok)
	assert.Equal(t, 7, anchor)

	eng.ClickRegion(id)
	assert.Equal(t, 7, front.decisionControls[id])

	eng.AcceptRegion(id)
	assert.Equal(t, ">> The dog sat", eng.docu.Text())
}

func TestDescribePerKind(t *testing.T) {
	insert := &Region{kind: proposalInsert, text: "hi"}
	assert.Equal(t, `Insert "hi"`, insert.Describe())

	del := &Region{kind: proposalDelete, captured: "old"}
	assert.Equal(t, `Delete "old"`, del.Describe())

	repl := &Region{kind: proposalReplace, captured: "old", text: "new"}
	assert.Equal(t, `Replace "old" with "new"`, repl.Describe())
}
