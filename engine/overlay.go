package engine

import (
	"encoding/json"
	"fmt"

	"draftpad/doc"
	"draftpad/logger"
	"draftpad/types"

	"github.com/google/uuid"
)

// AttrRegion marks the one-character placeholder run of a pending
// suggestion region; its value is the region's unique id.
const AttrRegion = "suggestion"

// Placeholder is the canonical-text stand-in for a pending region.
const Placeholder = "*"

type regionState int

const (
	regionProposed regionState = iota
	regionHovered
	regionDecisionVisible
	regionResolved
)

func (s regionState) String() string {
	switch s {
	case regionProposed:
		return "proposed"
	case regionHovered:
		return "hovered"
	case regionDecisionVisible:
		return "decision-visible"
	case regionResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

type proposalKind int

const (
	proposalInsert proposalKind = iota
	proposalDelete
	proposalReplace
)

// Region is one pending AI-proposed edit anchored into the document as a
// single placeholder character. The tagged union over kind replaces the
// original's runtime field stashing.
type Region struct {
	id   string // unique per region, echoed as edit_id on resolution
	kind proposalKind
	text string // proposed text for insert/replace
	// captured is the original text removed at anchor time for
	// delete/replace, restored verbatim on reject.
	captured string
	state    regionState
}

// ID returns the region's unique id.
func (r *Region) ID() string { return r.id }

// State returns the region's lifecycle state name.
func (r *Region) State() string { return r.state.String() }

// Describe renders the tooltip text for a region.
func (r *Region) Describe() string {
	switch r.kind {
	case proposalInsert:
		return fmt.Sprintf("Insert %q", r.text)
	case proposalDelete:
		return fmt.Sprintf("Delete %q", r.captured)
	case proposalReplace:
		return fmt.Sprintf("Replace %q with %q", r.captured, r.text)
	default:
		return "Unknown edit"
	}
}

// Regions returns the ids of all pending regions.
func (e *Engine) Regions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.regions))
	for id := range e.regions {
		ids = append(ids, id)
	}
	return ids
}

// RegionAnchor returns the live canonical index of a region's placeholder.
func (e *Engine) RegionAnchor(id string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docu.FindAttribute(AttrRegion, id)
}

// anchorProposals anchors a batch of edit proposals from one chat answer.
// Proposal offsets are interpreted against the pre-batch document and
// clamped to its length; anchors laid down earlier in the batch shift the
// effective positions of later ones. Caller holds the mutex.
func (e *Engine) anchorProposals(edits []types.SuggestedEdit) {
	baseLen := e.docu.Len()

	// (position, net length change) of anchors already applied this batch.
	type batchShift struct {
		pos   int
		delta int
	}
	var shifts []batchShift

	adjust := func(pos int) int {
		for _, s := range shifts {
			if s.pos <= pos {
				pos += s.delta
			}
		}
		return pos
	}

	for _, edit := range edits {
		region, pos, removed, err := e.parseProposal(edit, baseLen)
		if err != nil {
			logger.Warn("skipping malformed edit proposal %q: %v", edit.Name, err)
			continue
		}

		livePos := adjust(pos)
		if removed > 0 {
			captured, err := e.docu.GetText(livePos, removed)
			if err != nil {
				logger.Warn("skipping proposal %q: capture: %v", edit.Name, err)
				continue
			}
			region.captured = captured
			if err := e.docu.Delete(livePos, removed, doc.SourceAPI); err != nil {
				logger.Error("anchoring proposal: %v", err)
				continue
			}
		}
		attrs := doc.Attributes{AttrRegion: region.id}
		if err := e.docu.InsertText(livePos, Placeholder, attrs, doc.SourceAPI); err != nil {
			logger.Error("anchoring proposal: %v", err)
			continue
		}

		shifts = append(shifts, batchShift{pos: pos, delta: 1 - removed})
		e.regions[region.id] = region
		logger.Debug("anchored %s region %s at %d", region.State(), region.id, livePos)
	}
}

// parseProposal decodes one suggested edit into a region plus its
// pre-batch anchor position and the length of text it removes. Offsets
// are clamped to the pre-batch document length.
func (e *Engine) parseProposal(edit types.SuggestedEdit, baseLen int) (*Region, int, int, error) {
	region := &Region{
		id:    uuid.NewString(),
		state: regionProposed,
	}

	switch edit.Name {
	case types.EditInsertText:
		var args types.InsertArgs
		if err := json.Unmarshal(edit.Arguments, &args); err != nil {
			return nil, 0, 0, err
		}
		region.kind = proposalInsert
		region.text = args.Text
		return region, clamp(args.Position, 0, baseLen), 0, nil

	case types.EditDeleteText:
		var args types.DeleteArgs
		if err := json.Unmarshal(edit.Arguments, &args); err != nil {
			return nil, 0, 0, err
		}
		region.kind = proposalDelete
		start := clamp(args.Start, 0, baseLen)
		end := clamp(args.End, start, baseLen)
		return region, start, end - start, nil

	case types.EditReplaceText:
		var args types.ReplaceArgs
		if err := json.Unmarshal(edit.Arguments, &args); err != nil {
			return nil, 0, 0, err
		}
		region.kind = proposalReplace
		region.text = args.Text
		start := clamp(args.Start, 0, baseLen)
		end := clamp(args.End, start, baseLen)
		return region, start, end - start, nil

	default:
		return nil, 0, 0, fmt.Errorf("unknown edit kind %q", edit.Name)
	}
}

// PointerEnter shows the description tooltip for a proposed region.
func (e *Engine) PointerEnter(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.regions[id]
	if !ok || r.state != regionProposed {
		return
	}
	r.state = regionHovered
	e.front.ShowTooltip(id, r.Describe())
}

// PointerLeave hides the tooltip and returns the region to proposed.
func (e *Engine) PointerLeave(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.regions[id]
	if !ok || r.state != regionHovered {
		return
	}
	r.state = regionProposed
	e.front.HideTooltip(id)
}

// ClickRegion toggles the accept/reject controls for a region. A second
// click on the anchor collapses them again; decision-visible is a toggle,
// not a one-shot.
func (e *Engine) ClickRegion(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.regions[id]
	if !ok {
		return
	}
	switch r.state {
	case regionProposed, regionHovered:
		if r.state == regionHovered {
			e.front.HideTooltip(id)
		}
		r.state = regionDecisionVisible
		anchor, _ := e.docu.FindAttribute(AttrRegion, id)
		e.front.ShowDecisionControls(id, anchor)
	case regionDecisionVisible:
		r.state = regionProposed
		e.front.HideDecisionControls(id)
	}
}

// ClickOutside collapses any visible decision controls.
func (e *Engine) ClickOutside() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, r := range e.regions {
		if r.state == regionDecisionVisible {
			r.state = regionProposed
			e.front.HideDecisionControls(id)
		}
	}
}

// AcceptRegion applies a region's edit to the document and confirms it
// over the sync channel. Only legal while its controls are visible.
func (e *Engine) AcceptRegion(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolveRegion(id, true)
}

// RejectRegion removes a region without applying its edit, restoring the
// captured original text verbatim.
func (e *Engine) RejectRegion(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolveRegion(id, false)
}

// resolveRegion applies or discards a pending region. The placeholder's
// live position is re-derived from its marker attribute so intervening
// edits elsewhere in the document cannot corrupt the resolution. Caller
// holds the mutex.
func (e *Engine) resolveRegion(id string, accepted bool) {
	r, ok := e.regions[id]
	if !ok || r.state != regionDecisionVisible {
		return
	}

	pos, found := e.docu.FindAttribute(AttrRegion, id)
	if !found {
		// Placeholder vanished (snapshot resync); drop the region.
		logger.Warn("region %s placeholder missing, discarding", id)
		delete(e.regions, id)
		return
	}

	if err := e.docu.Delete(pos, 1, doc.SourceAPI); err != nil {
		logger.Error("resolving region %s: %v", id, err)
		return
	}

	var insert string
	if accepted {
		// insert and replace lay down the proposed text; delete's range
		// was already removed at anchor time.
		insert = r.text
	} else {
		insert = r.captured
	}
	if insert != "" {
		if err := e.docu.InsertText(pos, insert, nil, doc.SourceAPI); err != nil {
			logger.Error("resolving region %s: %v", id, err)
		}
		e.docu.SetSelection(pos+len([]rune(insert)), 0, doc.SourceAPI)
	}

	r.state = regionResolved
	delete(e.regions, id)
	e.front.HideDecisionControls(id)

	e.emit(types.EventClientApplyEdit, &types.ApplyEditPayload{
		DocumentID: e.docID,
		EditID:     r.id,
		Accepted:   accepted,
	})
}

// discardRegions silently removes all pending regions, restoring captured
// text, without emitting confirmations. Used before a snapshot resync.
// Caller holds the mutex.
func (e *Engine) discardRegions() {
	for id, r := range e.regions {
		if pos, found := e.docu.FindAttribute(AttrRegion, id); found {
			if err := e.docu.Delete(pos, 1, doc.SourceSilent); err == nil && r.captured != "" {
				e.docu.InsertText(pos, r.captured, nil, doc.SourceSilent)
			}
		}
		delete(e.regions, id)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
