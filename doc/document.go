package doc

import (
	"fmt"
	"strings"
)

// Source tags who caused a mutation. Only user-sourced changes feed the
// suggestion request pipeline; api/silent mutations are programmatic.
type Source string

const (
	SourceUser   Source = "user"
	SourceAPI    Source = "api"
	SourceSilent Source = "silent"
)

// EmbedPlaceholder is the canonical-text stand-in for one embedded object.
const EmbedPlaceholder = '￼'

// Embed is a single non-text object occupying one character of position.
type Embed struct {
	Kind  string         `json:"kind"`
	Value map[string]any `json:"value,omitempty"`
}

// Run is a contiguous styled text span or a single embed.
type Run struct {
	Text  string
	Embed *Embed
	Attrs Attributes
}

func (r Run) length() int {
	if r.Embed != nil {
		return 1
	}
	return len([]rune(r.Text))
}

// Selection is a cursor index plus length into the canonical text.
// Length 0 denotes a caret.
type Selection struct {
	Index  int `json:"index"`
	Length int `json:"length"`
}

// RangeError reports an out-of-bounds position-addressed operation.
type RangeError struct {
	Index  int
	Length int
	DocLen int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range [%d, %d) exceeds document length %d", e.Index, e.Index+e.Length, e.DocLen)
}

// Change describes one applied mutation, delivered to the change callback.
type Change struct {
	Delta  Delta
	Source Source
	Doc    *Document
}

// ChangeFunc observes document mutations. Every mutation fires exactly one
// callback, regardless of source.
type ChangeFunc func(Change)

// Document is an ordered sequence of runs with position addressing over the
// canonical text: the concatenation of all text spans plus one placeholder
// character per embed, left to right.
type Document struct {
	runs      []Run
	selection *Selection
	onChange  ChangeFunc
}

func NewDocument() *Document {
	return &Document{}
}

// OnChange registers the single change callback.
func (d *Document) OnChange(fn ChangeFunc) {
	d.onChange = fn
}

// Len returns the canonical text length in characters.
func (d *Document) Len() int {
	n := 0
	for _, r := range d.runs {
		n += r.length()
	}
	return n
}

// Text returns the full canonical text.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, r := range d.runs {
		if r.Embed != nil {
			sb.WriteRune(EmbedPlaceholder)
		} else {
			sb.WriteString(r.Text)
		}
	}
	return sb.String()
}

// GetText returns length characters of canonical text starting at start.
func (d *Document) GetText(start, length int) (string, error) {
	if start < 0 || length < 0 || start+length > d.Len() {
		return "", &RangeError{Index: start, Length: length, DocLen: d.Len()}
	}
	runes := []rune(d.Text())
	return string(runes[start : start+length]), nil
}

// Runs returns a copy of the run sequence.
func (d *Document) Runs() []Run {
	out := make([]Run, len(d.runs))
	copy(out, d.runs)
	return out
}

// Contents returns the document as an insert-only delta.
func (d *Document) Contents() Delta {
	var out Delta
	for _, r := range d.runs {
		if r.Embed != nil {
			out = out.Push(Op{Embed: r.Embed, Attrs: r.Attrs})
		} else {
			out = out.Push(Op{Insert: r.Text, Attrs: r.Attrs})
		}
	}
	return out
}

// InsertText inserts styled text at index.
func (d *Document) InsertText(index int, text string, attrs Attributes, source Source) error {
	if text == "" {
		return nil
	}
	return d.Apply(Delta{}.Push(Op{Retain: index}).Push(Op{Insert: text, Attrs: attrs}), source)
}

// InsertEmbed inserts a one-character embedded object at index.
func (d *Document) InsertEmbed(index int, embed *Embed, attrs Attributes, source Source) error {
	return d.Apply(Delta{}.Push(Op{Retain: index}).Push(Op{Embed: embed, Attrs: attrs}), source)
}

// Delete removes length characters starting at index.
func (d *Document) Delete(index, length int, source Source) error {
	if length == 0 {
		return nil
	}
	return d.Apply(Delta{}.Push(Op{Retain: index}).Push(Op{Delete: length}), source)
}

// Format reformats length characters starting at index. Nil values in attrs
// remove the named attribute.
func (d *Document) Format(index, length int, attrs Attributes, source Source) error {
	if length == 0 {
		return nil
	}
	return d.Apply(Delta{}.Push(Op{Retain: index}).Push(Op{Retain: length, Attrs: attrs}), source)
}

// Apply applies a change delta to the document and fires the change
// callback. The delta must not address past the end of the document.
func (d *Document) Apply(delta Delta, source Source) error {
	span := 0
	for _, op := range delta {
		if op.Retain > 0 || op.Delete > 0 {
			span += op.Len()
		}
	}
	if span > d.Len() {
		return &RangeError{Index: 0, Length: span, DocLen: d.Len()}
	}

	d.runs = applyToRuns(d.runs, delta)
	if d.selection != nil {
		start := TransformIndex(delta, d.selection.Index)
		end := TransformIndex(delta, d.selection.Index+d.selection.Length)
		d.selection = &Selection{Index: start, Length: max(0, end-start)}
	}
	if d.onChange != nil {
		d.onChange(Change{Delta: delta, Source: source, Doc: d})
	}
	return nil
}

// applyToRuns rebuilds the run sequence under a change delta.
func applyToRuns(runs []Run, delta Delta) []Run {
	var out []Run
	rest := runs

	appendRun := func(r Run) {
		if r.length() == 0 {
			return
		}
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Embed == nil && r.Embed == nil && attrsEqual(last.Attrs, r.Attrs) {
				last.Text += r.Text
				return
			}
		}
		out = append(out, r)
	}

	for _, op := range delta {
		switch {
		case op.Embed != nil:
			appendRun(Run{Embed: op.Embed, Attrs: op.Attrs})
		case op.Insert != "":
			appendRun(Run{Text: op.Insert, Attrs: op.Attrs})
		case op.Retain > 0:
			taken, remaining := splitRuns(rest, op.Retain)
			rest = remaining
			for _, r := range taken {
				if op.Attrs != nil {
					r.Attrs = composeAttrs(r.Attrs, op.Attrs, false)
				}
				appendRun(r)
			}
		case op.Delete > 0:
			_, rest = splitRuns(rest, op.Delete)
		}
	}
	for _, r := range rest {
		appendRun(r)
	}
	return out
}

// splitRuns splits off the first n characters of a run sequence.
func splitRuns(runs []Run, n int) (taken, rest []Run) {
	for i, r := range runs {
		if n == 0 {
			return taken, runs[i:]
		}
		rl := r.length()
		if rl <= n {
			taken = append(taken, r)
			n -= rl
			continue
		}
		// Split a text run mid-way. Embeds are length 1 and never split.
		runes := []rune(r.Text)
		taken = append(taken, Run{Text: string(runes[:n]), Attrs: r.Attrs})
		rest = append(rest, Run{Text: string(runes[n:]), Attrs: r.Attrs})
		rest = append(rest, runs[i+1:]...)
		return taken, rest
	}
	return taken, nil
}

// GetSelection returns the current selection, or nil when none is set.
func (d *Document) GetSelection() *Selection {
	if d.selection == nil {
		return nil
	}
	sel := *d.selection
	return &sel
}

// SetSelection moves the selection, clamped to the document bounds. The
// source tag records who moved it; selection moves do not fire the change
// callback.
func (d *Document) SetSelection(index, length int, source Source) {
	docLen := d.Len()
	if index < 0 {
		index = 0
	}
	if index > docLen {
		index = docLen
	}
	if length < 0 {
		length = 0
	}
	if index+length > docLen {
		length = docLen - index
	}
	d.selection = &Selection{Index: index, Length: length}
}

// ClearSelection drops the selection.
func (d *Document) ClearSelection() {
	d.selection = nil
}

// FindAttribute returns the canonical index of the first run carrying the
// given attribute value.
func (d *Document) FindAttribute(key string, value any) (int, bool) {
	offset := 0
	for _, r := range d.runs {
		if v, ok := r.Attrs[key]; ok && v == value {
			return offset, true
		}
		offset += r.length()
	}
	return 0, false
}

// AttributeRange returns the canonical index and total length of the
// contiguous region whose runs carry the given attribute value.
func (d *Document) AttributeRange(key string, value any) (index, length int, ok bool) {
	offset := 0
	for _, r := range d.runs {
		rl := r.length()
		if v, found := r.Attrs[key]; found && v == value {
			if !ok {
				index = offset
				ok = true
			}
			length += rl
		} else if ok {
			break
		}
		offset += rl
	}
	return index, length, ok
}
