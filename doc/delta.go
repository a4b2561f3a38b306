package doc

import "fmt"

// Attributes holds per-run formatting (bold, ghost styling, region markers).
// A nil map means "no formatting".
type Attributes map[string]any

// Op is a single structural edit operation. Exactly one of the following
// shapes is valid:
//   - insert text:  Insert != "" (Attrs optional)
//   - insert embed: Embed != nil (Attrs optional)
//   - retain:       Retain > 0 (Attrs optional, reformat retained span)
//   - delete:       Delete > 0
type Op struct {
	Insert string     `json:"insert,omitempty"`
	Embed  *Embed     `json:"embed,omitempty"`
	Retain int        `json:"retain,omitempty"`
	Delete int        `json:"delete,omitempty"`
	Attrs  Attributes `json:"attributes,omitempty"`
}

// Delta is an ordered sequence of ops describing either a document
// (insert-only) or a change to one.
type Delta []Op

// Len returns the number of canonical-text characters an op spans.
func (o Op) Len() int {
	switch {
	case o.Embed != nil:
		return 1
	case o.Insert != "":
		return len([]rune(o.Insert))
	case o.Retain > 0:
		return o.Retain
	default:
		return o.Delete
	}
}

func (o Op) isInsert() bool { return o.Insert != "" || o.Embed != nil }

// Push appends an op, merging it with the previous one when both are
// plain text inserts or retains with identical attributes.
func (d Delta) Push(op Op) Delta {
	if op.Len() == 0 {
		return d
	}
	if n := len(d); n > 0 {
		last := &d[n-1]
		switch {
		case op.Insert != "" && last.Insert != "" && last.Embed == nil && attrsEqual(op.Attrs, last.Attrs):
			last.Insert += op.Insert
			return d
		case op.Delete > 0 && last.Delete > 0:
			last.Delete += op.Delete
			return d
		case op.Retain > 0 && last.Retain > 0 && attrsEqual(op.Attrs, last.Attrs):
			last.Retain += op.Retain
			return d
		}
	}
	return append(d, op)
}

// Chop drops a trailing attribute-less retain, which is a no-op.
func (d Delta) Chop() Delta {
	if n := len(d); n > 0 && d[n-1].Retain > 0 && d[n-1].Attrs == nil {
		return d[:n-1]
	}
	return d
}

// Compose returns a delta equivalent to applying a then b.
func Compose(a, b Delta) Delta {
	ia := newOpIterator(a)
	ib := newOpIterator(b)
	var out Delta

	for ia.hasNext() || ib.hasNext() {
		// Inserts from b land as-is; deletes from a are untouched by b.
		if ib.peekIsInsert() {
			out = out.Push(ib.next(ib.peekLen()))
			continue
		}
		if ia.peekIsDelete() {
			out = out.Push(ia.next(ia.peekLen()))
			continue
		}

		n := min(ia.peekLen(), ib.peekLen())
		opA := ia.next(n)
		opB := ib.next(n)

		switch {
		case opB.Delete > 0:
			// b deletes what a retained; deletions of a's inserts vanish.
			if opA.Retain > 0 {
				out = out.Push(Op{Delete: n})
			}
		case opA.isInsert():
			merged := opA
			merged.Attrs = composeAttrs(opA.Attrs, opB.Attrs, false)
			out = out.Push(merged)
		default:
			out = out.Push(Op{Retain: n, Attrs: composeAttrs(opA.Attrs, opB.Attrs, true)})
		}
	}

	return out.Chop()
}

// composeAttrs merges b over a. keepNil controls whether explicit nil values
// in b (attribute removal) survive in the result, which they must on retains.
func composeAttrs(a, b Attributes, keepNil bool) Attributes {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(Attributes, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if v == nil && !keepNil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func attrsEqual(a, b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// opIterator walks a delta yielding partial ops of requested lengths.
type opIterator struct {
	ops    Delta
	idx    int
	offset int
}

func newOpIterator(ops Delta) *opIterator {
	return &opIterator{ops: ops}
}

func (it *opIterator) hasNext() bool {
	return it.idx < len(it.ops)
}

func (it *opIterator) peekLen() int {
	if !it.hasNext() {
		return 1 << 30
	}
	return it.ops[it.idx].Len() - it.offset
}

func (it *opIterator) peekIsInsert() bool {
	return it.hasNext() && it.ops[it.idx].isInsert()
}

func (it *opIterator) peekIsDelete() bool {
	return it.hasNext() && it.ops[it.idx].Delete > 0
}

// next consumes up to n characters of the current op.
func (it *opIterator) next(n int) Op {
	if !it.hasNext() {
		return Op{Retain: n}
	}
	op := it.ops[it.idx]
	remaining := op.Len() - it.offset
	if n >= remaining {
		n = remaining
		it.idx++
		defer func() { it.offset = 0 }()
	} else {
		it.offset += n
	}

	switch {
	case op.Embed != nil:
		return Op{Embed: op.Embed, Attrs: op.Attrs}
	case op.Insert != "":
		runes := []rune(op.Insert)
		start := op.Len() - remaining
		return Op{Insert: string(runes[start : start+n]), Attrs: op.Attrs}
	case op.Retain > 0:
		return Op{Retain: n, Attrs: op.Attrs}
	default:
		return Op{Delete: n}
	}
}

func (o Op) String() string {
	switch {
	case o.Embed != nil:
		return fmt.Sprintf("embed(%s)", o.Embed.Kind)
	case o.Insert != "":
		return fmt.Sprintf("insert(%q)", o.Insert)
	case o.Retain > 0:
		return fmt.Sprintf("retain(%d)", o.Retain)
	default:
		return fmt.Sprintf("delete(%d)", o.Delete)
	}
}
