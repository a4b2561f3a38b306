package doc

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffDelta computes a minimal change delta turning current into target.
// Used when the server pushes a full document snapshot and the local copy
// must converge without being wholesale replaced.
func DiffDelta(current, target string) Delta {
	if current == target {
		return nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(current, target, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var out Delta
	for _, df := range diffs {
		n := len([]rune(df.Text))
		switch df.Type {
		case diffmatchpatch.DiffEqual:
			out = out.Push(Op{Retain: n})
		case diffmatchpatch.DiffDelete:
			out = out.Push(Op{Delete: n})
		case diffmatchpatch.DiffInsert:
			out = out.Push(Op{Insert: df.Text})
		}
	}
	return out.Chop()
}

// TransformIndex shifts a canonical-text index through a change delta so a
// caret keeps pointing at the same content after the change is applied.
// Inserts at the caret position push the caret right.
func TransformIndex(delta Delta, index int) int {
	offset := 0
	for _, op := range delta {
		if offset > index {
			break
		}
		if op.Delete > 0 {
			index -= min(op.Delete, index-offset)
			continue
		}
		if op.isInsert() {
			index += op.Len()
		}
		offset += op.Len()
	}
	return index
}
