package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushMergesAdjacentInserts(t *testing.T) {
	d := Delta{}.Push(Op{Insert: "Hel"}).Push(Op{Insert: "lo"})
	assert.Equal(t, Delta{{Insert: "Hello"}}, d)
}

func TestPushKeepsDistinctAttrsSeparate(t *testing.T) {
	d := Delta{}.
		Push(Op{Insert: "Hel"}).
		Push(Op{Insert: "lo", Attrs: Attributes{"bold": true}})
	assert.Len(t, d, 2)
	assert.Equal(t, "Hel", d[0].Insert)
	assert.Equal(t, "lo", d[1].Insert)
}

func TestPushMergesDeletesAndRetains(t *testing.T) {
	d := Delta{}.Push(Op{Delete: 2}).Push(Op{Delete: 3})
	assert.Equal(t, Delta{{Delete: 5}}, d)

	d = Delta{}.Push(Op{Retain: 2}).Push(Op{Retain: 3})
	assert.Equal(t, Delta{{Retain: 5}}, d)
}

func TestChopDropsTrailingRetain(t *testing.T) {
	d := Delta{{Insert: "a"}, {Retain: 3}}.Chop()
	assert.Equal(t, Delta{{Insert: "a"}}, d)

	// A formatting retain is not a no-op and must survive.
	d = Delta{{Insert: "a"}, {Retain: 3, Attrs: Attributes{"bold": true}}}.Chop()
	assert.Len(t, d, 2)
}

func TestComposeInsertThenDelete(t *testing.T) {
	a := Delta{{Insert: "Hello"}}
	b := Delta{{Retain: 2}, {Delete: 3}}
	assert.Equal(t, Delta{{Insert: "He"}}, Compose(a, b))
}

func TestComposeInsertThenInsert(t *testing.T) {
	a := Delta{{Insert: "Held"}}
	b := Delta{{Retain: 3}, {Insert: "lo worl"}}
	assert.Equal(t, Delta{{Insert: "Hello world"}}, Compose(a, b))
}

func TestComposeRetainFormatting(t *testing.T) {
	a := Delta{{Insert: "Hello"}}
	b := Delta{{Retain: 5, Attrs: Attributes{"bold": true}}}
	got := Compose(a, b)
	assert.Equal(t, Delta{{Insert: "Hello", Attrs: Attributes{"bold": true}}}, got)
}

func TestComposeDeleteOfInsertVanishes(t *testing.T) {
	a := Delta{{Retain: 2}, {Insert: "xy"}}
	b := Delta{{Retain: 2}, {Delete: 2}}
	// b deletes exactly what a inserted; the composition touches nothing.
	assert.Empty(t, Compose(a, b))
}

func TestComposeAttributeRemoval(t *testing.T) {
	a := Delta{{Retain: 3, Attrs: Attributes{"bold": true}}}
	b := Delta{{Retain: 3, Attrs: Attributes{"bold": nil}}}
	got := Compose(a, b)
	assert.Equal(t, Delta{{Retain: 3, Attrs: Attributes{"bold": nil}}}, got)
}

func TestComposeEmbedSurvives(t *testing.T) {
	em := &Embed{Kind: "image"}
	a := Delta{{Embed: em}}
	b := Delta{{Retain: 1, Attrs: Attributes{"width": 100}}}
	got := Compose(a, b)
	assert.Len(t, got, 1)
	assert.Equal(t, em, got[0].Embed)
	assert.Equal(t, Attributes{"width": 100}, got[0].Attrs)
}
