package lm

import (
	"math"
	"testing"

	"github.com/recruit474/latticelm/internal/pylm"
)

func newTestPylmFst() *PylmFst {
	known := pylm.NewHPYLM[pylm.WordId](1, 1.0, 0.5, 1.0, 1.0, 1.0, 1.0, 0.0)
	chars := pylm.NewHPYLM[pylm.CharId](1, 1.0, 0.5, 1.0, 1.0, 1.0, 1.0, 1.0/2097152.0)
	return New(known, chars, 101, 1.0/2097152.0)
}

func spellingBook(spellings map[pylm.WordId][]pylm.CharId) func(pylm.WordId) []pylm.CharId {
	return func(w pylm.WordId) []pylm.CharId { return spellings[w] }
}

func TestAddSentenceRemoveSentenceRoundtrip(t *testing.T) {
	p := newTestPylmFst()
	spellings := map[pylm.WordId][]pylm.CharId{5: {10, 11, 12}, 6: {13, 14}}
	words := []pylm.WordId{5, 6}
	lookup := spellingBook(spellings)

	before := p.WordCost([]pylm.WordId{0}, 5, spellings[5])
	p.AddSentence(words, lookup)
	p.RemoveSentence(words, lookup)
	after := p.WordCost([]pylm.WordId{0}, 5, spellings[5])

	if math.Abs(before-after) > 1e-9 {
		t.Fatalf("add/remove sentence roundtrip changed WordCost: before=%v after=%v", before, after)
	}
}

func TestAddSentenceSeatsANewWordsSpellingInTheCharacterLM(t *testing.T) {
	p := newTestPylmFst()
	spellings := map[pylm.WordId][]pylm.CharId{7: {10, 11}}
	lookup := spellingBook(spellings)

	sizeBefore := p.Chars.Size()
	p.AddSentence([]pylm.WordId{7}, lookup)
	sizeAfterFirst := p.Chars.Size()
	if sizeAfterFirst == sizeBefore {
		t.Fatalf("expected the first seating of a new word to grow the character HPYLM")
	}

	p.AddSentence([]pylm.WordId{7}, lookup)
	sizeAfterSecond := p.Chars.Size()
	if sizeAfterSecond < sizeAfterFirst {
		t.Fatalf("character HPYLM shrank on a repeated seating")
	}
}

func TestWordCostIsFinite(t *testing.T) {
	p := newTestPylmFst()
	cost := p.WordCost([]pylm.WordId{0}, 3, []pylm.CharId{10, 11, 12, 13})
	if math.IsInf(cost, 0) || math.IsNaN(cost) {
		t.Fatalf("WordCost returned a non-finite cost: %v", cost)
	}
}
