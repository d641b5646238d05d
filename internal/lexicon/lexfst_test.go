package lexicon

import (
	"reflect"
	"testing"

	"github.com/recruit474/latticelm/internal/pylm"
)

func sampleLexFst() *LexFst {
	l := New("_")
	l.SetPermSymbols([]string{"<eps>", "<phi>", "x<unk>", "x</unk>", "xa", "xb", "xc"})
	return l
}

func TestAddWordIdempotent(t *testing.T) {
	l := sampleLexFst()
	chars := []pylm.CharId{4, 5} // "a","b"
	id1 := l.AddWord(chars)
	id2 := l.AddWord(chars)
	if id1 != id2 {
		t.Fatalf("AddWord not idempotent: %d != %d", id1, id2)
	}
	if len(l.words) != 2 { // Bos placeholder + one real word
		t.Fatalf("expected exactly one new lexicon entry, got %d", len(l.words)-1)
	}
}

func TestAddWordDistinctSpellingsGetDistinctIds(t *testing.T) {
	l := sampleLexFst()
	idAB := l.AddWord([]pylm.CharId{4, 5})
	idBA := l.AddWord([]pylm.CharId{5, 4})
	if idAB == idBA {
		t.Fatalf("distinct spellings collapsed to the same WordId")
	}
}

func TestLookupKnownFindsSeatedWord(t *testing.T) {
	l := sampleLexFst()
	chars := []pylm.CharId{4, 5, 6}
	want := l.AddWord(chars)
	got, ok := l.LookupKnown(chars)
	if !ok || got != want {
		t.Fatalf("LookupKnown(%v) = (%v,%v), want (%v,true)", chars, got, ok, want)
	}
	if _, ok := l.LookupKnown([]pylm.CharId{4, 4}); ok {
		t.Fatalf("LookupKnown found a spelling that was never added")
	}
}

func TestParseSampleFoldsUnkSpanIntoAddWord(t *testing.T) {
	l := sampleLexFst()
	outputs := []int32{2, 4, 5, 3} // <unk> a b </unk>
	words := l.ParseSample(outputs)
	if len(words) != 1 {
		t.Fatalf("expected a single folded word, got %d", len(words))
	}
	got, ok := l.LookupKnown([]pylm.CharId{4, 5})
	if !ok || got != words[0] {
		t.Fatalf("ParseSample did not register the unk span as a lexicon entry")
	}
}

func TestParseSampleResolvesDirectWordSymbols(t *testing.T) {
	l := sampleLexFst()
	id := l.AddWord([]pylm.CharId{4, 5})
	wordSymbol := l.SymbolID(id)
	words := l.ParseSample([]int32{wordSymbol})
	want := []pylm.WordId{id}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("ParseSample = %v, want %v", words, want)
	}
}

func TestSymbolForWordRoundTrip(t *testing.T) {
	l := sampleLexFst()
	id := l.AddWord([]pylm.CharId{4, 5, 6})
	if got := l.SymbolForWord(id); got != "a_b_c" {
		t.Fatalf("SymbolForWord = %q, want %q", got, "a_b_c")
	}
	if got := l.SymbolForWord(BosWordID); got != "<s>" {
		t.Fatalf("SymbolForWord(Bos) = %q, want <s>", got)
	}
}
