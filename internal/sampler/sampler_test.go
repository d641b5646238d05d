package sampler

import (
	"testing"

	"github.com/recruit474/latticelm/internal/fst"
	"github.com/recruit474/latticelm/internal/lexicon"
	"github.com/recruit474/latticelm/internal/lm"
	"github.com/recruit474/latticelm/internal/pylm"
)

// charChain builds a linear input Fst spelling out chars, each transition
// carrying zero extra (acoustic) cost.
func charChain(chars []pylm.CharId) *fst.Fst {
	f := fst.New()
	s0 := f.AddState()
	f.SetStart(s0)
	prev := s0
	for _, c := range chars {
		next := f.AddState()
		f.AddArc(prev, fst.Arc{OLabel: int32(c), Weight: 0, To: next})
		prev = next
	}
	f.SetFinal(prev, 0)
	return f
}

func newTestSampler() (*Sampler, *lexicon.LexFst) {
	lex := lexicon.New("_")
	lex.SetPermSymbols([]string{"<eps>", "<phi>", "x<unk>", "x</unk>", "xa", "xb", "xc"})

	known := pylm.NewHPYLM[pylm.WordId](1, 1.0, 0.5, 1.0, 1.0, 1.0, 1.0, 0.0)
	chars := pylm.NewHPYLM[pylm.CharId](1, 1.0, 0.5, 1.0, 1.0, 1.0, 1.0, 1.0/2097152.0)
	pylmFst := lm.New(known, chars, 101, 1.0/2097152.0)

	s := New(lex, pylmFst, Config{MaxUnknownWordLen: 4, Beam: 0, InvTau: 1.0})
	return s, lex
}

func TestResampleProducesASegmentationCoveringTheInput(t *testing.T) {
	s, _ := newTestSampler()
	input := charChain([]pylm.CharId{4, 5, 6}) // "a","b","c"

	result := s.Resample(input, nil)
	if len(result.Words) == 0 {
		t.Fatalf("expected at least one word in the sampled segmentation")
	}

	total := 0
	for _, w := range result.Words {
		total += len(s.Lex.GetWords()[w])
	}
	if total != 3 {
		t.Fatalf("sampled segmentation covers %d characters, want 3", total)
	}
}

func TestResampleRemoveThenAddIsARoundtrip(t *testing.T) {
	s, _ := newTestSampler()
	input := charChain([]pylm.CharId{4, 5})

	first := s.Resample(input, nil)
	sizeAfterFirst := s.Pylm.Known.Size()

	second := s.Resample(input, first.Words)
	sizeAfterSecond := s.Pylm.Known.Size()

	if len(second.Words) == 0 {
		t.Fatalf("expected a non-empty resegmentation")
	}
	if sizeAfterSecond > sizeAfterFirst+2 {
		t.Fatalf("resampling the same utterance repeatedly should not keep growing the HPYLM trie: %d -> %d", sizeAfterFirst, sizeAfterSecond)
	}
}

func TestKnownWordCostIsLowerThanAnUnseenSpellingOfTheSameCharacters(t *testing.T) {
	s, lex := newTestSampler()
	spelling := []pylm.CharId{4, 5, 6}
	known := lex.AddWord(spelling)
	s.Pylm.AddSentence([]pylm.WordId{known}, func(pylm.WordId) []pylm.CharId { return spelling })

	knownCost := s.Pylm.WordCost([]pylm.WordId{lexicon.BosWordID}, known, spelling)
	unseenCost := s.Pylm.WordCost([]pylm.WordId{lexicon.BosWordID}, pylm.UnkContextWordID, spelling)

	if knownCost >= unseenCost {
		t.Fatalf("expected the already-seated word to be cheaper than an unseen spelling: known=%v unseen=%v", knownCost, unseenCost)
	}
}
