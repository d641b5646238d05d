package trainer

import (
	"log"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/recruit474/latticelm/internal/lexicon"
	"github.com/recruit474/latticelm/internal/lm"
	"github.com/recruit474/latticelm/internal/pylm"
	"github.com/recruit474/latticelm/internal/sampler"
)

// charEow is the spelling-LM-internal word-boundary symbol. It must not
// collide with any real character id, so it sits one past the alphabet.
func charEow(dc *DataContainer) pylm.CharId {
	return pylm.CharId(len(dc.Lex.GetPermSymbols()))
}

// Config holds every epoch-schedule and LM-order parameter of spec §6's CLI
// surface (original LatticeLM's private fields, made an explicit value type
// here since Trainer has no Python-binding surface to keep private state
// hidden from).
type Config struct {
	NumBurnIn         int
	NumAnnealSteps    int
	AnnealStepLength  int
	NumSamples        int
	SampleRate        int
	TrimRate          int
	PruneThreshold    float64
	KnownN            int
	UnkN              int
	MaxUnknownWordLen int // bound on an enumerated unknown-word span, in characters
	Prefix            string
}

// Trainer owns the two HPYLMs, the lexicon, and the per-sequence histories,
// and runs the epoch loop of spec §4.6.
//
// Grounded on original_source/latticelm.h's LatticeLM (train/trimModels/
// printIterationStatus/sampleParameters/iterateSamples/singleSample), with
// ownership reshaped per spec §9's design note: Trainer owns the LMs and
// lexicon outright and hands the Sampler immutable-shaped views rebuilt
// every singleSample call rather than sharing raw pointers.
type Trainer struct {
	Cfg Config
	Log *log.Logger

	dc       *DataContainer
	known    *pylm.HPYLM[pylm.WordId]
	chars    *pylm.HPYLM[pylm.CharId]
	charBase float64
	eow      pylm.CharId

	histories [][]pylm.WordId

	latticeLikelihood float64
	knownLikelihood   float64
	unkLikelihood     float64
	annealLevel       float64
}

// New returns a Trainer over dc's sequences, with fresh HPYLMs of the
// configured order.
func New(dc *DataContainer, cfg Config) *Trainer {
	numChars := dc.Lex.GetNumChars()
	t := &Trainer{
		Cfg:       cfg,
		Log:       log.New(os.Stderr, "", 0),
		dc:        dc,
		known:     pylm.NewHPYLM[pylm.WordId](cfg.KnownN-1, 2.0, 0.1, 1.0, 1.0, 1.0, 1.0, 0),
		chars:     pylm.NewHPYLM[pylm.CharId](cfg.UnkN-1, 2.0, 0.1, 1.0, 1.0, 1.0, 1.0, 1.0/float64(numChars)),
		charBase:  1.0 / float64(numChars),
		eow:       charEow(dc),
		histories: make([][]pylm.WordId, dc.Size),
	}
	return t
}

func (t *Trainer) pylmFst() *lm.PylmFst {
	return lm.New(t.known, t.chars, t.eow, t.charBase)
}

// Train runs epochs 0..=NumSamples, matching the original's off-by-one
// total-iteration count (`for iter := 0; iter <= numSamples_; iter++`).
func (t *Trainer) Train() {
	for iter := 0; iter <= t.Cfg.NumSamples; iter++ {
		t.latticeLikelihood, t.knownLikelihood, t.unkLikelihood = 0, 0, 0

		// Integer-division quantisation is intentional: spec §9 flags this
		// as a faithfully-preserved quirk of the original's annealLevel_
		// schedule, not a bug to silently fix.
		level := (iter + t.Cfg.AnnealStepLength - 1) / t.Cfg.AnnealStepLength
		denom := float64(t.Cfg.NumAnnealSteps - level)
		if denom < 1.0 {
			denom = 1.0
		}
		t.annealLevel = 1.0 / denom

		t.iterateSamples()

		t.known.SampleParameters()
		t.chars.SampleParameters()
		t.printIterationStatus(iter)

		if iter%t.Cfg.TrimRate == 0 {
			t.trimModels()
		}

		if iter >= t.Cfg.NumBurnIn && (iter-t.Cfg.NumBurnIn)%t.Cfg.SampleRate == 0 {
			t.Log.Printf(" Printing sample for iteration %d", iter)
			t.printSample(iter)
		}
	}
}

// iterateSamples resamples every sequence once, in index order (the
// original does not shuffle between epochs).
func (t *Trainer) iterateSamples() {
	bar := pb.StartNew(t.dc.Size)
	start := time.Now()
	for i := 0; i < t.dc.Size; i++ {
		t.singleSample(i)
		bar.Increment()
	}
	bar.Finish()
	t.Log.Printf(" %v", time.Since(start))
}

// singleSample resamples sequence i: remove its current customers, compose
// a fresh lattice, draw a path, and re-seat the resulting word sequence.
func (t *Trainer) singleSample(i int) {
	lex := t.dc.Lex
	s := sampler.New(lex, t.pylmFst(), sampler.Config{
		MaxUnknownWordLen: t.Cfg.MaxUnknownWordLen,
		Beam:              t.Cfg.PruneThreshold,
		InvTau:            t.annealLevel,
	})

	result := s.Resample(t.dc.Input(i), t.histories[i])
	t.histories[i] = result.Words
	t.latticeLikelihood += result.LatticeLikelihood
	t.knownLikelihood -= float64(result.KnownLogProb)
	t.unkLikelihood -= float64(result.UnkLogProb)
}

// trimModels compacts both HPYLMs and rebuilds the lexicon keeping only
// words still referenced by some sequence's history, remapping histories to
// the new dense WordIds (original trimModels).
func (t *Trainer) trimModels() {
	lex := t.dc.Lex
	knownWords := lex.GetWords()
	remap := t.known.Trim(len(knownWords), func(i int) pylm.WordId { return pylm.WordId(i) }, true)
	t.chars.Trim(0, nil, false)

	next := lexicon.New(lex.GetSeparator())
	next.SetPermSymbols(lex.GetPermSymbols())
	for i, chars := range knownWords {
		if i == int(lexicon.BosWordID) {
			continue
		}
		if remap[i] != -1 {
			next.AddWord(chars)
		}
	}

	for i := range t.histories {
		for j, w := range t.histories[i] {
			t.histories[i][j] = pylm.WordId(remap[int(w)])
		}
	}
	t.dc.Lex = next
}

// printIterationStatus reproduces the original's printIterationStatus field
// layout exactly (spec §5 supplemented feature).
func (t *Trainer) printIterationStatus(iter int) {
	t.Log.Printf("Finished iteration %d (Anneal=%v), LM=%v (w=%v, u=%v), Lattice=%v",
		iter, t.annealLevel, t.knownLikelihood+t.unkLikelihood, t.knownLikelihood, t.unkLikelihood, t.latticeLikelihood)
	t.Log.Printf(" Vocabulary: w=%v, u=%v", t.known.GetVocabSize(), t.chars.GetVocabSize())
	t.Log.Printf(" LM size: w=%v, u=%v", t.known.Size(), t.chars.Size())
	for i := 0; i < t.known.GetN(); i++ {
		t.Log.Printf(" WLM %d-gram, s=%v, d=%v", i+1, t.known.GetStrength(i), t.known.GetDiscount(i))
	}
	for i := 0; i < t.chars.GetN(); i++ {
		t.Log.Printf(" CLM %d-gram, s=%v, d=%v", i+1, t.chars.GetStrength(i), t.chars.GetDiscount(i))
	}
}

// printSample writes the four snapshot artifacts for this iteration
// (original printSample).
func (t *Trainer) printSample(iter int) {
	lex := t.dc.Lex
	wordBases := t.calculateWordBases()
	if err := writeCharLm(t.chars, lex, t.charBase, t.Cfg.Prefix+"ulm", iter); err != nil {
		panic(err.Error())
	}
	if err := writeWordLm(t.known, lex, wordBases, t.Cfg.Prefix+"wlm", iter); err != nil {
		panic(err.Error())
	}
	if err := writeSamples(lex, t.histories, t.Cfg.Prefix+"samp", iter); err != nil {
		panic(err.Error())
	}
	if err := writeSymbols(lex, t.Cfg.Prefix+"sym", iter); err != nil {
		panic(err.Error())
	}
}

// calculateWordBases returns, for every word currently in the lexicon, its
// spelling probability under the character HPYLM (original
// calculateWordBases), used as the known-word LM's base distribution when
// dumping its probabilities.
func (t *Trainer) calculateWordBases() []pylm.LMProb {
	pf := t.pylmFst()
	words := t.dc.Lex.GetWords()
	bases := make([]pylm.LMProb, len(words))
	for i, chars := range words {
		if i == int(lexicon.BosWordID) {
			continue
		}
		bases[i] = pylm.LMProb(pf.SpellingProb(chars))
	}
	return bases
}
