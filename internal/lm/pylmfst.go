// Package lm wires the generic HPYLM instances into the cost functions the
// sampler needs when it materializes a per-utterance lattice: PylmFst is the
// spec's §4.4 component, scoring known-word transitions against the
// word-level HPYLM and unknown-word transitions against the character-level
// HPYLM used as that word HPYLM's base measure.
package lm

import (
	"math"

	"github.com/recruit474/latticelm/internal/pylm"
)

// PylmFst scores word transitions for the sampler's composed lattice. It
// owns no states or arcs itself (see internal/fst's package doc: the
// sampler materializes the product graph directly); it exposes the cost
// function used for arc weights plus the sentence-level add/remove pair the
// trainer calls once a segmentation has been drawn.
//
// Grounded on bayselm/NPYLM.go's calcBase/addCustomerBase/removeCustomerBase
// and original_source/latticelm.h's addSample/removeSample (a word's base
// probability under the word HPYLM is always its spelling's probability
// under the character HPYLM; characters are only re-seated at the positions
// where the word HPYLM's removeCustomers/CalcSentence bookkeeping reports a
// root table vacated/opened). Simplified from VPYLM.go's bow-padded,
// always-full-order context to this module's already-generic
// HPYLM[CharId], whose context simply starts empty at each word boundary and
// grows up to maxDepth like any other HPYLM query (see DESIGN.md).
type PylmFst struct {
	Known *pylm.HPYLM[pylm.WordId]
	Chars *pylm.HPYLM[pylm.CharId]

	eow      pylm.CharId
	charBase float64
}

// New returns a PylmFst over the given known-word and character HPYLMs. eow
// is appended once after a spelling's real characters, scored and seated
// like any other character, marking the word boundary to the character LM.
func New(known *pylm.HPYLM[pylm.WordId], chars *pylm.HPYLM[pylm.CharId], eow pylm.CharId, charBase float64) *PylmFst {
	return &PylmFst{Known: known, Chars: chars, eow: eow, charBase: charBase}
}

func (p *PylmFst) eowTerminated(spelling []pylm.CharId) ([]pylm.CharId, []pylm.LMProb) {
	seq := append(append([]pylm.CharId{}, spelling...), p.eow)
	bases := make([]pylm.LMProb, len(seq))
	for i := range bases {
		bases[i] = pylm.LMProb(p.charBase)
	}
	return seq, bases
}

// SpellingProb returns P(spelling, eow) under the character HPYLM without
// seating anything: the base measure the word HPYLM uses at its root
// context, whether scoring a known re-used spelling or a brand new one.
func (p *PylmFst) SpellingProb(spelling []pylm.CharId) float64 {
	seq, bases := p.eowTerminated(spelling)
	logProb := p.Chars.CalcSentence(seq, bases, false)
	return math.Exp(float64(logProb))
}

// KnownMaxDepth is the longest word history the known-word HPYLM conditions
// on (KnownN-1 in the CLI's terms). Callers materializing composed states
// truncate their tracked history to this many words, most recent last.
func (p *PylmFst) KnownMaxDepth() int {
	return p.Known.GetN() - 1
}

// WordCost returns the -log-probability cost of word given history under the
// known-word HPYLM, using spelling's character-model probability as the base
// measure. history is already the correctly truncated WordId context (most
// recent last).
func (p *PylmFst) WordCost(history []pylm.WordId, word pylm.WordId, spelling []pylm.CharId) float64 {
	base := p.SpellingProb(spelling)
	prob := p.Known.CalcProb(word, pylm.Context[pylm.WordId](history), base)
	return -math.Log(prob)
}

// withBos prefixes words with pylm.BosWordID, the initial history every
// sentence is seated against (bayselm/NPYLM.go's addWordSeqAsCustomer always
// sets u[0] = bos for the first token). The original omits a trailing EOS
// token (original_source/latticelm.h's loadText leaves its "</s>" push
// commented out), so no suffix is added here.
func withBos(words []pylm.WordId) []pylm.WordId {
	full := make([]pylm.WordId, len(words)+1)
	full[0] = pylm.BosWordID
	copy(full[1:], words)
	return full
}

// AddSentence seats words into the known-word HPYLM (spec's addSample), then
// seats the spelling of every position whose seating opened a brand new root
// table into the character HPYLM. spellingOf resolves a WordId to its
// characters (the lexicon's word list). It returns the known-word and
// character-model log-probabilities, mirroring knownLikelihood_/
// unkLikelihood_'s per-sentence contribution in the original.
func (p *PylmFst) AddSentence(words []pylm.WordId, spellingOf func(pylm.WordId) []pylm.CharId) (knownLogProb, unkLogProb pylm.LMProb) {
	full := withBos(words)
	baseProbs := make([]pylm.LMProb, len(full))
	baseProbs[0] = 1.0 // bos is always exactly predicted
	for i, w := range words {
		baseProbs[i+1] = pylm.LMProb(p.SpellingProb(spellingOf(w)))
	}
	knownLogProb = p.Known.CalcSentence(full, baseProbs, true)
	for _, pos := range p.Known.BasePositions() {
		if pos == 0 {
			continue // bos itself has no spelling
		}
		seq, bases := p.eowTerminated(spellingOf(words[pos-1]))
		unkLogProb += p.Chars.CalcSentence(seq, bases, true)
	}
	return knownLogProb, unkLogProb
}

// RemoveSentence is the exact inverse of AddSentence.
func (p *PylmFst) RemoveSentence(words []pylm.WordId, spellingOf func(pylm.WordId) []pylm.CharId) {
	full := withBos(words)
	p.Known.RemoveCustomers(full)
	for _, pos := range p.Known.BasePositions() {
		if pos == 0 {
			continue
		}
		seq, _ := p.eowTerminated(spellingOf(words[pos-1]))
		p.Chars.RemoveCustomers(seq)
	}
}
