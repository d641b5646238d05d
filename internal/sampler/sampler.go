// Package sampler implements the per-utterance resampling step: remove the
// sequence's current customers, materialize a composed lattice scoring every
// known-word and unknown-word segmentation, and draw a fresh segmentation via
// forward-filtering/backward-sampling (spec §4.5).
package sampler

import (
	"strconv"
	"strings"

	"github.com/recruit474/latticelm/internal/fst"
	"github.com/recruit474/latticelm/internal/lexicon"
	"github.com/recruit474/latticelm/internal/lm"
	"github.com/recruit474/latticelm/internal/pylm"
)

// Config bounds the lattice materialization and the annealed draw.
type Config struct {
	MaxUnknownWordLen int     // bound on a candidate unknown-word span, in characters
	Beam              float64 // <= 0 disables pruning
	InvTau            float64 // exponent applied to path weights; 0 is uniform, 1.0 is unbiased Gibbs
}

// Sampler resamples one utterance's segmentation against the shared
// known-word and character HPYLMs.
//
// Grounded on bayselm/NPYLM.go's TestWordSegmentation/forward/backward (the
// character-position DP over a plain string) generalized to an arbitrary
// input Fst per original_source/latticelm.h's singleSample (compose, prune,
// SampGen, parseSample), materializing the composed graph directly rather
// than through generic lazy matcher composition (see internal/fst's package
// doc).
type Sampler struct {
	Lex  *lexicon.LexFst
	Pylm *lm.PylmFst
	Cfg  Config
}

// New returns a Sampler sharing lex and pylmFst with the rest of the
// trainer.
func New(lex *lexicon.LexFst, pylmFst *lm.PylmFst, cfg Config) *Sampler {
	return &Sampler{Lex: lex, Pylm: pylmFst, Cfg: cfg}
}

// Result is the outcome of resampling one utterance.
type Result struct {
	Words             []pylm.WordId
	LatticeLikelihood float64 // sum of sampled path arc costs, the lattice's contribution
	KnownLogProb      pylm.LMProb
	UnkLogProb        pylm.LMProb
}

// Resample removes seq's current customers (if any; pass nil on the first
// pass over an utterance), composes a fresh lattice from input, draws a path,
// and re-seats the resulting word sequence. input's arcs carry a CharId on
// OLabel and an acoustic/graph cost on Weight (already amScale-mapped, spec
// §3's external collaborator).
func (s *Sampler) Resample(input *fst.Fst, seq []pylm.WordId) Result {
	if seq != nil {
		s.removeCustomers(seq)
	}

	composed := s.compose(input)
	if s.Cfg.Beam > 0 {
		composed = fst.Prune(composed, s.Cfg.Beam)
	}
	alpha := fst.ShortestDistanceLog(composed)
	path := fst.SampleBackward(composed, alpha, s.Cfg.InvTau)

	outputs := make([]int32, 0, len(path))
	for _, a := range path {
		if a.OLabel != int32(lexicon.CharEps) {
			outputs = append(outputs, a.OLabel)
		}
	}
	words := s.Lex.ParseSample(outputs)

	latticeLikelihood := 0.0
	for _, a := range path {
		latticeLikelihood += a.Weight
	}

	knownLogProb, unkLogProb := s.Pylm.AddSentence(words, s.spellingOf)
	return Result{
		Words:             words,
		LatticeLikelihood: latticeLikelihood,
		KnownLogProb:      knownLogProb,
		UnkLogProb:        unkLogProb,
	}
}

// removeCustomers is the exact inverse of the AddSentence call a prior
// Resample made for seq.
func (s *Sampler) removeCustomers(seq []pylm.WordId) {
	s.Pylm.RemoveSentence(seq, s.spellingOf)
}

func (s *Sampler) spellingOf(w pylm.WordId) []pylm.CharId {
	return s.Lex.GetWords()[w]
}

// historyKey canonicalizes a truncated word history (most recent last) into
// a comparable map key, the same convention pylm.Context[T].key() uses.
func historyKey(h []pylm.WordId) string {
	if len(h) == 0 {
		return ""
	}
	parts := make([]string, len(h))
	for i, w := range h {
		parts[i] = strconv.Itoa(int(w))
	}
	return strings.Join(parts, "\x1f")
}

// truncateHistory keeps only the last maxDepth words of h, the same
// left-truncation HPYLM.CalcProb/CalcSentence apply to their own context.
func truncateHistory(h []pylm.WordId, maxDepth int) []pylm.WordId {
	if len(h) <= maxDepth {
		return h
	}
	return h[len(h)-maxDepth:]
}

// compKey identifies a composed state: an (inputState, precedingWordHistory)
// pair, with history truncated to the known-word HPYLM's actual order (see
// internal/lm's KnownMaxDepth), not just the single most recent word.
type compKey struct {
	inState int
	hist    string
}

// compose builds the full product of input with the lexicon's known-word
// trie and the bounded unknown-word sub-automaton, scoring every arc with
// PylmFst.
func (s *Sampler) compose(input *fst.Fst) *fst.Fst {
	out := fst.New()
	maxDepth := s.Pylm.KnownMaxDepth()
	ids := make(map[compKey]int)
	histOf := make(map[compKey][]pylm.WordId)

	ensure := func(inState int, hist []pylm.WordId) int {
		k := compKey{inState, historyKey(hist)}
		if id, ok := ids[k]; ok {
			return id
		}
		id := out.AddState()
		ids[k] = id
		histOf[k] = hist
		return id
	}

	bosHist := truncateHistory([]pylm.WordId{lexicon.BosWordID}, maxDepth)
	start := ensure(input.Start(), bosHist)
	out.SetStart(start)

	startKey := compKey{input.Start(), historyKey(bosHist)}
	queue := []compKey{startKey}
	visited := map[compKey]bool{startKey: true}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		hist := histOf[k]
		from := ensure(k.inState, hist)

		if w, ok := input.Final(k.inState); ok {
			out.SetFinal(from, w)
		}

		newKeys := s.walkKnown(input, k.inState, hist, maxDepth, from, nil, out, ensure)
		newKeys = append(newKeys, s.walkUnknown(input, k.inState, hist, maxDepth, from, nil, nil, out, ensure)...)
		for _, nk := range newKeys {
			if !visited[nk] {
				visited[nk] = true
				queue = append(queue, nk)
			}
		}
	}
	return out
}

// walkKnown extends every trie-compatible path out of inState, emitting a
// word-ending arc (scored by PylmFst against the full truncated hist) whenever
// the trie reaches a known word, and recursing further to find longer words
// sharing the same prefix. Intermediate partial-word progress is kept in
// private composed states, never shared across distinct walks, since it is
// not a real word boundary.
func (s *Sampler) walkKnown(input *fst.Fst, inState int, hist []pylm.WordId, maxDepth int, cur int, node interface{}, out *fst.Fst, ensure func(int, []pylm.WordId) int) []compKey {
	var produced []compKey
	for _, a := range input.Arcs(inState) {
		c := pylm.CharId(a.OLabel)
		nextNode, wid, isWord, ok := s.Lex.TrieStep(node, c)
		if !ok {
			continue
		}
		next := out.AddState()
		out.AddArc(cur, fst.Arc{OLabel: int32(lexicon.CharEps), Weight: a.Weight, To: next})
		if isWord {
			spelling := s.Lex.GetWords()[wid]
			cost := s.Pylm.WordCost(hist, wid, spelling)
			nextHist := truncateHistory(append(append([]pylm.WordId{}, hist...), wid), maxDepth)
			k := compKey{a.To, historyKey(nextHist)}
			toComposed := ensure(a.To, nextHist)
			out.AddArc(next, fst.Arc{OLabel: s.Lex.SymbolID(wid), Weight: cost, To: toComposed})
			produced = append(produced, k)
		}
		produced = append(produced, s.walkKnown(input, a.To, hist, maxDepth, next, nextNode, out, ensure)...)
	}
	return produced
}

// walkUnknown extends every path out of inState up to Cfg.MaxUnknownWordLen
// characters, treating each prefix as a candidate unknown-word spelling and
// emitting a private <unk> spelling... </unk> bracket chain scored by
// PylmFst. The history left behind has pylm.UnkContextWordID appended (and
// truncated like any other word): the real WordId is only assigned once a
// sampled path's span is actually resolved via LexFst.ParseSample.
func (s *Sampler) walkUnknown(input *fst.Fst, inState int, hist []pylm.WordId, maxDepth int, fromComposed int, spelling []pylm.CharId, stepWeights []float64, out *fst.Fst, ensure func(int, []pylm.WordId) int) []compKey {
	var produced []compKey
	if len(spelling) > 0 {
		cost := s.Pylm.WordCost(hist, pylm.UnkContextWordID, spelling)

		cur := out.AddState()
		out.AddArc(fromComposed, fst.Arc{OLabel: int32(lexicon.CharUnk), Weight: 0, To: cur})
		for i, c := range spelling {
			next := out.AddState()
			out.AddArc(cur, fst.Arc{OLabel: int32(c), Weight: stepWeights[i], To: next})
			cur = next
		}
		nextHist := truncateHistory(append(append([]pylm.WordId{}, hist...), pylm.UnkContextWordID), maxDepth)
		k := compKey{inState, historyKey(nextHist)}
		toComposed := ensure(inState, nextHist)
		out.AddArc(cur, fst.Arc{OLabel: int32(lexicon.CharUnkC), Weight: cost, To: toComposed})
		produced = append(produced, k)
	}
	if len(spelling) >= s.Cfg.MaxUnknownWordLen {
		return produced
	}
	for _, a := range input.Arcs(inState) {
		nextSpelling := append(append([]pylm.CharId{}, spelling...), pylm.CharId(a.OLabel))
		nextWeights := append(append([]float64{}, stepWeights...), a.Weight)
		produced = append(produced, s.walkUnknown(input, a.To, hist, maxDepth, fromComposed, nextSpelling, nextWeights, out, ensure)...)
	}
	return produced
}
