package pylm

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Context is an LM history: a slice of dishes, most-recent last, already
// truncated to at most maxDepth entries by the caller.
type Context[T comparable] []T

func (u Context[T]) key() string {
	if len(u) == 0 {
		return ""
	}
	parts := make([]string, len(u))
	for i, w := range u {
		parts[i] = fmt.Sprint(w)
	}
	return strings.Join(parts, "\x1f")
}

// HPYLM is a hierarchical Pitman-Yor language model of order maxDepth+1,
// generic over the dish type: WordId for the known-word LM, CharId for the
// character spelling LM.
//
// Grounded on NPYLM/HPYLM.go's HPYLM/restaurant pair, generalised from a
// string-keyed trie to a generic Dish-keyed trie and renamed to the
// spec's calcSentence/removeCustomers/sampleParameters/trim contract.
type HPYLM[T comparable] struct {
	restaurants map[string]*Restaurant[T] // context key -> table set
	contexts    map[string]Context[T]     // context key -> the context itself, for iteration

	maxDepth int // N-1; contexts range over [0, maxDepth]
	theta    []float64
	d        []float64
	gammaA   []float64
	gammaB   []float64
	betaA    []float64
	betaB    []float64
	base     float64

	// basePositions records, for the most recent AddCustomers/CalcSentence
	// call with doAdd=true, which token indices recursed all the way to the
	// root and opened a new top-level table there. Empty otherwise (see
	// spec's note that doAdd=false must yield an empty basePositions).
	basePositions []int
}

// NewHPYLM returns an HPYLM of order maxDepth+1 with uniform initial
// hyperparameters at every level.
func NewHPYLM[T comparable](maxDepth int, initialTheta, initialD, gammaA, gammaB, betaA, betaB, base float64) *HPYLM[T] {
	if maxDepth < 0 {
		panic("pylm: maxDepth must be >= 0")
	}
	if initialD < 0.0 || initialD >= 1.0 {
		panic("pylm: initialD must be in [0,1)")
	}
	if initialTheta < 0.0 {
		panic("pylm: initialTheta must be >= 0")
	}
	h := &HPYLM[T]{
		restaurants: make(map[string]*Restaurant[T]),
		contexts:    make(map[string]Context[T]),
		maxDepth:    maxDepth,
		base:        base,
	}
	for i := 0; i <= maxDepth; i++ {
		h.theta = append(h.theta, initialTheta)
		h.d = append(h.d, initialD)
		h.gammaA = append(h.gammaA, gammaA)
		h.gammaB = append(h.gammaB, gammaB)
		h.betaA = append(h.betaA, betaA)
		h.betaB = append(h.betaB, betaB)
	}
	return h
}

func (h *HPYLM[T]) GetN() int                 { return h.maxDepth + 1 }
func (h *HPYLM[T]) GetStrength(i int) float64 { return h.theta[i] }
func (h *HPYLM[T]) GetDiscount(i int) float64 { return h.d[i] }
func (h *HPYLM[T]) Base() float64             { return h.base }

// GetVocabSize returns the number of distinct dishes with at least one
// customer seated anywhere (approximated via the root context, matching the
// teacher's use of restaurants[""] as the top-level word inventory).
func (h *HPYLM[T]) GetVocabSize() int {
	root, ok := h.restaurants[""]
	if !ok {
		return 0
	}
	return len(root.customerCount)
}

// Size returns the number of live contexts (restaurants) in the trie.
func (h *HPYLM[T]) Size() int { return len(h.restaurants) }

// Contexts returns every live context in the trie, for snapshot dumps and
// trim bookkeeping. Order is unspecified; callers that need a stable dump
// order must sort the result themselves.
func (h *HPYLM[T]) Contexts() []Context[T] {
	ctxs := make([]Context[T], 0, len(h.contexts))
	for _, u := range h.contexts {
		ctxs = append(ctxs, u)
	}
	return ctxs
}

// RestaurantAt returns the table set for context u, or nil if u is not a
// live context.
func (h *HPYLM[T]) RestaurantAt(u Context[T]) *Restaurant[T] {
	return h.restaurants[u.key()]
}

func (h *HPYLM[T]) truncate(u Context[T]) Context[T] {
	if len(u) > h.maxDepth {
		return u[len(u)-h.maxDepth:]
	}
	return u
}

// probAtEachDepth returns, for context u (already truncated) and dish w, the
// fully-smoothed probability at every depth from the deepest context down to
// the root, index i corresponding to a suffix of length i. base is the
// caller-supplied bottom of the recursion (CalcProb's base argument), not
// the HPYLM's constructor-fixed h.base: the word-level HPYLM is always
// constructed with base 0 and receives its real base per call (the
// character model's spelling probability).
func (h *HPYLM[T]) probAtEachDepth(w T, u Context[T], base float64) []float64 {
	bodies := make([]float64, len(u)+1)
	coeffs := make([]float64, len(u)+1)
	h.probRecursively(w, u, bodies, coeffs)

	probs := make([]float64, len(u)+1)
	p := base
	for i, body := range bodies {
		p = body + coeffs[i]*p
		probs[i] = p
	}
	return probs
}

func (h *HPYLM[T]) probRecursively(w T, u Context[T], bodies, coeffs []float64) {
	theta := h.theta[len(u)]
	d := h.d[len(u)]
	body, coeff := 0.0, 1.0
	if rst, ok := h.restaurants[u.key()]; ok {
		c := float64(rst.c(w))
		t := float64(rst.t(w))
		C := float64(rst.C())
		T := float64(rst.T())
		body = (c - d*t) / (theta + C)
		coeff = (theta + d*T) / (theta + C)
	}
	bodies[len(u)] = body
	coeffs[len(u)] = coeff
	if len(u) != 0 {
		h.probRecursively(w, u[1:], bodies, coeffs)
	}
}

// CalcProb returns the fully back-off-smoothed P(w|h) for a single token
// given a caller-supplied base probability (used by PylmFst arc weights,
// which need per-token queries outside a whole-sentence calcSentence call).
func (h *HPYLM[T]) CalcProb(w T, u Context[T], base float64) float64 {
	u = h.truncate(u)
	bodies := make([]float64, len(u)+1)
	coeffs := make([]float64, len(u)+1)
	h.probRecursively(w, u, bodies, coeffs)
	p := base
	for i, body := range bodies {
		p = body + coeffs[i]*p
	}
	return p
}

// CalcSentence computes P(words|baseProbs) token by token with the recursive
// HPYLM smoothing, optionally seating each token as a customer. When doAdd is
// true, h.basePositions is refreshed to hold the indices of tokens whose
// addition opened a brand new table at the root context (the positions the
// caller must also add to the base/character LM). When doAdd is false,
// basePositions is always cleared: the source only populates it as a
// side-effect of adding, never of a bare probability query.
func (h *HPYLM[T]) CalcSentence(words []T, baseProbs []LMProb, doAdd bool) LMProb {
	if len(words) != len(baseProbs) {
		panic("pylm: CalcSentence words/baseProbs length mismatch")
	}
	if doAdd {
		h.basePositions = h.basePositions[:0]
	} else {
		h.basePositions = nil
	}

	logProb := 0.0
	u := make(Context[T], 0, h.maxDepth)
	for i, w := range words {
		base := float64(baseProbs[i])
		uu := h.truncate(u)
		if doAdd {
			p, newAtRoot := h.addCustomerRecursively(w, uu, base)
			logProb += math.Log(p)
			if newAtRoot {
				h.basePositions = append(h.basePositions, i)
			}
		} else {
			p := h.CalcProb(w, uu, base)
			logProb += math.Log(p)
		}
		u = append(u, w)
	}
	return LMProb(logProb)
}

// BasePositions returns the positions recorded by the most recent
// CalcSentence(doAdd=true) call.
func (h *HPYLM[T]) BasePositions() []int { return h.basePositions }

// addCustomerRecursively seats w under context u (and, transitively, every
// shorter suffix of u whose table set gains a new table), returning the
// exact smoothed probability under which the seating decision was drawn and
// whether a new table was opened at the root (empty) context.
//
// Grounded on NPYLM/HPYLM.go's addCustomerRecursively, generalised to the
// Dish type and rewritten to report the exact P(w|h) alongside the seating
// side effect instead of returning it via a second, separate CalcProb call.
func (h *HPYLM[T]) addCustomerRecursively(w T, u Context[T], base float64) (prob float64, openedAtRoot bool) {
	probs := h.probAtEachDepth(w, u, base)
	p := probs[len(probs)-1]

	newAtRoot := h.seatRecursively(w, u, base)
	return p, newAtRoot
}

func (h *HPYLM[T]) seatRecursively(w T, u Context[T], base float64) (openedAtRoot bool) {
	theta := h.theta[len(u)]
	d := h.d[len(u)]
	key := u.key()
	rst, ok := h.restaurants[key]
	if !ok {
		rst = NewRestaurant[T]()
		h.restaurants[key] = rst
		h.contexts[key] = append(Context[T]{}, u...)
	}

	var parentProb float64
	if len(u) == 0 {
		parentProb = base
	} else {
		parentProb = h.CalcProb(w, u[1:], base)
	}
	smoothingCoefficient := (theta + d*float64(rst.T())) / (theta + float64(rst.C()))

	isNewTable := rst.Add(w, d, smoothingCoefficient, parentProb)
	if !isNewTable {
		return false
	}
	if len(u) == 0 {
		return true
	}
	return h.seatRecursively(w, u[1:], base)
}

// AddCustomer seats a single token w under (already truncated) context u,
// invoking addBaseFunc if the seating opened a brand new table at the root
// context: the hook the character spelling LM uses to seat a newly coined
// word's characters (see NPYLM.go's addCustomerBase).
func (h *HPYLM[T]) AddCustomer(w T, u Context[T], base float64, addBaseFunc func(T)) {
	u = h.truncate(u)
	newAtRoot := h.seatRecursively(w, u, base)
	if newAtRoot && addBaseFunc != nil {
		addBaseFunc(w)
	}
}

// RemoveCustomer is the exact inverse of AddCustomer for a single token.
func (h *HPYLM[T]) RemoveCustomer(w T, u Context[T], removeBaseFunc func(T)) {
	u = h.truncate(u)
	wasLastAtRoot := h.removeRecursivelyReporting(w, u)
	if wasLastAtRoot && removeBaseFunc != nil {
		removeBaseFunc(w)
	}
}

func (h *HPYLM[T]) removeRecursivelyReporting(w T, u Context[T]) (vacatedAtRoot bool) {
	key := u.key()
	rst, ok := h.restaurants[key]
	if !ok {
		errMsg := fmt.Sprintf("pylm: RemoveCustomer invariant violation: context %v never seated", []T(u))
		panic(errMsg)
	}
	wasLastOfTable := rst.Remove(w)
	empty := rst.empty()
	if empty {
		delete(h.restaurants, key)
		delete(h.contexts, key)
	}
	if !wasLastOfTable {
		return false
	}
	if len(u) == 0 {
		return true
	}
	return h.removeRecursivelyReporting(w, u[1:])
}

// RemoveCustomers un-seats every token of words, in order, from the contexts
// they were seated in during the corresponding CalcSentence(doAdd=true). This
// is the exact inverse: calling it after that call restores every restaurant
// to its prior counts. basePositions is refreshed to hold the indices whose
// removal vacated a table at the root context, the mirror image of
// CalcSentence's newAtRoot bookkeeping, so a caller can un-seat those
// positions' base-measure customers (e.g. a word's characters) too.
func (h *HPYLM[T]) RemoveCustomers(words []T) {
	h.basePositions = h.basePositions[:0]
	u := make(Context[T], 0, h.maxDepth)
	for i, w := range words {
		uu := h.truncate(u)
		if h.removeRecursivelyReporting(w, uu) {
			h.basePositions = append(h.basePositions, i)
		}
		u = append(u, w)
	}
}

// SampleParameters resamples theta_i, d_i per level via the standard HPYLM
// auxiliary-variable posterior (beta/bernoulli/gamma augmentation).
//
// Grounded on NPYLM/HPYLM.go's estimateHyperPrameters, unchanged in the
// sampling scheme, ported from map[string]*restaurant to the generic trie.
func (h *HPYLM[T]) SampleParameters() {
	byDepth := make([][]string, h.maxDepth+1)
	for key, u := range h.contexts {
		byDepth[len(u)] = append(byDepth[len(u)], key)
	}
	if root, ok := h.restaurants[""]; ok && !root.empty() {
		found := false
		for _, k := range byDepth[0] {
			if k == "" {
				found = true
			}
		}
		if !found {
			byDepth[0] = append(byDepth[0], "")
		}
	}

	for n := 0; n <= h.maxDepth; n++ {
		aForTheta := h.gammaA[n]
		bForTheta := h.gammaB[n]
		aForD := h.betaA[n]
		bForD := h.betaB[n]

		for _, key := range byDepth[n] {
			rst := h.restaurants[key]
			totalTables := int(rst.T())
			if totalTables < 2 {
				continue
			}
			thetaTmp := h.theta[n]
			dTmp := h.d[n]

			betaDist := distuv.Beta{Alpha: thetaTmp + 1.0, Beta: float64(rst.C()) - 1.0}
			xu := betaDist.Rand()
			for t := 1; t < totalTables; t++ {
				bern := distuv.Bernoulli{P: thetaTmp / (thetaTmp + dTmp*float64(t))}
				y := bern.Rand()
				aForTheta += y
				bForTheta -= math.Log(xu)
				aForD += 1.0 - y
			}

			for _, w := range rst.Dishes() {
				for _, size := range rst.TableSizes(w) {
					for j := 1; j < int(size); j++ {
						bern := distuv.Bernoulli{P: (float64(j) - 1.0) / (float64(j) - dTmp)}
						z := bern.Rand()
						bForD += 1.0 - z
					}
				}
			}
		}

		gammaDist := distuv.Gamma{Alpha: aForTheta, Beta: bForTheta}
		betaDist := distuv.Beta{Alpha: aForD, Beta: bForD}
		h.theta[n] = gammaDist.Rand()
		h.d[n] = betaDist.Rand()
		if h.theta[n] < 0.0 || h.d[n] < 0.0 || h.d[n] >= 1.0 {
			panic("pylm: hyperparameter resample produced an out-of-range value")
		}
	}
}

// Trim compacts the trie, dropping every dead (empty) context. If
// returnRemap is set, it additionally returns a remap for WordId-shaped
// dishes: position w holds either the dish's new dense id, or -1 if the dish
// has zero customers at the root context. Character HPYLMs never need a
// remap (the character alphabet is fixed), so callers pass returnRemap=false
// for those and ignore the nil result.
func (h *HPYLM[T]) Trim(vocabSize int, dishAt func(int) T, returnRemap bool) []int {
	for key, rst := range h.restaurants {
		if rst.empty() {
			delete(h.restaurants, key)
			delete(h.contexts, key)
		}
	}
	if !returnRemap {
		return nil
	}
	root := h.restaurants[""]
	remap := make([]int, vocabSize)
	next := 0
	for i := 0; i < vocabSize; i++ {
		w := dishAt(i)
		if root != nil && root.c(w) > 0 {
			remap[i] = next
			next++
		} else {
			remap[i] = -1
		}
	}
	return remap
}
