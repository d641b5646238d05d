package fst

import (
	"math"
	"math/rand"
)

// topoOrder returns the states of f in a topological order (start first).
// The Fsts the sampler builds are acyclic by construction (states are
// product positions that strictly advance through the input), so a single
// Kahn's-algorithm pass suffices. Cyclic input is not detected: states on a
// cycle, and states reachable only through one, are left out of the order.
func topoOrder(f *Fst) []int {
	n := f.NumStates()
	indeg := make([]int, n)
	for s := 0; s < n; s++ {
		for _, a := range f.Arcs(s) {
			indeg[a.To]++
		}
	}
	queue := make([]int, 0, n)
	if f.Start() >= 0 {
		queue = append(queue, f.Start())
	}
	for s := 0; s < n; s++ {
		if s != f.Start() && indeg[s] == 0 {
			queue = append(queue, s)
		}
	}
	order := make([]int, 0, n)
	visited := make([]bool, n)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if visited[s] {
			continue
		}
		visited[s] = true
		order = append(order, s)
		for _, a := range f.Arcs(s) {
			indeg[a.To]--
			if indeg[a.To] == 0 {
				queue = append(queue, a.To)
			}
		}
	}
	return order
}

// ShortestDistanceTropical returns, for every state, the minimum cost
// (min-plus / Viterbi shortest distance) from the start state. Unreached
// states get +Inf.
func ShortestDistanceTropical(f *Fst) []float64 {
	dist := make([]float64, f.NumStates())
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	if f.Start() < 0 {
		return dist
	}
	dist[f.Start()] = 0
	for _, s := range topoOrder(f) {
		if math.IsInf(dist[s], 1) {
			continue
		}
		for _, a := range f.Arcs(s) {
			cand := dist[s] + a.Weight
			if cand < dist[a.To] {
				dist[a.To] = cand
			}
		}
	}
	return dist
}

// ShortestDistanceLog returns, for every state, the log-semiring shortest
// distance from the start state: -log(sum over all paths to that state of
// exp(-cost)). This is the forward-filtering pass of spec §4.5 step 4.
func ShortestDistanceLog(f *Fst) []float64 {
	dist := make([]float64, f.NumStates())
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	if f.Start() < 0 {
		return dist
	}
	dist[f.Start()] = 0
	for _, s := range topoOrder(f) {
		if math.IsInf(dist[s], 1) {
			continue
		}
		for _, a := range f.Arcs(s) {
			cand := dist[s] + a.Weight
			dist[a.To] = logAdd(dist[a.To], cand)
		}
	}
	return dist
}

// bestPathCost returns the minimum total cost (start to some final state,
// including its final weight) in f, or +Inf if f accepts nothing.
func bestPathCost(f *Fst) float64 {
	dist := ShortestDistanceTropical(f)
	best := math.Inf(1)
	for s := 0; s < f.NumStates(); s++ {
		if w, ok := f.Final(s); ok {
			cand := dist[s] + w
			if cand < best {
				best = cand
			}
		}
	}
	return best
}

// Prune returns a copy of f retaining only arcs and states that lie on some
// path whose total cost is within beam of the best path. Pruning removes
// arcs only: every sampled path in the pruned Fst remains feasible (and has
// the same cost) in the unpruned Fst (spec §8 invariant 6).
func Prune(f *Fst, beam float64) *Fst {
	fwd := ShortestDistanceTropical(f)
	rev := shortestDistanceFromFinal(f)
	best := bestPathCost(f)
	if math.IsInf(best, 1) {
		return New()
	}

	keep := make([]bool, f.NumStates())
	pruned := New()
	idMap := make([]int, f.NumStates())
	for i := range idMap {
		idMap[i] = -1
	}
	ensure := func(s int) int {
		if idMap[s] == -1 {
			idMap[s] = pruned.AddState()
		}
		return idMap[s]
	}
	for s := 0; s < f.NumStates(); s++ {
		if math.IsInf(fwd[s], 1) || math.IsInf(rev[s], 1) {
			continue
		}
		for _, a := range f.Arcs(s) {
			total := fwd[s] + a.Weight + rev[a.To]
			if total <= best+beam {
				keep[s] = true
				keep[a.To] = true
				from := ensure(s)
				to := ensure(a.To)
				pruned.AddArc(from, Arc{ILabel: a.ILabel, OLabel: a.OLabel, Weight: a.Weight, To: to})
			}
		}
	}
	if f.Start() >= 0 && keep[f.Start()] {
		pruned.SetStart(ensure(f.Start()))
	}
	for s := 0; s < f.NumStates(); s++ {
		if w, ok := f.Final(s); ok && keep[s] {
			pruned.SetFinal(ensure(s), w)
		}
	}
	return pruned
}

// shortestDistanceFromFinal returns, per state, the min cost from that state
// to some final state (the backward Viterbi pass), used only by Prune.
func shortestDistanceFromFinal(f *Fst) []float64 {
	dist := make([]float64, f.NumStates())
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	for s := 0; s < f.NumStates(); s++ {
		if w, ok := f.Final(s); ok {
			dist[s] = w
		}
	}
	order := topoOrder(f)
	for i := len(order) - 1; i >= 0; i-- {
		s := order[i]
		for _, a := range f.Arcs(s) {
			cand := a.Weight + dist[a.To]
			if cand < dist[s] {
				dist[s] = cand
			}
		}
	}
	return dist
}

// Path is a single linear sequence of arcs from start to a final state.
type Path []Arc

// SampleBackward performs the forward-filter/backward-sample draw of spec
// §4.5 step 4: forward weights are the log-semiring shortest distances
// already computed (alpha); a final state is drawn proportional to
// alpha(q)*rho(q); the walk then proceeds backward, at each state choosing a
// predecessor arc with probability proportional to alpha(prev)*weight(a).
// Every one of these draws raises its terms to the annealing exponent invTau:
// 1 is unbiased Gibbs, values below 1 flatten the distribution (0 is
// uniform), values above 1 sharpen it.
func SampleBackward(f *Fst, alpha []float64, invTau float64) Path {
	n := f.NumStates()
	if n == 0 {
		return nil
	}

	finals := make([]int, 0)
	finalWeights := make([]float64, 0)
	for s := 0; s < n; s++ {
		if w, ok := f.Final(s); ok && !math.IsInf(alpha[s], 1) {
			finals = append(finals, s)
			finalWeights = append(finalWeights, alpha[s]+w)
		}
	}
	if len(finals) == 0 {
		return nil
	}
	cur := finals[weightedChoice(finalWeights, invTau)]

	// incoming[s] = arcs (from, arc) entering s, built once up front.
	incoming := make(map[int][]struct {
		from int
		arc  Arc
	})
	for s := 0; s < n; s++ {
		for _, a := range f.Arcs(s) {
			incoming[a.To] = append(incoming[a.To], struct {
				from int
				arc  Arc
			}{s, a})
		}
	}

	var reversePath Path
	for cur != f.Start() {
		preds := incoming[cur]
		if len(preds) == 0 {
			// Should not happen on a connected pruned Fst; treat as
			// exhausted to avoid an infinite loop rather than panicking
			// deep inside sampling.
			break
		}
		costs := make([]float64, len(preds))
		for i, p := range preds {
			costs[i] = alpha[p.from] + p.arc.Weight
		}
		idx := weightedChoice(costs, invTau)
		chosen := preds[idx]
		reversePath = append(reversePath, chosen.arc)
		cur = chosen.from
	}

	path := make(Path, len(reversePath))
	for i, a := range reversePath {
		path[len(reversePath)-1-i] = a
	}
	return path
}

// weightedChoice draws an index from a list of -log-probability costs,
// raising each term's probability to the 1/tau (invTau = 1/tau) annealing
// exponent before sampling.
func weightedChoice(costs []float64, invTau float64) int {
	logWeights := make([]float64, len(costs))
	maxLog := math.Inf(-1)
	for i, c := range costs {
		logWeights[i] = -c * invTau
		if logWeights[i] > maxLog {
			maxLog = logWeights[i]
		}
	}
	sum := 0.0
	probs := make([]float64, len(costs))
	for i, lw := range logWeights {
		probs[i] = math.Exp(lw - maxLog)
		sum += probs[i]
	}
	r := rand.Float64() * sum
	acc := 0.0
	for i, p := range probs {
		acc += p
		if acc > r {
			return i
		}
	}
	return len(probs) - 1
}
