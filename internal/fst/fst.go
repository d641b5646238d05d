// Package fst implements the minimal slice of generic weighted
// finite-state-transducer machinery the sampler needs: states and arcs in the
// tropical/log semiring, shortest distance, beam pruning, and
// forward-filtering/backward-sampling of a single path.
//
// Spec §2 treats "the generic WFST library that supplies composition,
// pruning, arc-sort, and shortest-distance primitives" as an external,
// out-of-scope collaborator. No such library exists anywhere in the example
// pack (the only FST-adjacent example, kho-fslm, is an ARPA scoring library
// with no transducer-composition machinery), so this package plays that
// collaborator's role directly: it is deliberately kept to the small
// contract the sampler composes against, not a general-purpose toolkit.
package fst

import "math"

// Arc is a weighted transition in the tropical semiring: Weight is a
// -log-probability cost, lower is better.
type Arc struct {
	ILabel int32
	OLabel int32
	Weight float64
	To     int
}

// state is one node of a materialized Fst.
type state struct {
	arcs        []Arc
	final       bool
	finalWeight float64
}

// Fst is a concrete (materialized) weighted automaton. Composition in this
// package is performed by building one of these directly (see
// internal/sampler), rather than via lazy matcher composition: per spec's
// design notes, "Option (ii) [materialise per sample] is simpler" and is the
// option this module takes, since the per-utterance lattices involved are
// small.
type Fst struct {
	states []state
	start  int
}

// New returns an empty Fst with no states.
func New() *Fst {
	return &Fst{start: -1}
}

// AddState appends a new state with no arcs and returns its id.
func (f *Fst) AddState() int {
	f.states = append(f.states, state{})
	return len(f.states) - 1
}

// SetStart designates state s as the unique start state.
func (f *Fst) SetStart(s int) { f.start = s }

// Start returns the start state, or -1 if none has been set.
func (f *Fst) Start() int { return f.start }

// SetFinal marks state s as final with the given final weight.
func (f *Fst) SetFinal(s int, weight float64) {
	f.states[s].final = true
	f.states[s].finalWeight = weight
}

// AddArc appends an outgoing arc from state `from`.
func (f *Fst) AddArc(from int, a Arc) {
	f.states[from].arcs = append(f.states[from].arcs, a)
}

// NumStates returns the number of states in the Fst.
func (f *Fst) NumStates() int { return len(f.states) }

// Arcs returns the outgoing arcs of state s.
func (f *Fst) Arcs(s int) []Arc { return f.states[s].arcs }

// Final reports whether s is final, and its final weight if so.
func (f *Fst) Final(s int) (weight float64, ok bool) {
	st := f.states[s]
	return st.finalWeight, st.final
}

// logAdd computes -log(exp(-a)+exp(-b)) for costs a, b that are
// -log-probabilities: the log-semiring circled-plus of two costs.
func logAdd(a, b float64) float64 {
	if math.IsInf(a, 1) {
		return b
	}
	if math.IsInf(b, 1) {
		return a
	}
	m := math.Min(a, b)
	return m - math.Log(math.Exp(-(a-m))+math.Exp(-(b-m)))
}
