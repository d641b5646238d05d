package fst

import (
	"math"
	"testing"
)

func linearChain(weights []float64) *Fst {
	f := New()
	s0 := f.AddState()
	f.SetStart(s0)
	prev := s0
	for _, w := range weights {
		next := f.AddState()
		f.AddArc(prev, Arc{ILabel: 1, OLabel: 1, Weight: w, To: next})
		prev = next
	}
	f.SetFinal(prev, 0)
	return f
}

func TestShortestDistanceTropicalLinearChain(t *testing.T) {
	f := linearChain([]float64{1.0, 2.0, 0.5})
	dist := ShortestDistanceTropical(f)
	want := []float64{0, 1.0, 3.0, 3.5}
	for i, w := range want {
		if math.Abs(dist[i]-w) > 1e-9 {
			t.Errorf("dist[%d] = %v, want %v", i, dist[i], w)
		}
	}
}

func TestShortestDistanceLogDiamond(t *testing.T) {
	f := New()
	s0 := f.AddState()
	s1 := f.AddState()
	s2 := f.AddState()
	f.SetStart(s0)
	f.AddArc(s0, Arc{Weight: 1.0, To: s1})
	f.AddArc(s0, Arc{Weight: 2.0, To: s1})
	f.AddArc(s1, Arc{Weight: 0.0, To: s2})
	f.SetFinal(s2, 0)

	dist := ShortestDistanceLog(f)
	want := -math.Log(math.Exp(-1.0) + math.Exp(-2.0))
	if math.Abs(dist[s1]-want) > 1e-9 {
		t.Errorf("dist[s1] = %v, want %v", dist[s1], want)
	}
}

func TestPruneKeepsOnlyNearBestPaths(t *testing.T) {
	f := New()
	s0 := f.AddState()
	s1 := f.AddState()
	s2 := f.AddState()
	f.SetStart(s0)
	f.AddArc(s0, Arc{Weight: 0.0, To: s1}) // cheap path
	f.AddArc(s0, Arc{Weight: 100.0, To: s2}) // far worse path
	f.SetFinal(s1, 0)
	f.SetFinal(s2, 0)

	pruned := Prune(f, 1.0)
	if pruned.NumStates() != 2 {
		t.Fatalf("expected the expensive branch to be pruned, got %d states", pruned.NumStates())
	}
}

func TestSampleBackwardAlwaysReturnsFeasiblePath(t *testing.T) {
	f := linearChain([]float64{0.1, 0.2, 0.3})
	alpha := ShortestDistanceLog(f)
	path := SampleBackward(f, alpha, 1.0)
	if len(path) != 3 {
		t.Fatalf("expected a 3-arc path through the linear chain, got %d arcs", len(path))
	}
}
