package fst

// ScaleMapper multiplies every arc weight of a loaded input Fst by amScale,
// the acoustic weight scaling spec §3 assigns to an external collaborator
// (the "acoustic weight scaling mapper"). Grounded on the original source's
// WeightedMapper (original_source/latticelm.h's createInputFst, which calls
// `Map(*nextFst, ret, mapper)` with a WeightedMapper(amScale_)).
func ScaleMapper(f *Fst, amScale float64) *Fst {
	scaled := New()
	for s := 0; s < f.NumStates(); s++ {
		scaled.AddState()
	}
	scaled.SetStart(f.Start())
	for s := 0; s < f.NumStates(); s++ {
		for _, a := range f.Arcs(s) {
			scaled.AddArc(s, Arc{ILabel: a.ILabel, OLabel: a.OLabel, Weight: a.Weight * amScale, To: a.To})
		}
		if w, ok := f.Final(s); ok {
			scaled.SetFinal(s, w*amScale)
		}
	}
	return scaled
}
