package pylm

import "testing"

func TestHPYLMAddRemoveRoundtrip(t *testing.T) {
	base := 1.0 / 10.0
	theta := 1.0
	d := 0.1
	epoch := 1000
	hpylm := NewHPYLM[string](2, theta, d, 1.0, 1.0, 1.0, 1.0, base)

	word := "abc"
	u := Context[string]{"fgh", "de"}

	pAddZero := hpylm.CalcProb(word, u, base)
	if pAddZero != base {
		t.Errorf("pAddZero = %v, want base %v", pAddZero, base)
	}

	body := (1.0 - d*1.0) / (theta + 1.0)
	smoothing := (theta + d*1.0) / (theta + 1.0)
	pCorrect := body + smoothing*(body+smoothing*(body+smoothing*base))

	hpylm.AddCustomer(word, u, base, nil)
	pAddOne := hpylm.CalcProb(word, u, base)
	if pAddOne != pCorrect {
		t.Errorf("pAddOne = %v, want %v", pAddOne, pCorrect)
	}
	if pAddOne < pAddZero {
		t.Errorf("pAddOne = %v should be >= pAddZero = %v", pAddOne, pAddZero)
	}

	for i := 0; i < epoch; i++ {
		hpylm.AddCustomer(word, u, base, nil)
	}
	pAddMany := hpylm.CalcProb(word, u, base)
	if pAddMany < pAddOne {
		t.Errorf("pAddMany = %v should be >= pAddOne = %v", pAddMany, pAddOne)
	}

	for i := 0; i < epoch; i++ {
		hpylm.RemoveCustomer(word, u, nil)
	}
	pRemoveMany := hpylm.CalcProb(word, u, base)
	if pRemoveMany != pAddOne {
		t.Errorf("pRemoveMany = %v, want %v", pRemoveMany, pAddOne)
	}

	hpylm.RemoveCustomer(word, u, nil)
	pRemoveOne := hpylm.CalcProb(word, u, base)
	if pRemoveOne != pAddZero {
		t.Errorf("pRemoveOne = %v, want %v", pRemoveOne, pAddZero)
	}

	if len(hpylm.restaurants) != 0 {
		t.Errorf("expected all restaurants to be reclaimed, got %v", hpylm.restaurants)
	}
}

func TestHPYLMCalcSentenceRoundtrip(t *testing.T) {
	hpylm := NewHPYLM[string](1, 1.0, 0.1, 1.0, 1.0, 1.0, 1.0, 0.1)
	words := []string{"a", "b", "a", "c"}
	bases := []LMProb{0.1, 0.1, 0.1, 0.1}

	before := snapshotCounts(hpylm)
	hpylm.CalcSentence(words, bases, true)
	if len(hpylm.restaurants) == 0 {
		t.Fatal("expected customers to be seated")
	}
	hpylm.RemoveCustomers(words)
	after := snapshotCounts(hpylm)
	if before != after {
		t.Errorf("add-then-remove changed restaurant count: before=%d after=%d", before, after)
	}
}

func TestHPYLMCalcSentenceNoAddClearsBasePositions(t *testing.T) {
	hpylm := NewHPYLM[string](1, 1.0, 0.1, 1.0, 1.0, 1.0, 1.0, 0.1)
	hpylm.CalcSentence([]string{"a"}, []LMProb{0.1}, true)
	if len(hpylm.BasePositions()) == 0 {
		t.Fatal("expected a base position from the first, doAdd=true, call")
	}
	hpylm.CalcSentence([]string{"a"}, []LMProb{0.1}, false)
	if len(hpylm.BasePositions()) != 0 {
		t.Errorf("doAdd=false must yield an empty basePositions, got %v", hpylm.BasePositions())
	}
}

func TestHPYLMRemoveNeverSeatedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic removing a customer that was never seated")
		}
	}()
	hpylm := NewHPYLM[string](1, 1.0, 0.1, 1.0, 1.0, 1.0, 1.0, 0.1)
	hpylm.RemoveCustomers([]string{"never-added"})
}

func snapshotCounts(h *HPYLM[string]) int {
	total := 0
	for _, rst := range h.restaurants {
		total += int(rst.C())
	}
	return total
}
