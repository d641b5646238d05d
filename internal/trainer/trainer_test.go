package trainer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestNewTextDataContainerBuildsOneChainPerLine(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "in.txt", "a b c\nb c a\n")

	dc := NewTextDataContainer([]string{path}, "")
	if dc.Size != 2 {
		t.Fatalf("Size = %d, want 2", dc.Size)
	}
	// <unk>, </unk>, a, b, c = 5 character symbols (<eps> and <phi> are not counted).
	if dc.Lex.GetNumChars() != 5 {
		t.Fatalf("GetNumChars() = %d, want 5", dc.Lex.GetNumChars())
	}

	f := dc.Input(0)
	if f.Start() != 0 {
		t.Fatalf("Input(0).Start() = %d, want 0", f.Start())
	}
	if len(f.Arcs(0)) != 1 {
		t.Fatalf("expected exactly one outgoing arc from the start state, got %d", len(f.Arcs(0)))
	}
}

func TestNewTextDataContainerPanicsOnEmptyLine(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "in.txt", "a b c\n\n")

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic on an empty line")
		}
	}()
	NewTextDataContainer([]string{path}, "")
}

func TestLoadAttFstParsesArcsAndFinalWeight(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "lattice.fst", strings.Join([]string{
		"0 1 4 4 0.5",
		"1 2 5 5",
		"2 1.0",
	}, "\n")+"\n")

	f, err := loadAttFst(path)
	if err != nil {
		t.Fatalf("loadAttFst: %v", err)
	}
	if f.NumStates() != 3 {
		t.Fatalf("NumStates() = %d, want 3", f.NumStates())
	}
	if w, ok := f.Final(2); !ok || w != 1.0 {
		t.Fatalf("Final(2) = (%v, %v), want (1.0, true)", w, ok)
	}
	arcs := f.Arcs(0)
	if len(arcs) != 1 || arcs[0].Weight != 0.5 || arcs[0].To != 1 {
		t.Fatalf("unexpected arcs out of state 0: %+v", arcs)
	}
}

// trainerForTest builds a Trainer over a tiny text corpus, small enough that
// a handful of iterations runs in well under a second.
func trainerForTest(t *testing.T, prefix string) *Trainer {
	t.Helper()
	dir := t.TempDir()
	path := writeTempFile(t, dir, "in.txt", "a b c\nb c a\na a b\n")
	dc := NewTextDataContainer([]string{path}, "")

	tr := New(dc, Config{
		NumBurnIn:         0,
		NumAnnealSteps:    2,
		AnnealStepLength:  1,
		NumSamples:        2,
		SampleRate:        1,
		TrimRate:          1,
		PruneThreshold:    0,
		KnownN:            2,
		UnkN:              2,
		MaxUnknownWordLen: 4,
		Prefix:            prefix,
	})
	return tr
}

func TestTrainRunsAndEmitsSnapshotsEveryIterationFromBurnIn(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "out.")
	tr := trainerForTest(t, prefix)
	tr.Train()

	for _, iter := range []int{0, 1, 2} {
		for _, kind := range []string{"samp", "sym", "wlm", "ulm"} {
			path := suffixed(prefix+kind, iter)
			if _, err := os.Stat(path); err != nil {
				t.Errorf("expected snapshot file %s to exist: %v", path, err)
			}
		}
	}
}

func TestTrainPreservesTotalCharacterCountAcrossResampling(t *testing.T) {
	dir := t.TempDir()
	tr := trainerForTest(t, filepath.Join(dir, "out."))
	tr.Train()

	for i, words := range tr.histories {
		total := 0
		for _, w := range words {
			total += len(tr.dc.Lex.GetWords()[w])
		}
		if total != 3 {
			t.Errorf("sequence %d: sampled segmentation covers %d characters, want 3", i, total)
		}
	}
}

func TestCalculateWordBasesSkipsBosAndCoversEveryWord(t *testing.T) {
	dir := t.TempDir()
	tr := trainerForTest(t, filepath.Join(dir, "out."))
	tr.known.AddCustomer(5, nil, 0, nil)

	bases := tr.calculateWordBases()
	if len(bases) != len(tr.dc.Lex.GetWords()) {
		t.Fatalf("len(bases) = %d, want %d", len(bases), len(tr.dc.Lex.GetWords()))
	}
	for i, b := range bases {
		if i == 0 {
			continue // BosWordID has no spelling
		}
		if b < 0 || b > 1 {
			t.Errorf("bases[%d] = %v, want a probability in [0,1]", i, b)
		}
	}
}
