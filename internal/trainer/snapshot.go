package trainer

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/recruit474/latticelm/internal/lexicon"
	"github.com/recruit474/latticelm/internal/pylm"
)

// suffixed appends ".iter" to fileName, matching the original's
// `oss << fileName << '.' << iter`.
func suffixed(fileName string, iter int) string {
	return fmt.Sprintf("%s.%d", fileName, iter)
}

// writeSymbols dumps the lexicon's full symbol table, "symbol\tid" per line
// (original writeSymbols).
func writeSymbols(lex *lexicon.LexFst, fileName string, iter int) error {
	path := suffixed(fileName, iter)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trainer: cannot write symbols to %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, s := range lex.GetSymbols() {
		fmt.Fprintf(w, "%s\t%d\n", s, i)
	}
	return w.Flush()
}

// writeWordLm dumps the known-word HPYLM as one line per context: the
// context's word symbols, then one "symbol:p:c:t" field per dish with at
// least one customer, p computed against wordBases (the character LM's
// current spelling probability for that word). Grounded on
// bayselm/struct_for_save_json.go's restaurantJSON/hPYLMJSON (context ->
// restaurant -> per-dish customer/table counts), adapted from JSON to the
// flat text format spec.md's `.wlm` artifact requires.
func writeWordLm(lm *pylm.HPYLM[pylm.WordId], lex *lexicon.LexFst, wordBases []pylm.LMProb, fileName string, iter int) error {
	symbolOf := func(w pylm.WordId) string {
		if w == lexicon.BosWordID {
			return "<s>"
		}
		return lex.SymbolForWord(w)
	}
	return writeLmDump(lm, symbolOf, func(w pylm.WordId) float64 {
		if int(w) < len(wordBases) {
			return float64(wordBases[w])
		}
		return 0
	}, fileName, iter)
}

// writeCharLm dumps the character HPYLM the same way, against a fixed
// uniform base (original's unkBases_, 1/U for every position).
func writeCharLm(lm *pylm.HPYLM[pylm.CharId], lex *lexicon.LexFst, charBase float64, fileName string, iter int) error {
	symbols := lex.GetSymbols()
	symbolOf := func(c pylm.CharId) string {
		s := symbols[int(c)]
		return strings.TrimPrefix(s, "x")
	}
	return writeLmDump(lm, symbolOf, func(pylm.CharId) float64 { return charBase }, fileName, iter)
}

func writeLmDump[T comparable](lm *pylm.HPYLM[T], symbolOf func(T) string, baseOf func(T) float64, fileName string, iter int) error {
	path := suffixed(fileName, iter)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trainer: cannot write LM to %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	contexts := lm.Contexts()
	sort.Slice(contexts, func(i, j int) bool {
		ci, cj := contexts[i], contexts[j]
		if len(ci) != len(cj) {
			return len(ci) < len(cj)
		}
		si, sj := contextLabel(ci, symbolOf), contextLabel(cj, symbolOf)
		return si < sj
	})

	for _, ctx := range contexts {
		rst := lm.RestaurantAt(ctx)
		if rst == nil {
			continue
		}
		dishes := rst.Dishes()
		sort.Slice(dishes, func(i, j int) bool { return symbolOf(dishes[i]) < symbolOf(dishes[j]) })

		fmt.Fprintf(w, "%s", contextLabel(ctx, symbolOf))
		for _, dish := range dishes {
			p := lm.CalcProb(dish, ctx, baseOf(dish))
			fmt.Fprintf(w, "\t%s:%g:%d:%d", symbolOf(dish), p, rst.CustomerCount(dish), rst.TableCount(dish))
		}
		fmt.Fprint(w, "\n")
	}
	return w.Flush()
}

func contextLabel[T comparable](u pylm.Context[T], symbolOf func(T) string) string {
	if len(u) == 0 {
		return "<root>"
	}
	parts := make([]string, len(u))
	for i, w := range u {
		parts[i] = symbolOf(w)
	}
	return strings.Join(parts, " ")
}

// writeSamples dumps the current segmentation of every sequence, one line
// per sequence, space-separated word strings (original writeSamples;
// symbols[w].substr(1) strips the "w"/"x" type prefix, matching
// LexFst.SymbolForWord).
func writeSamples(lex *lexicon.LexFst, histories [][]pylm.WordId, fileName string, iter int) error {
	path := suffixed(fileName, iter)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trainer: cannot write samples to %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, words := range histories {
		parts := make([]string, len(words))
		for i, wid := range words {
			parts[i] = lex.SymbolForWord(wid)
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
	}
	return w.Flush()
}
