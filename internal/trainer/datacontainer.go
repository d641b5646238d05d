// Package trainer orchestrates the epoch loop, input loading, and snapshot
// emission around a Sampler (spec §4.6).
package trainer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/recruit474/latticelm/internal/fst"
	"github.com/recruit474/latticelm/internal/lexicon"
	"github.com/recruit474/latticelm/internal/pylm"
)

// InputMode selects how DataContainer interprets its input files.
type InputMode int

const (
	// InputText reads whitespace-separated symbol lines (original's loadText).
	InputText InputMode = iota
	// InputFst reads AT&T-style text FSTs, one per input file (see DESIGN.md
	// for why this replaces the original's OpenFst binary format: no OpenFst
	// Go binding exists anywhere in the example pack).
	InputFst
)

// DataContainer owns the input sequences a Trainer iterates over: either
// cached linear character-chain Fsts built from text, or lattices loaded
// from disk. Grounded on bayselm/DataContainer.go's file-scanning
// constructor, generalised from string word sequences to character-chain
// Fsts per original_source/latticelm.h's loadText/createInputFst.
type DataContainer struct {
	Lex *lexicon.LexFst

	mode       InputMode
	files      []string
	cacheInput bool
	cached     []*fst.Fst // populated up front, at construction, when cacheInput is set
	amScale    float64

	Size int
}

// NewTextDataContainer scans every file in files, splitting each
// whitespace-separated line into a character chain over lex's symbol table,
// bootstrapped via findID exactly like the original's loadText. An empty
// line is a fatal configuration error (spec §7(c)).
func NewTextDataContainer(files []string, separator string) *DataContainer {
	lex := lexicon.New(separator)
	idHash := make(map[string]pylm.CharId)
	var idList []string
	findID := func(s string) pylm.CharId {
		if id, ok := idHash[s]; ok {
			return id
		}
		id := pylm.CharId(len(idList))
		idHash[s] = id
		idList = append(idList, "x"+s)
		return id
	}
	findID("<eps>")
	findID("<phi>")
	idList = append(idList, "x<unk>", "x</unk>")

	dc := &DataContainer{Lex: lex, mode: InputText, files: files, cacheInput: true}

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			panic(fmt.Sprintf("trainer: cannot open input file %q: %v", path, err))
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := sc.Text()
			fields := strings.Fields(line)
			if len(fields) == 0 {
				panic(fmt.Sprintf("trainer: empty line found in %q\nplease ensure every line contains at least one symbol", path))
			}
			chain := fst.New()
			s0 := chain.AddState()
			chain.SetStart(s0)
			prev := s0
			for _, tok := range fields {
				id := findID(tok)
				next := chain.AddState()
				chain.AddArc(prev, fst.Arc{ILabel: int32(id), OLabel: int32(id), Weight: 0, To: next})
				prev = next
			}
			chain.SetFinal(prev, 0)
			dc.cached = append(dc.cached, chain)
			dc.Size++
		}
		if err := sc.Err(); err != nil {
			panic(fmt.Sprintf("trainer: error reading input file %q: %v", path, err))
		}
		f.Close()
	}
	lex.SetPermSymbols(idList)
	return dc
}

// NewFstDataContainer points at lattice files to be loaded per iteration (or
// cached, if cacheInput is set), with symbols supplied by symbolFile, a
// mandatory external symbol table in FST mode (spec §6).
func NewFstDataContainer(files []string, symbolFile, separator string, cacheInput bool, amScale float64) *DataContainer {
	lex := lexicon.New(separator)
	if err := lex.Load(symbolFile); err != nil {
		panic(err.Error())
	}
	dc := &DataContainer{Lex: lex, mode: InputFst, files: files, cacheInput: cacheInput, amScale: amScale, Size: len(files)}
	if cacheInput {
		dc.cached = make([]*fst.Fst, len(files))
		for i, path := range files {
			dc.cached[i] = dc.loadAndScale(path)
		}
	}
	return dc
}

// Input returns the (possibly acoustic-scaled) input Fst for sequence i,
// loading it from disk on every call when the container is not caching.
func (dc *DataContainer) Input(i int) *fst.Fst {
	if dc.cacheInput {
		return dc.cached[i]
	}
	return dc.loadAndScale(dc.files[i])
}

func (dc *DataContainer) loadAndScale(path string) *fst.Fst {
	f, err := loadAttFst(path)
	if err != nil {
		panic(fmt.Sprintf("trainer: cannot load input FST %q: %v", path, err))
	}
	return fst.ScaleMapper(f, dc.amScale)
}

// loadAttFst reads a plain AT&T-style text FST (one "src dst ilabel olabel
// weight" line per arc, one "state [weight]" line per final state; the
// start state is the source of the first line). This is the idiomatic Go
// substitute for the original's OpenFst binary tropical-semiring format: no
// OpenFst Go binding exists anywhere in the retrieved example pack (see
// DESIGN.md).
func loadAttFst(path string) (*fst.Fst, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := fst.New()
	ensure := func(ids map[int]int, s int) int {
		if id, ok := ids[s]; ok {
			return id
		}
		id := out.AddState()
		ids[s] = id
		return id
	}
	ids := make(map[int]int)
	startSet := false

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		src, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed AT&T FST line %q: %w", line, err)
		}
		from := ensure(ids, src)
		if !startSet {
			out.SetStart(from)
			startSet = true
		}
		switch len(fields) {
		case 4, 5:
			dst, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("malformed AT&T FST line %q: %w", line, err)
			}
			il, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("malformed AT&T FST line %q: %w", line, err)
			}
			ol, err := strconv.Atoi(fields[3])
			if err != nil {
				return nil, fmt.Errorf("malformed AT&T FST line %q: %w", line, err)
			}
			weight := 0.0
			if len(fields) == 5 {
				weight, err = strconv.ParseFloat(fields[4], 64)
				if err != nil {
					return nil, fmt.Errorf("malformed AT&T FST line %q: %w", line, err)
				}
			}
			to := ensure(ids, dst)
			out.AddArc(from, fst.Arc{ILabel: int32(il), OLabel: int32(ol), Weight: weight, To: to})
		case 1, 2:
			weight := 0.0
			if len(fields) == 2 {
				weight, err = strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, fmt.Errorf("malformed AT&T FST final-state line %q: %w", line, err)
				}
			}
			out.SetFinal(from, weight)
		default:
			return nil, fmt.Errorf("malformed AT&T FST line %q", line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
