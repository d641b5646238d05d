package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/recruit474/latticelm/internal/trainer"
)

func main() {
	rand.Seed(time.Now().UnixNano())

	var (
		flagBurnIn      = flag.Int("burnin", 20, "number of iterations to execute as burn-in")
		flagAnnealSteps = flag.Int("annealsteps", 5, "number of annealing steps to perform")
		flagAnnealLen   = flag.Int("anneallength", 3, "length of each annealing step, in iterations")
		flagSamps       = flag.Int("samps", 100, "number of samples to take")
		flagSampRate    = flag.Int("samprate", 1, "frequency (in iterations) at which to take samples")
		flagTrimRate    = flag.Int("trimrate", 1, "frequency (in iterations) at which to trim unused vocabulary")
		flagKnownN      = flag.Int("knownn", 3, "n-gram length of the known-word language model")
		flagUnkN        = flag.Int("unkn", 3, "n-gram length of the spelling model")
		flagPrune       = flag.Float64("prune", 0, "beam for path pruning; 0 disables pruning")
		flagInput       = flag.String("input", "text", "type of input (text/fst)")
		flagFileList    = flag.String("filelist", "", "file containing input file paths, one per line")
		flagSymbolFile  = flag.String("symbolfile", "", "symbol file for the WFSTs; required for fst input")
		flagPrefix      = flag.String("prefix", "", "prefix under which to write all output (required)")
		flagSeparator   = flag.String("separator", "", "string inserted between characters when printing words")
		flagCacheInput  = flag.Bool("cacheinput", false, "for fst input, cache lattices in memory instead of reloading every iteration")
		flagAmScale     = flag.Float64("amscale", 0.2, "acoustic model weight scale applied to fst input arcs")
		flagMaxUnkLen   = flag.Int("maxunkwordlen", 20, "bound on an enumerated unknown-word span, in characters")
	)
	flag.Usage = usage
	flag.Parse()

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "latticelm: %v\n", r)
			os.Exit(1)
		}
	}()

	if *flagPrefix == "" {
		dieOnHelp("no output prefix was specified")
	}

	inputFiles := resolveInputFiles(*flagFileList, flag.Args())
	if len(inputFiles) == 0 {
		dieOnHelp("no input files specified")
	}

	var dc *trainer.DataContainer
	switch *flagInput {
	case "text":
		dc = trainer.NewTextDataContainer(inputFiles, *flagSeparator)
	case "fst":
		if *flagSymbolFile == "" {
			dieOnHelp("no symbol file was set")
		}
		dc = trainer.NewFstDataContainer(inputFiles, *flagSymbolFile, *flagSeparator, *flagCacheInput, *flagAmScale)
	default:
		dieOnHelp(fmt.Sprintf("bad input type %q", *flagInput))
	}

	fmt.Fprintf(os.Stderr, "Loaded %d symbols", dc.Lex.GetNumChars())
	if *flagSymbolFile != "" {
		fmt.Fprintf(os.Stderr, " from %s", *flagSymbolFile)
	}
	fmt.Fprintln(os.Stderr)

	tr := trainer.New(dc, trainer.Config{
		NumBurnIn:         *flagBurnIn,
		NumAnnealSteps:    *flagAnnealSteps,
		AnnealStepLength:  *flagAnnealLen,
		NumSamples:        *flagSamps,
		SampleRate:        *flagSampRate,
		TrimRate:          *flagTrimRate,
		PruneThreshold:    *flagPrune,
		KnownN:            *flagKnownN,
		UnkN:              *flagUnkN,
		MaxUnknownWordLen: *flagMaxUnkLen,
		Prefix:            *flagPrefix,
	})
	tr.Train()
}

// resolveInputFiles returns the -filelist contents (one path per line) if
// set, otherwise the positional arguments, checking every path exists
// upfront (spec §7(b): unreadable input surfaces before training begins).
func resolveInputFiles(fileList string, args []string) []string {
	var files []string
	if fileList != "" {
		f, err := os.Open(fileList)
		if err != nil {
			dieOnHelp(fmt.Sprintf("couldn't find the file list: %s", fileList))
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				files = append(files, line)
			}
		}
	} else {
		files = args
	}
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			dieOnHelp(fmt.Sprintf("couldn't find input file: %q", path))
		}
	}
	return files
}

func dieOnHelp(err string) {
	usage()
	if err != "" {
		fmt.Fprintf(os.Stderr, "\nError: %s\n", err)
	}
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "latticelm")
	fmt.Fprintln(os.Stderr, " A tool for learning a language model and a word dictionary")
	fmt.Fprintln(os.Stderr, " from lattices (or text) using Pitman-Yor language models and")
	fmt.Fprintln(os.Stderr, " weighted finite-state transducers.")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage: latticelm -prefix out/ input.txt")
	flag.PrintDefaults()
}
