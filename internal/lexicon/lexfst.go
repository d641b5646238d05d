// Package lexicon implements LexFst, the growing transducer mapping
// character-id sequences to word ids (spec §4.3).
package lexicon

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/recruit474/latticelm/internal/pylm"
)

// Reserved character-space ids, matching the symbol table bootstrap of the
// original source (original_source/latticelm.h's loadText: "<eps>" and
// "<phi>" are found first, then "x<unk>"/"x</unk>" are pushed directly into
// the character id space before any real corpus character is discovered).
const (
	CharEps  pylm.CharId = 0
	CharPhi  pylm.CharId = 1
	CharUnk  pylm.CharId = 2
	CharUnkC pylm.CharId = 3 // </unk>
)

// BosWordID is the reserved WordId for the "<s>" sentence-start symbol
// (mirrors the original's trailing "w<s>" symbol-table entry).
const BosWordID = pylm.BosWordID

type trieNode struct {
	children map[pylm.CharId]*trieNode
	wordID   pylm.WordId
	isWord   bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[pylm.CharId]*trieNode)}
}

// LexFst maps CharId sequences to WordId and back. It grows monotonically as
// the sampler discovers new spellings during training.
//
// Grounded on the original source's LexFst<WordId,CharId> (via
// original_source/latticelm.h's addWord/parseSample/getWords call sites);
// the trie representation replaces the original's explicit WFST arc
// splicing since this module materializes composed Fsts per sample rather
// than maintaining a standing lexicon automaton (see internal/fst's package
// doc and DESIGN.md).
type LexFst struct {
	symbols     []string // id -> printable symbol (internal "x"/"w" prefix stripped)
	symbolIndex map[string]int32

	permSymbols []string // the character symbols as originally loaded, "x"-prefixed
	numChars    int      // U, including <unk>/</unk>

	words        [][]pylm.CharId // WordId -> char sequence; words[BosWordID] is nil
	wordIndex    map[string]pylm.WordId
	wordSymbolID []int32 // WordId -> its symbol table index
	symbolToWord map[int32]pylm.WordId

	root      *trieNode
	separator string
}

// New returns an empty LexFst.
func New(separator string) *LexFst {
	l := &LexFst{
		symbolIndex:  make(map[string]int32),
		wordIndex:    make(map[string]pylm.WordId),
		symbolToWord: make(map[int32]pylm.WordId),
		root:         newTrieNode(),
		separator:    separator,
	}
	l.words = append(l.words, nil) // BosWordID placeholder
	l.wordSymbolID = append(l.wordSymbolID, -1)
	return l
}

// SetPermSymbols initialises the character symbol table from a list already
// carrying the reserved "<eps>", "<phi>", "x<unk>", "x</unk>" prefix plus the
// discovered corpus characters, exactly as produced by the original source's
// loadText for text-mode input.
func (l *LexFst) SetPermSymbols(symbols []string) {
	l.permSymbols = symbols
	l.symbols = append([]string{}, symbols...)
	for i, s := range l.symbols {
		l.symbolIndex[s] = int32(i)
	}
	l.numChars = len(symbols) - 2 // minus <eps>,<phi>
	l.symbols = append(l.symbols, "w<s>")
	bosSym := int32(len(l.symbols) - 1)
	l.symbolIndex["w<s>"] = bosSym
	l.wordSymbolID[BosWordID] = bosSym
	l.symbolToWord[bosSym] = BosWordID
}

// Load reads a symbol file ("symbol\tid" per line, spec §6) for FST-mode
// input, where the symbol table is mandatory and externally supplied.
func (l *LexFst) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("lexicon: cannot open symbol file %q: %w", path, err)
	}
	defer f.Close()

	var symbols []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			return fmt.Errorf("lexicon: malformed symbol file line %q", line)
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("lexicon: malformed symbol id in line %q: %w", line, err)
		}
		for len(symbols) <= id {
			symbols = append(symbols, "")
		}
		symbols[id] = parts[0]
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("lexicon: error reading symbol file %q: %w", path, err)
	}
	l.SetPermSymbols(symbols)
	return nil
}

// GetNumChars returns U, the size of the character alphabet (including
// <unk>/</unk>).
func (l *LexFst) GetNumChars() int { return l.numChars }

// GetSeparator returns the string used to join characters when printing
// words.
func (l *LexFst) GetSeparator() string { return l.separator }

// GetPermSymbols returns the originally loaded character symbol list.
func (l *LexFst) GetPermSymbols() []string { return l.permSymbols }

// GetSymbols returns the full symbol table (characters then words).
func (l *LexFst) GetSymbols() []string { return l.symbols }

// GetWords returns the lexicon's word list, WordId-indexed.
func (l *LexFst) GetWords() [][]pylm.CharId { return l.words }

// SymbolID returns the symbol table index of a WordId, for labeling a
// composed Fst's word-ending arcs.
func (l *LexFst) SymbolID(id pylm.WordId) int32 { return l.wordSymbolID[id] }

func (l *LexFst) charString(c pylm.CharId) string {
	s := l.symbols[int(c)]
	return strings.TrimPrefix(s, "x")
}

func wordKey(chars []pylm.CharId) string {
	parts := make([]string, len(chars))
	for i, c := range chars {
		parts[i] = strconv.Itoa(int(c))
	}
	return strings.Join(parts, "\x1f")
}

// AddWord is idempotent: if chars is already present it returns the existing
// WordId without growing the lexicon. Otherwise it appends to words, extends
// the symbol table with "w"+join(chars,separator), and splices the trie so
// the character path accepts and emits the new WordId.
func (l *LexFst) AddWord(chars []pylm.CharId) pylm.WordId {
	key := wordKey(chars)
	if id, ok := l.wordIndex[key]; ok {
		return id
	}
	if len(chars) == 0 || len(chars) > pylm.MaxWordLen {
		panic(fmt.Sprintf("lexicon: word length %d out of range (1..%d)", len(chars), pylm.MaxWordLen))
	}

	id := pylm.WordId(len(l.words))
	l.words = append(l.words, append([]pylm.CharId{}, chars...))
	l.wordIndex[key] = id

	parts := make([]string, len(chars))
	for i, c := range chars {
		parts[i] = l.charString(c)
	}
	symbol := "w" + strings.Join(parts, l.separator)
	l.symbols = append(l.symbols, symbol)
	symID := int32(len(l.symbols) - 1)
	l.symbolIndex[symbol] = symID
	l.wordSymbolID = append(l.wordSymbolID, symID)
	l.symbolToWord[symID] = id

	node := l.root
	for _, c := range chars {
		child, ok := node.children[c]
		if !ok {
			child = newTrieNode()
			node.children[c] = child
		}
		node = child
	}
	node.isWord = true
	node.wordID = id
	return id
}

// LookupKnown walks chars from the trie root and reports the WordId if chars
// is an existing known word.
func (l *LexFst) LookupKnown(chars []pylm.CharId) (pylm.WordId, bool) {
	node := l.root
	for _, c := range chars {
		child, ok := node.children[c]
		if !ok {
			return 0, false
		}
		node = child
	}
	if node.isWord {
		return node.wordID, true
	}
	return 0, false
}

// TrieStep advances the known-word trie by one character from node (nil
// means "the root"); it returns the next node, whether that node completes a
// known word, and that word's id if so.
func (l *LexFst) TrieStep(node interface{}, c pylm.CharId) (next interface{}, wordID pylm.WordId, isWord bool, ok bool) {
	n, _ := node.(*trieNode)
	if n == nil {
		n = l.root
	}
	child, present := n.children[c]
	if !present {
		return nil, 0, false, false
	}
	return child, child.wordID, child.isWord, true
}

// SymbolForWord returns the printable word string (characters joined by
// separator) for a WordId, used when writing samples and LM dumps.
func (l *LexFst) SymbolForWord(id pylm.WordId) string {
	if id == BosWordID {
		return "<s>"
	}
	chars := l.words[id]
	parts := make([]string, len(chars))
	for i, c := range chars {
		parts[i] = l.charString(c)
	}
	return strings.Join(parts, l.separator)
}

// ParseSample walks a linear sequence of output symbols from a sampled path
// (CharId/WordId labels already resolved to their symbol ids, with <eps>
// skipped on both tapes by the caller) and returns the WordId sequence it
// encodes. A bracketed `<unk> c1 c2 ... </unk>` span is folded into a single
// AddWord call, matching latticelm.h's translation of spelled unknown words
// back into lexicon entries.
func (l *LexFst) ParseSample(outputs []int32) []pylm.WordId {
	unkCharSym := l.symbolIndex["x"+unkLiteral]
	unkCloseSym := l.symbolIndex["x"+unkCloseLiteral]

	var words []pylm.WordId
	i := 0
	for i < len(outputs) {
		sym := outputs[i]
		if sym == unkCharSym {
			i++
			var spelling []pylm.CharId
			for i < len(outputs) && outputs[i] != unkCloseSym {
				spelling = append(spelling, pylm.CharId(outputs[i]))
				i++
			}
			if i < len(outputs) {
				i++ // consume </unk>
			}
			words = append(words, l.AddWord(spelling))
			continue
		}
		if wid, ok := l.symbolToWord[sym]; ok {
			words = append(words, wid)
		}
		i++
	}
	return words
}

const unkLiteral = "<unk>"
const unkCloseLiteral = "</unk>"
