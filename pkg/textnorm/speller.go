package textnorm

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/sajari/fuzzy"
)

// minTrainedCount keeps every entry above the model's known-word threshold.
const minTrainedCount = 2

//go:embed dictionary/en_frequency.txt
var embeddedDictionary string

var (
	defaultSpellerOnce sync.Once
	defaultSpeller     *FuzzySpeller
)

// WordCount is one dictionary entry with its corpus frequency.
type WordCount struct {
	Word  string
	Count int
}

// FuzzySpeller is a SpellCorrector backed by a sajari/fuzzy frequency model.
// The model guards itself with a lock, so one speller can serve concurrent evaluations.
type FuzzySpeller struct {
	model *fuzzy.Model
	known map[string]struct{}
}

// NewFuzzySpeller builds a model from frequency entries. Words are lower-cased and
// repeated entries add up.
func NewFuzzySpeller(entries []WordCount) *FuzzySpeller {
	model := fuzzy.NewModel()
	model.SetThreshold(1)
	model.SetDepth(2)
	model.SetUseAutocomplete(false)

	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		w := strings.ToLower(strings.TrimSpace(e.Word))
		if w == "" {
			continue
		}
		n := e.Count
		if n <= 0 {
			n = 1
		}
		counts[w] += n
	}

	known := make(map[string]struct{}, len(counts))
	for w, n := range counts {
		if n < minTrainedCount {
			n = minTrainedCount
		}
		model.SetCount(w, n, true)
		known[w] = struct{}{}
	}

	return &FuzzySpeller{model: model, known: known}
}

// DefaultSpeller returns a shared speller over the embedded English frequency list.
func DefaultSpeller() *FuzzySpeller {
	defaultSpellerOnce.Do(func() {
		defaultSpeller = NewFuzzySpeller(DefaultDictionary())
	})
	return defaultSpeller
}

// Correct returns the most likely dictionary word for a misspelt token. Known
// words, tokens containing digits and dictionary misses report ok=false.
func (s *FuzzySpeller) Correct(word string) (string, bool) {
	if s == nil || s.model == nil || word == "" {
		return "", false
	}
	for _, r := range word {
		if unicode.IsDigit(r) {
			return "", false
		}
	}

	lower := strings.ToLower(word)
	if _, ok := s.known[lower]; ok {
		return "", false
	}
	suggestion := s.model.SpellCheck(lower)
	if suggestion == "" || suggestion == lower {
		return "", false
	}
	return suggestion, true
}

// Known reports whether word is in the speller's dictionary.
func (s *FuzzySpeller) Known(word string) bool {
	if s == nil {
		return false
	}
	_, ok := s.known[strings.ToLower(word)]
	return ok
}

// DefaultDictionary returns the embedded English frequency list: word counts from a
// general English corpus merged with exam vocabulary.
func DefaultDictionary() []WordCount {
	entries, _ := ReadDictionary(strings.NewReader(embeddedDictionary))
	return entries
}

// LoadDictionary reads a word list from disk, falling back to the embedded list when path is empty.
func LoadDictionary(path string) ([]WordCount, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDictionary(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return ReadDictionary(f)
}

// ReadDictionary parses one word per line, optionally followed by a frequency
// count. Missing or invalid counts read as 1. Lines starting with # are skipped.
func ReadDictionary(r io.Reader) ([]WordCount, error) {
	entries := make([]WordCount, 0, 1024)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		count := 1
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
				count = n
			}
		}
		entries = append(entries, WordCount{Word: fields[0], Count: count})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return entries, nil
}
