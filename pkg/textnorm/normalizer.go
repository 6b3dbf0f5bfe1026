// Package textnorm cleans raw recogniser output before it is graded.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinCorrectableLength is the shortest token the spell corrector may rewrite.
// Shorter tokens are usually units, symbols or variable names.
const MinCorrectableLength = 3

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// SpellCorrector proposes a replacement for a single word. ok is false when the
// word is already correct or no suggestion exists.
type SpellCorrector interface {
	Correct(word string) (suggestion string, ok bool)
}

// Normalizer deduplicates recogniser lines and applies dictionary spelling correction.
// It never fails; a nil corrector degrades to passthrough.
type Normalizer struct {
	speller SpellCorrector
}

// New constructs a normalizer around the given corrector.
func New(speller SpellCorrector) *Normalizer {
	return &Normalizer{speller: speller}
}

// Normalize trims and deduplicates lines, keeps the first occurrence of each, then
// rebuilds every line from its word tokens joined by single spaces.
func (n *Normalizer) Normalize(raw string) string {
	lines := UniqueLines(raw)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		tokens := tokenPattern.FindAllString(line, -1)
		for i, token := range tokens {
			tokens[i] = n.correct(token)
		}
		out = append(out, strings.Join(tokens, " "))
	}
	return strings.Join(out, "\n")
}

func (n *Normalizer) correct(token string) string {
	if n == nil || n.speller == nil {
		return token
	}
	if utf8.RuneCountInString(token) < MinCorrectableLength {
		return token
	}
	if suggestion, ok := n.speller.Correct(token); ok && suggestion != "" {
		return suggestion
	}
	return token
}

// UniqueLines splits raw text into trimmed, non-empty lines and drops repeats,
// preserving the order of first appearance.
func UniqueLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	seen := make(map[string]struct{})
	lines := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		lines = append(lines, trimmed)
	}
	return lines
}
