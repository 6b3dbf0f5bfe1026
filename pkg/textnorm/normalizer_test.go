package textnorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type mapSpeller map[string]string

func (m mapSpeller) Correct(word string) (string, bool) {
	s, ok := m[word]
	return s, ok
}

type recordingSpeller struct {
	seen []string
}

func (r *recordingSpeller) Correct(word string) (string, bool) {
	r.seen = append(r.seen, word)
	return "", false
}

func TestNormalizeDropsDuplicateLinesAndPunctuation(t *testing.T) {
	n := New(nil)

	out := n.Normalize("F = ma\nF = ma\n")
	require.Equal(t, "F ma", out)
}

func TestNormalizeKeepsFirstOccurrenceOrder(t *testing.T) {
	n := New(nil)

	out := n.Normalize("  beta\nalpha\r\n\nbeta  \ngamma, delta!")
	require.Equal(t, "beta\nalpha\ngamma delta", out)
}

func TestNormalizeNeverCorrectsShortTokens(t *testing.T) {
	rec := &recordingSpeller{}
	n := New(rec)

	n.Normalize("F is ma and xyz")
	require.Equal(t, []string{"and", "xyz"}, rec.seen)
}

func TestNormalizeAppliesSuggestions(t *testing.T) {
	n := New(mapSpeller{"forse": "force", "ma": "me"})

	out := n.Normalize("forse equals ma")
	require.Equal(t, "force equals ma", out)
}

func TestNormalizeLeavesUnknownTokens(t *testing.T) {
	n := New(mapSpeller{"qwrtz": ""})

	require.Equal(t, "qwrtz stays", n.Normalize("qwrtz stays"))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := New(DefaultSpeller())

	once := n.Normalize("Newtons secnd law:\nF = ma\nF = ma\nthe forse causes acceleration")
	require.Equal(t, once, n.Normalize(once))
}

func TestNormalizeLeavesCorrectProseUnchanged(t *testing.T) {
	n := New(DefaultSpeller())

	for _, line := range []string{
		"The cat sat near the river bank",
		"When the ball is dropped it falls faster because gravity acts towards the ground",
		"The student explained each step clearly and showed the working",
	} {
		require.Equal(t, line, n.Normalize(line))
	}
}

func TestNormalizeDefaultSpellerFixesOCRSlip(t *testing.T) {
	n := New(DefaultSpeller())

	require.Equal(t, "the object has acceleration", n.Normalize("the object has acceleraton"))
}

func TestNormalizeEmptyInput(t *testing.T) {
	require.Equal(t, "", New(nil).Normalize(""))
	require.Equal(t, "", New(nil).Normalize("\n \n"))
}

func TestNormalizeHandlesUnicodeLetters(t *testing.T) {
	out := New(nil).Normalize("énergie = ½mv²")
	require.True(t, strings.HasPrefix(out, "énergie"))
}

func TestUniqueLines(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, UniqueLines("a\n a \nb\n\na"))
}
