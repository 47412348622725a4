package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQueryImplicitAnd(t *testing.T) {
	q := ParseQuery("knowledge graph")
	assert.False(t, q.Empty())
	assert.Len(t, q.Groups, 1)
	assert.Len(t, q.Groups[0], 2)
	assert.Equal(t, []string{"knowledge"}, q.Groups[0][0].Lexemes)
	assert.Equal(t, []string{"graph"}, q.Groups[0][1].Lexemes)
}

func TestParseQueryPhrase(t *testing.T) {
	q := ParseQuery(`"knowledge graph" embeddings`)
	assert.Len(t, q.Groups, 1)
	assert.True(t, q.Groups[0][0].Phrase)
	assert.Equal(t, []string{"knowledge", "graph"}, q.Groups[0][0].Lexemes)
	assert.False(t, q.Groups[0][1].Phrase)
}

func TestParseQueryOrSplitsGroups(t *testing.T) {
	q := ParseQuery("cat OR dog")
	assert.Len(t, q.Groups, 2)
	assert.Equal(t, []string{"cat"}, q.Groups[0][0].Lexemes)
	assert.Equal(t, []string{"dog"}, q.Groups[1][0].Lexemes)
}

func TestParseQueryNegation(t *testing.T) {
	q := ParseQuery("apple -pie")
	assert.Len(t, q.Groups[0], 2)
	assert.False(t, q.Groups[0][0].Negate)
	assert.True(t, q.Groups[0][1].Negate)
	assert.Equal(t, []string{"pie"}, q.Groups[0][1].Lexemes)
}

func TestParseQueryMalformedInputDegradesPlainAnd(t *testing.T) {
	q := ParseQuery(`"unterminated quote here`)
	assert.False(t, q.Empty())
	for _, term := range q.Groups[0] {
		assert.NotEmpty(t, term.Lexemes)
	}
}

func TestParseQueryPunctuationOnlyIsEmpty(t *testing.T) {
	q := ParseQuery(`!!! --- ???`)
	assert.True(t, q.Empty())
}

func TestParseQueryEmptyString(t *testing.T) {
	q := ParseQuery("")
	assert.True(t, q.Empty())
}

func TestWordsStripsOperatorCharacters(t *testing.T) {
	got := words(`foo&bar|baz!qux<->quux`)
	assert.Equal(t, []string{"foo", "bar", "baz", "qux", "quux"}, got)
}

func TestQueryPlainTextExcludesNegatedTerms(t *testing.T) {
	q := ParseQuery("apple -pie banana")
	assert.Equal(t, "apple banana", q.PlainText())
}
