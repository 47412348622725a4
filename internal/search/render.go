package search

import "strings"

// Render compiles q into a Postgres tsquery expression string suitable
// for `to_tsquery(config, Render(q))`. Every lexeme was already restricted
// to letters/digits by the tokenizer, so the output never needs escaping.
func Render(q *Query) string {
	if q.Empty() {
		return ""
	}
	groupExprs := make([]string, 0, len(q.Groups))
	for _, group := range q.Groups {
		termExprs := make([]string, 0, len(group))
		for _, t := range group {
			expr := renderTerm(t)
			if expr == "" {
				continue
			}
			termExprs = append(termExprs, expr)
		}
		if len(termExprs) == 0 {
			continue
		}
		groupExprs = append(groupExprs, strings.Join(termExprs, " & "))
	}
	if len(groupExprs) == 0 {
		return ""
	}
	if len(groupExprs) == 1 {
		return groupExprs[0]
	}
	wrapped := make([]string, len(groupExprs))
	for i, g := range groupExprs {
		wrapped[i] = "(" + g + ")"
	}
	return strings.Join(wrapped, " | ")
}

func renderTerm(t Term) string {
	if len(t.Lexemes) == 0 {
		return ""
	}
	joiner := " & "
	if t.Phrase {
		joiner = " <-> "
	}
	expr := strings.Join(t.Lexemes, joiner)
	if len(t.Lexemes) > 1 {
		expr = "(" + expr + ")"
	}
	if t.Negate {
		expr = "!" + expr
	}
	return expr
}
