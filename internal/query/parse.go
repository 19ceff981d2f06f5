// internal/query/parse.go
package query

import "strings"

// RawPrefix marks a query string as opaque, as in rule files.
const RawPrefix = "* "

// Parse splits s on whitespace into a BooleanQuery, one disjunction per token.
// A leading + or - sets the occur; field:value scopes a token.
func Parse(s string) *BooleanQuery {
	return parse(s, false)
}

// ParseGenerated is Parse with every node marked generated.
func ParseGenerated(s string) *BooleanQuery {
	return parse(s, true)
}

// ParseUserQuery returns a RawQuery for strings starting with RawPrefix and a
// parsed BooleanQuery otherwise.
func ParseUserQuery(s string) Query {
	if rest, ok := strings.CutPrefix(s, RawPrefix); ok {
		return &RawQuery{Text: strings.TrimSpace(rest)}
	}
	return Parse(s)
}

func parse(s string, generated bool) *BooleanQuery {
	bq := NewBooleanQuery(Should, generated)
	for _, tok := range strings.Fields(s) {
		occur := Should
		if len(tok) > 1 {
			switch tok[0] {
			case '+':
				occur, tok = Must, tok[1:]
			case '-':
				occur, tok = MustNot, tok[1:]
			}
		}
		field, value, ok := strings.Cut(tok, ":")
		if !ok || field == "" || value == "" {
			field, value = "", tok
		}
		d := NewDisjunctionMaxQuery(occur, generated)
		d.Add(NewTerm(field, value, generated))
		bq.Add(d)
	}
	return bq
}
