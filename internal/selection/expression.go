// internal/selection/expression.go
package selection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/quill/internal/types"
)

/*
 * Boolean filter expressions over an Instructions property bag.
 *
 * Grammar (disjunctive normal form, no parentheses):
 *
 *   expr := and ('||' and)*
 *   and  := cond ('&&' cond)*
 *   cond := path op literal | path 'exists' | path 'is_null'
 *   op   := '==' | '!=' | '<' | '<=' | '>' | '>=' | 'starts_with' | 'ends_with' | 'in'
 *
 * Paths use ParsePath notation. Literals are JSON values; a bare word that is
 * not valid JSON is read as a string. `== null` and `!= null` are rewritten
 * to is_null and exists.
 *
 * Evaluation: OR of AND groups, short-circuiting in both directions. Inside
 * a group, conditions run in ascending cost order (stable). A missing
 * property or a failed coercion never matches, except for is_null, which
 * holds when no non-null value is reachable.
 */

// Condition is one compiled comparison.
type Condition struct {
	Path      []PathSegment
	Operator  Operator
	FieldType FieldType
	Value     any
	Cost      int
}

// AndGroup holds conditions that must all match, ordered by ascending cost.
type AndGroup struct {
	Conditions []Condition
}

// Expression is a compiled filter expression, safe for concurrent use.
type Expression struct {
	source string
	groups []AndGroup
}

// ParseExpression compiles s.
// Errors wrap ErrInvalidExpression or one of the path/IN limit errors.
func ParseExpression(s string) (*Expression, error) {
	p := &exprParser{src: s}
	expr := &Expression{source: strings.TrimSpace(s)}
	group := AndGroup{}
	total := 0
	for {
		cond, err := p.condition()
		if err != nil {
			return nil, err
		}
		total++
		if total > types.MaxFilterConditions {
			return nil, fmt.Errorf("%w: more than %d conditions", types.ErrInvalidExpression, types.MaxFilterConditions)
		}
		group.Conditions = append(group.Conditions, cond)

		p.skipSpace()
		switch {
		case p.eof():
			expr.groups = append(expr.groups, group.ordered())
			return expr, nil
		case p.consume("&&"):
		case p.consume("||"):
			expr.groups = append(expr.groups, group.ordered())
			group = AndGroup{}
		default:
			return nil, p.errorf("expected && or || ")
		}
	}
}

// MustParseExpression is ParseExpression for static expressions; it panics on error.
func MustParseExpression(s string) *Expression {
	e, err := ParseExpression(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (g AndGroup) ordered() AndGroup {
	sort.SliceStable(g.Conditions, func(i, j int) bool {
		return g.Conditions[i].Cost < g.Conditions[j].Cost
	})
	return g
}

// String returns the source text.
func (e *Expression) String() string {
	return e.source
}

// Groups returns the compiled OR groups.
func (e *Expression) Groups() []AndGroup {
	return e.groups
}

// Evaluate reports whether bag satisfies the expression.
func (e *Expression) Evaluate(bag map[string]any) bool {
	for _, g := range e.groups {
		if g.evaluate(bag) {
			return true
		}
	}
	return false
}

func (g AndGroup) evaluate(bag map[string]any) bool {
	for _, c := range g.Conditions {
		if !c.Evaluate(bag) {
			return false
		}
	}
	return true
}

// Evaluate applies the condition to bag.
func (c Condition) Evaluate(bag map[string]any) bool {
	notNull := func(v any) bool { return v != nil }
	switch c.Operator {
	case OpExists:
		return Any(c.Path, bag, notNull)
	case OpIsNull:
		return !Any(c.Path, bag, notNull)
	}
	return Any(c.Path, bag, func(v any) bool {
		coerced, err := Coerce(v, c.FieldType)
		if err != nil || coerced.IsNull {
			return false
		}
		return apply(c.Operator, coerced.Value, c.Value)
	})
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) eof() bool { return p.pos >= len(p.src) }

func (p *exprParser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *exprParser) consume(tok string) bool {
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q",
		types.ErrInvalidExpression, fmt.Sprintf(format, args...), p.pos, p.src)
}

func (p *exprParser) condition() (Condition, error) {
	p.skipSpace()
	start := p.pos
	for !p.eof() && !isSpace(p.src[p.pos]) && !strings.ContainsRune("=!<>&|", rune(p.src[p.pos])) {
		p.pos++
	}
	if start == p.pos {
		return Condition{}, p.errorf("expected property path")
	}
	path, err := ParsePath(p.src[start:p.pos])
	if err != nil {
		return Condition{}, err
	}

	op, err := p.operator()
	if err != nil {
		return Condition{}, err
	}
	cond := Condition{Path: path, Operator: op}
	if !op.unary() {
		lit, err := p.literal()
		if err != nil {
			return Condition{}, err
		}
		if err := cond.bind(lit); err != nil {
			return Condition{}, fmt.Errorf("%w: %w in %q", types.ErrInvalidExpression, err, p.src)
		}
	}
	cond.Cost = ConditionCost(cond.Path, cond.Operator, cond.FieldType)
	return cond, nil
}

func (p *exprParser) operator() (Operator, error) {
	p.skipSpace()
	for _, sym := range []struct {
		tok string
		op  Operator
	}{
		{"==", OpEq}, {"!=", OpNeq}, {"<=", OpLte}, {">=", OpGte}, {"<", OpLt}, {">", OpGt},
	} {
		if p.consume(sym.tok) {
			return sym.op, nil
		}
	}
	start := p.pos
	for !p.eof() && (isLetter(p.src[p.pos]) || p.src[p.pos] == '_') {
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "starts_with":
		return OpPrefix, nil
	case "ends_with":
		return OpSuffix, nil
	case "in":
		return OpIn, nil
	case "exists":
		return OpExists, nil
	case "is_null":
		return OpIsNull, nil
	default:
		p.pos = start
		return 0, p.errorf("unknown operator %q", word)
	}
}

func (p *exprParser) literal() (any, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("expected literal")
	}
	rest := p.src[p.pos:]
	if strings.ContainsRune(`"[{-0123456789tfn`, rune(rest[0])) {
		dec := json.NewDecoder(strings.NewReader(rest))
		var v any
		if err := dec.Decode(&v); err == nil {
			p.pos += int(dec.InputOffset())
			return v, nil
		} else if rest[0] == '"' || rest[0] == '[' || rest[0] == '{' {
			return nil, p.errorf("bad literal: %v", err)
		}
	}
	start := p.pos
	for !p.eof() && !isSpace(p.src[p.pos]) && p.src[p.pos] != '&' && p.src[p.pos] != '|' {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// bind attaches the literal, rewriting null comparisons and checking IN lists.
func (c *Condition) bind(lit any) error {
	switch v := lit.(type) {
	case nil:
		switch c.Operator {
		case OpEq:
			c.Operator = OpIsNull
		case OpNeq:
			c.Operator = OpExists
		default:
			return fmt.Errorf("null only allowed with == and !=")
		}
		return nil
	case map[string]any:
		return fmt.Errorf("object literals are not supported")
	case []any:
		if c.Operator != OpIn {
			return fmt.Errorf("list literal requires the in operator")
		}
		if len(v) > types.MaxInOperatorValues {
			return types.ErrTooManyInValues
		}
		c.FieldType = FieldTypeAny
		c.Value = v
		return nil
	default:
		if c.Operator == OpIn {
			return fmt.Errorf("in requires a list literal")
		}
		if (c.Operator == OpPrefix || c.Operator == OpSuffix) && fieldTypeOf(v) != FieldTypeText {
			return fmt.Errorf("%s requires a string literal", c.Operator)
		}
		c.FieldType = fieldTypeOf(v)
		c.Value = v
		return nil
	}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
