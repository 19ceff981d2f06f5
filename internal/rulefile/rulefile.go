// internal/rulefile/rulefile.go
package rulefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/types"
)

/*
 * Line-oriented rule file parser.
 *
 *   # comment
 *   "iphone case =>                 input; leading/trailing " anchor it
 *     SYNONYM: cover                instructions, one per line
 *     DELETE: case
 *     UP(2): brand:apple            $1..$n refer to matched input terms
 *     DOWN: * price:[0 TO 10]       "* " marks a raw query
 *     FILTER: in_stock:true
 *     DECORATE(banner): {"id": 7}
 *     @_id: "iphone-case"           single-line property, JSON value
 *     @{                            JSON block spanning lines
 *       "priority": 5
 *     }@
 *
 * Input terms: whitespace separated; f:v and {f,g}:v scope a term; a
 * trailing * makes a prefix term. \* \" \# \\ escape the reserved
 * characters. In inputs an unescaped # starts a comment; elsewhere only
 * whole-line comments are recognized.
 */

// ParseError is a syntax error with its 1-based line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Compile parses r and compiles the rules with opts.
func Compile(r io.Reader, opts rules.Options) (*rules.RulesCollection, error) {
	defs, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return rules.Compile(defs, opts)
}

// Parse reads every rule definition from r.
func Parse(r io.Reader) ([]rules.Definition, error) {
	p := &parser{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p.line++
		if err := p.feed(sc.Text()); err != nil {
			return nil, &ParseError{Line: p.line, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if p.block != nil {
		return nil, &ParseError{Line: p.blockLine, Err: errors.New("unterminated @{ property block")}
	}
	p.flush()
	return p.defs, nil
}

type parser struct {
	line int
	defs []rules.Definition

	cur   *rules.Definition
	props *rules.Properties

	block     *strings.Builder
	blockLine int
}

func (p *parser) flush() {
	if p.cur == nil {
		return
	}
	p.cur.Properties = p.props
	p.defs = append(p.defs, *p.cur)
	p.cur, p.props = nil, nil
}

func (p *parser) feed(raw string) error {
	if p.block != nil {
		return p.appendBlock(raw)
	}

	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	if strings.HasSuffix(stripComment(line), "=>") {
		p.flush()
		in, err := parseInput(strings.TrimSuffix(stripComment(line), "=>"))
		if err != nil {
			return err
		}
		p.cur = &rules.Definition{Line: p.line, Input: in}
		p.props = rules.NewProperties()
		return nil
	}

	if p.cur == nil {
		return fmt.Errorf("%q outside of a rule; rules start with an 'input =>' line", line)
	}

	if strings.HasPrefix(line, "@") {
		return p.property(line)
	}

	instr, err := parseInstruction(line)
	if err != nil {
		return err
	}
	p.cur.Instructions = append(p.cur.Instructions, instr)
	return nil
}

func (p *parser) property(line string) error {
	if strings.HasPrefix(line, "@{") {
		p.block = &strings.Builder{}
		p.blockLine = p.line
		return p.appendBlock(line[1:])
	}
	key, value, ok := strings.Cut(line[1:], ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("property %q, want @key: value", line)
	}
	if p.props.Has(key) {
		return fmt.Errorf("duplicate property %q", key)
	}
	p.props.Set(key, parseLooseValue(strings.TrimSpace(value)))
	return nil
}

// appendBlock accumulates a @{ ... }@ block and merges it once closed.
func (p *parser) appendBlock(raw string) error {
	trimmed := strings.TrimSpace(raw)
	done := strings.HasSuffix(trimmed, "}@")
	if done {
		trimmed = strings.TrimSuffix(trimmed, "@")
	}
	p.block.WriteString(trimmed)
	p.block.WriteByte('\n')
	if !done {
		return nil
	}

	text := p.block.String()
	p.block = nil
	props, err := rules.ParseProperties([]byte(text))
	if err != nil {
		return fmt.Errorf("property block starting on line %d: %w", p.blockLine, err)
	}
	if dup, ok := p.props.Merge(props); ok {
		return fmt.Errorf("duplicate property %q", dup)
	}
	return nil
}

func parseInput(text string) (rules.Input, error) {
	text = strings.TrimSpace(text)
	left, right := false, false
	if strings.HasPrefix(text, `"`) {
		left = true
		text = text[1:]
	}
	if strings.HasSuffix(text, `"`) && !escapedAt(text, len(text)-1) {
		right = true
		text = text[:len(text)-1]
	}
	if indexUnescaped(text, '"') >= 0 {
		return rules.Input{}, types.ErrUnbalancedQuote
	}

	var terms []rules.Term
	for _, tok := range strings.Fields(text) {
		t, err := parseTerm(tok)
		if err != nil {
			return rules.Input{}, err
		}
		terms = append(terms, t)
	}
	return rules.NewInput(terms, left, right)
}

// parseTerm parses f:v, {f,g}:v and a trailing unescaped * marker.
func parseTerm(tok string) (rules.Term, error) {
	var fields []string
	if strings.HasPrefix(tok, "{") {
		end := strings.Index(tok, "}:")
		if end < 0 {
			return rules.Term{}, fmt.Errorf("field list %q, want {f1,f2}:value", tok)
		}
		for _, f := range strings.Split(tok[1:end], ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		tok = tok[end+2:]
	} else if i := indexUnescaped(tok, ':'); i > 0 && isFieldName(tok[:i]) {
		fields = []string{tok[:i]}
		tok = tok[i+1:]
	}

	prefix := false
	if strings.HasSuffix(tok, "*") && !escapedAt(tok, len(tok)-1) {
		prefix = true
		tok = tok[:len(tok)-1]
	}
	value, err := rules.Unescape(tok)
	if err != nil {
		return rules.Term{}, err
	}
	if prefix {
		return rules.NewPrefixTerm(value, fields...), nil
	}
	return rules.NewTerm(value, fields...), nil
}

func parseTerms(text string) ([]rules.Term, error) {
	var out []rules.Term
	for _, tok := range strings.Fields(text) {
		t, err := parseTerm(tok)
		if err != nil {
			return nil, err
		}
		if t.Prefix {
			return nil, fmt.Errorf("%w: %s", types.ErrWildcardNotLast, t)
		}
		out = append(out, t)
	}
	return out, nil
}

func parseInstruction(line string) (rules.Instruction, error) {
	head, body, hasBody := strings.Cut(line, ":")
	body = strings.TrimSpace(body)

	// DECORATE(key) and UP(2) carry their argument in the head
	arg, hasArg := "", false
	if open := strings.IndexByte(head, '('); open >= 0 {
		end := strings.IndexByte(head, ')')
		if end < open || strings.TrimSpace(head[end+1:]) != "" {
			return nil, fmt.Errorf("instruction %q, want NAME(arg): body", line)
		}
		arg, hasArg = strings.TrimSpace(head[open+1:end]), true
		head = head[:open]
	}
	name := strings.TrimSpace(head)

	switch strings.ToUpper(name) {
	case "SYNONYM":
		if hasArg {
			return nil, fmt.Errorf("SYNONYM takes no argument")
		}
		terms, err := parseTerms(body)
		if err != nil {
			return nil, err
		}
		if len(terms) == 0 {
			return nil, fmt.Errorf("SYNONYM without terms")
		}
		return rules.SynonymInstruction{Terms: terms}, nil

	case "DELETE":
		if hasArg {
			return nil, fmt.Errorf("DELETE takes no argument")
		}
		terms, err := parseTerms(body)
		if err != nil {
			return nil, err
		}
		return rules.DeleteInstruction{Terms: terms}, nil

	case "UP", "DOWN":
		dir := rules.BoostUp
		if strings.EqualFold(name, "DOWN") {
			dir = rules.BoostDown
		}
		factor := 1.0
		if hasArg && arg != "" {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", types.ErrInvalidBoostFactor, arg)
			}
			factor = f
		}
		q, raw := rawQuery(body)
		if q == "" {
			return nil, fmt.Errorf("%s without query", strings.ToUpper(name))
		}
		return rules.NewBoostInstruction(dir, factor, q, raw)

	case "FILTER":
		if hasArg {
			return nil, fmt.Errorf("FILTER takes no argument")
		}
		q, raw := rawQuery(body)
		if q == "" {
			return nil, fmt.Errorf("FILTER without query")
		}
		return rules.FilterInstruction{Query: q, Raw: raw}, nil

	case "DECORATE":
		if !hasBody || body == "" {
			return nil, fmt.Errorf("DECORATE without value")
		}
		return rules.DecorateInstruction{Key: arg, Value: parseLooseValue(body)}, nil

	default:
		return nil, fmt.Errorf("unknown instruction %q", name)
	}
}

// rawQuery strips the "* " raw marker.
func rawQuery(body string) (string, bool) {
	if rest, ok := strings.CutPrefix(body, "* "); ok {
		return strings.TrimSpace(rest), true
	}
	return body, false
}

// parseLooseValue reads JSON, falling back to the literal text as a string.
func parseLooseValue(s string) rules.Value {
	if v, err := rules.ParseValue([]byte(s)); err == nil {
		return v
	}
	return rules.String(s)
}

func stripComment(line string) string {
	if i := indexUnescaped(line, '#'); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}

// indexUnescaped returns the first index of c not preceded by an escaping backslash.
func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case c:
			return i
		}
	}
	return -1
}

// escapedAt reports whether s[i] is preceded by an odd number of backslashes.
func escapedAt(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func isFieldName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || c == '-' || c == '.' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return s != ""
}
