// Package selector parses locator selector strings and builds new ones from
// existing selectors without touching a document.
//
// A selector is a list of parts joined by " >> ". Each part is either
// `engine=body` or a bare body whose engine is inferred: quoted text is a
// text selector, `//` and `..` start an XPath selector, anything else is CSS.
// Engines that take another selector as their argument (internal:has,
// internal:and, ...) carry it JSON encoded, and the parser decodes it into
// Part.Nested.
package selector

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Engine names understood by the parser.
const (
	EngineCSS          = "css"
	EngineXPath        = "xpath"
	EngineText         = "text"
	EngineID           = "id"
	EngineAriaRef      = "aria-ref"
	EngineNth          = "nth"
	EngineVisible      = "visible"
	EngineHas          = "internal:has"
	EngineHasNot       = "internal:has-not"
	EngineHasText      = "internal:has-text"
	EngineHasNotText   = "internal:has-not-text"
	EngineAnd          = "internal:and"
	EngineOr           = "internal:or"
	EngineChain        = "internal:chain"
	EngineControl      = "internal:control"
	EngineInternalText = "internal:text"
	EngineLabel        = "internal:label"
	EngineAttr         = "internal:attr"
	EngineTestID       = "internal:testid"
	EngineRole         = "internal:role"
)

// ControlEnterFrame is the internal:control body that moves resolution into
// the content document of the iframe matched so far.
const ControlEnterFrame = "enter-frame"

// Matches `name:body`, a query engine name and selector for that engine.
var reQueryEngine = regexp.MustCompile(`^[a-zA-Z_0-9-+:*]+$`)

// Matches start of XPath query.
var reXPathSelector = regexp.MustCompile(`^\(*//`)

// textEngines take a text match, possibly a /pattern/flags regular
// expression, as their body or as a [name=value] property value.
var textEngines = map[string]bool{
	EngineText:         true,
	EngineInternalText: true,
	EngineHasText:      true,
	EngineHasNotText:   true,
	EngineLabel:        true,
	EngineAttr:         true,
	EngineTestID:       true,
	EngineRole:         true,
}

var nestedEngines = map[string]bool{
	EngineHas:    true,
	EngineHasNot: true,
	EngineAnd:    true,
	EngineOr:     true,
	EngineChain:  true,
}

// SyntaxError is returned for selectors that cannot be parsed.
type SyntaxError struct {
	Selector string
	Offset   int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed selector %q at position %d: %s", e.Selector, e.Offset, e.Msg)
}

// Part is one step of a selector.
type Part struct {
	Name string `json:"name"`
	Body string `json:"body"`

	// Nested is the decoded argument of internal:has, internal:has-not,
	// internal:and, internal:or and internal:chain.
	Nested *Selector `json:"nested,omitempty"`
}

// Nth returns the index of an nth part.
func (p *Part) Nth() int {
	n, _ := strconv.Atoi(p.Body)
	return n
}

// IsEnterFrame reports whether the part moves resolution into an iframe.
func (p *Part) IsEnterFrame() bool {
	return p.Name == EngineControl && p.Body == ControlEnterFrame
}

// Selector is a parsed selector string.
type Selector struct {
	Selector string  `json:"selector"`
	Parts    []*Part `json:"parts"`

	// By default chained queries resolve to elements matched by the last selector,
	// but a selector can be prefixed with `*` to capture elements resolved by
	// an intermediate selector.
	Capture *int `json:"capture"`
}

// Parse parses selector into its parts.
func Parse(selector string) (*Selector, error) {
	s := Selector{
		Selector: selector,
		Parts:    make([]*Part, 0, 1),
	}
	if strings.TrimSpace(selector) == "" {
		return nil, &SyntaxError{Selector: selector, Msg: "empty selector"}
	}
	if err := s.parse(); err != nil {
		return nil, err
	}
	return &s, nil
}

// MustParse is like Parse but panics on error. It is meant for selectors
// built by this package.
func MustParse(selector string) *Selector {
	s, err := Parse(selector)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the selector text.
func (s *Selector) String() string {
	return s.Selector
}

func (s *Selector) appendPart(p *Part, capture bool, offset int) error {
	s.Parts = append(s.Parts, p)
	if capture {
		if s.Capture != nil {
			return &SyntaxError{
				Selector: s.Selector, Offset: offset,
				Msg: "only one of the selectors can capture using * modifier",
			}
		}
		s.Capture = new(int)
		*s.Capture = len(s.Parts) - 1
	}
	return nil
}

func (s *Selector) parsePart(start, end int) (*Part, bool, error) {
	part := strings.TrimSpace(s.Selector[start:end])
	if part == "" {
		return nil, false, &SyntaxError{Selector: s.Selector, Offset: start, Msg: "empty selector part"}
	}

	var name, body string
	eqIndex := strings.Index(part, "=")
	switch {
	case eqIndex != -1 && reQueryEngine.MatchString(strings.TrimSpace(part[0:eqIndex])):
		name = strings.TrimSpace(part[0:eqIndex])
		body = strings.TrimSpace(part[eqIndex+1:])
	case len(part) > 1 && part[0] == '"' && part[len(part)-1] == '"':
		name = EngineText
		body = part
	case len(part) > 1 && part[0] == '\'' && part[len(part)-1] == '\'':
		name = EngineText
		body = part
	case reXPathSelector.MatchString(part) || strings.HasPrefix(part, ".."):
		// If selector starts with '//' or '//' prefixed with multiple opening
		// parenthesis, consider xpath. @see https://github.com/microsoft/playwright/issues/817
		// If selector starts with '..', consider xpath as well.
		name = EngineXPath
		body = part
	default:
		name = EngineCSS
		body = part
	}

	capture := false
	if name[0] == '*' {
		capture = true
		name = name[1:]
	}
	if name == "" || body == "" {
		return nil, false, &SyntaxError{Selector: s.Selector, Offset: start, Msg: fmt.Sprintf("%q has no body", part)}
	}

	p := &Part{Name: name, Body: body}
	if err := s.validatePart(p, start); err != nil {
		return nil, false, err
	}

	return p, capture, nil
}

func (s *Selector) validatePart(p *Part, offset int) error {
	switch {
	case nestedEngines[p.Name]:
		var inner string
		if err := json.Unmarshal([]byte(p.Body), &inner); err != nil {
			return &SyntaxError{
				Selector: s.Selector, Offset: offset,
				Msg: fmt.Sprintf("%s expects a JSON encoded selector, got %s", p.Name, p.Body),
			}
		}
		nested, err := Parse(inner)
		if err != nil {
			return &SyntaxError{
				Selector: s.Selector, Offset: offset,
				Msg: fmt.Sprintf("%s argument: %v", p.Name, err),
			}
		}
		p.Nested = nested
	case p.Name == EngineNth:
		if _, err := strconv.Atoi(p.Body); err != nil {
			return &SyntaxError{Selector: s.Selector, Offset: offset, Msg: fmt.Sprintf("nth expects an integer, got %q", p.Body)}
		}
	case p.Name == EngineVisible:
		if p.Body != "true" && p.Body != "false" {
			return &SyntaxError{Selector: s.Selector, Offset: offset, Msg: fmt.Sprintf("visible expects true or false, got %q", p.Body)}
		}
	case p.Name == EngineControl:
		if p.Body != ControlEnterFrame {
			return &SyntaxError{Selector: s.Selector, Offset: offset, Msg: fmt.Sprintf("unknown control %q", p.Body)}
		}
	case p.Name == EngineText, p.Name == EngineInternalText, p.Name == EngineHasText,
		p.Name == EngineHasNotText, p.Name == EngineLabel:
		if _, err := ParseTextMatch(p.Body); err != nil {
			return &SyntaxError{Selector: s.Selector, Offset: offset, Msg: err.Error()}
		}
	case p.Name == EngineAttr, p.Name == EngineTestID:
		if _, _, err := ParseAttr(p.Body); err != nil {
			return &SyntaxError{Selector: s.Selector, Offset: offset, Msg: err.Error()}
		}
	case p.Name == EngineRole:
		if _, _, err := ParseRole(p.Body); err != nil {
			return &SyntaxError{Selector: s.Selector, Offset: offset, Msg: err.Error()}
		}
	}
	return nil
}

func (s *Selector) parse() error {
	start := 0
	index := 0
	var quote byte

	for index < len(s.Selector) {
		c := s.Selector[index]
		switch {
		case c == '\\' && index+1 < len(s.Selector):
			index += 2
		case quote != 0 && c == quote:
			quote = 0
			index++
		case quote == 0 && (c == '"' || c == '\'' || c == '`'):
			quote = c
			index++
		case quote == 0 && c == '/' && s.startsPattern(start, index):
			end, ok := skipPattern(s.Selector, index)
			if !ok {
				return &SyntaxError{Selector: s.Selector, Offset: index, Msg: "unterminated pattern " + s.Selector[index:]}
			}
			index = end
		case quote == 0 && c == '>' && index+1 < len(s.Selector) && s.Selector[index+1] == '>':
			part, capture, err := s.parsePart(start, index)
			if err != nil {
				return err
			}
			if err := s.appendPart(part, capture, start); err != nil {
				return err
			}
			index += 2
			start = index
		default:
			index++
		}
	}
	if quote != 0 {
		return &SyntaxError{Selector: s.Selector, Offset: start, Msg: fmt.Sprintf("unterminated %c quote", quote)}
	}

	part, capture, err := s.parsePart(start, index)
	if err != nil {
		return err
	}
	return s.appendPart(part, capture, start)
}

// startsPattern reports whether the slash at index opens a regular
// expression: it is the body of a text taking engine or the value of one of
// its [name=value] properties.
func (s *Selector) startsPattern(start, index int) bool {
	head := strings.TrimSpace(s.Selector[start:index])
	if !strings.HasSuffix(head, "=") {
		return false
	}
	name, rest, _ := strings.Cut(head, "=")
	if !textEngines[strings.TrimPrefix(strings.TrimSpace(name), "*")] {
		return false
	}
	if rest == "" {
		return true
	}
	return strings.LastIndexByte(rest, '[') > strings.LastIndexByte(rest, ']')
}

// skipPattern returns the index just past the /pattern/flags starting at
// s[i]. Slashes that are escaped or inside a character class do not end
// the pattern.
func skipPattern(s string, i int) (int, bool) {
	inClass := false
	for i++; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\':
			i++
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			i++
			for i < len(s) && strings.IndexByte("dgimsuy", s[i]) >= 0 {
				i++
			}
			return i, true
		}
	}
	return i, false
}

// SplitFrame splits s at its first enter-frame part into the selector of
// the iframe element and the selector resolved inside its content document.
// Both are nil when s does not enter a frame.
func (s *Selector) SplitFrame() (owner, inner *Selector, err error) {
	i := slices.IndexFunc(s.Parts, (*Part).IsEnterFrame)
	if i == -1 {
		return nil, nil, nil
	}
	if i == 0 || i == len(s.Parts)-1 {
		return nil, nil, &SyntaxError{Selector: s.Selector, Msg: "enter-frame must be between two selectors"}
	}
	if s.Capture != nil && *s.Capture < i {
		return nil, nil, &SyntaxError{Selector: s.Selector, Msg: "cannot capture an element outside of the frame"}
	}

	owner = subSelector(s.Parts[:i], nil)
	var capture *int
	if s.Capture != nil {
		capture = new(int)
		*capture = *s.Capture - i - 1
	}
	inner = subSelector(s.Parts[i+1:], capture)
	return owner, inner, nil
}

func subSelector(parts []*Part, capture *int) *Selector {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString(Separator)
		}
		if capture != nil && *capture == i {
			b.WriteByte('*')
		}
		b.WriteString(p.Name + "=" + p.Body)
	}
	return &Selector{Selector: b.String(), Parts: parts, Capture: capture}
}
