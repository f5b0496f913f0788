package selector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TextKind is how a TextMatch compares text.
type TextKind int

// Text comparison kinds.
const (
	// TextSubstring matches case-insensitively anywhere in the
	// whitespace-normalized text.
	TextSubstring TextKind = iota
	// TextExact matches the whole whitespace-normalized text, case-sensitively.
	TextExact
	// TextRegexp matches a regular expression.
	TextRegexp
)

// TextMatch describes a text predicate used by text, label and attribute
// selectors. Its selector form is `"text"i`, `"text"s` or `/pattern/flags`.
type TextMatch struct {
	Kind  TextKind
	Text  string
	Flags string
}

// Substring matches elements whose text contains text, ignoring case.
func Substring(text string) TextMatch {
	return TextMatch{Kind: TextSubstring, Text: text}
}

// Exact matches elements whose whole text is text.
func Exact(text string) TextMatch {
	return TextMatch{Kind: TextExact, Text: text}
}

// Regexp matches elements whose text matches pattern. Flags follow the
// JavaScript convention; i, m and s are honored.
func Regexp(pattern, flags string) TextMatch {
	return TextMatch{Kind: TextRegexp, Text: pattern, Flags: flags}
}

// TextOf returns Exact(text) when exact is true and Substring(text) otherwise.
func TextOf(text string, exact bool) TextMatch {
	if exact {
		return Exact(text)
	}
	return Substring(text)
}

// String returns the selector body form of m.
func (m TextMatch) String() string {
	switch m.Kind {
	case TextRegexp:
		return "/" + m.Text + "/" + m.Flags
	case TextExact:
		return jsonQuote(m.Text) + "s"
	default:
		return jsonQuote(m.Text) + "i"
	}
}

// Matcher compiles m into a predicate over element text.
func (m TextMatch) Matcher() (func(string) bool, error) {
	switch m.Kind {
	case TextRegexp:
		var prefix string
		for _, f := range m.Flags {
			switch f {
			case 'i', 'm', 's':
				prefix += string(f)
			}
		}
		pattern := m.Text
		if prefix != "" {
			pattern = "(?" + prefix + ")" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling text pattern %q: %w", m.Text, err)
		}
		return re.MatchString, nil
	case TextExact:
		want := normalizeWhitespace(m.Text)
		return func(s string) bool { return normalizeWhitespace(s) == want }, nil
	default:
		want := strings.ToLower(normalizeWhitespace(m.Text))
		return func(s string) bool {
			return strings.Contains(strings.ToLower(normalizeWhitespace(s)), want)
		}, nil
	}
}

// ParseTextMatch parses the body of a text selector. An unquoted body is a
// substring match, a quoted body without a suffix is an exact match.
func ParseTextMatch(body string) (TextMatch, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return TextMatch{}, errors.New("empty text")
	}

	switch body[0] {
	case '/':
		end := strings.LastIndexByte(body, '/')
		if end == 0 {
			return TextMatch{}, fmt.Errorf("unterminated pattern %s", body)
		}
		flags := body[end+1:]
		if strings.Trim(flags, "dgimsuy") != "" {
			return TextMatch{}, fmt.Errorf("invalid pattern flags %q", flags)
		}
		m := Regexp(body[1:end], flags)
		if _, err := m.Matcher(); err != nil {
			return TextMatch{}, err
		}
		return m, nil
	case '"', '\'':
		text, rest, err := unquote(body)
		if err != nil {
			return TextMatch{}, err
		}
		switch rest {
		case "i", "I":
			return Substring(text), nil
		case "", "s", "S":
			return Exact(text), nil
		default:
			return TextMatch{}, fmt.Errorf("unexpected %q after quoted text", rest)
		}
	default:
		return Substring(body), nil
	}
}

// unquote reads the quoted string at the start of s and returns it together
// with the remainder of s.
func unquote(s string) (string, string, error) {
	q := s[0]
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			raw := s[:i+1]
			rest := s[i+1:]
			if q == '"' {
				var text string
				if err := json.Unmarshal([]byte(raw), &text); err != nil {
					return "", "", fmt.Errorf("decoding %s: %w", raw, err)
				}
				return text, rest, nil
			}
			inner := raw[1 : len(raw)-1]
			return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(inner), rest, nil
		}
	}
	return "", "", fmt.Errorf("unterminated quote in %s", s)
}

func jsonQuote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
