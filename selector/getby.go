package selector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultTestIDAttribute is the attribute TestID selectors look at unless
// configured otherwise.
const DefaultTestIDAttribute = "data-testid"

// RoleOptions narrows a Role selector. Nil pointers leave the property
// unconstrained.
type RoleOptions struct {
	Checked       *bool
	Disabled      *bool
	Expanded      *bool
	IncludeHidden bool
	Level         int
	Name          *TextMatch
	Pressed       *bool
	Selected      *bool
}

// TestID matches elements whose attr attribute equals id.
func TestID(attr, id string) string {
	if attr == "" {
		attr = DefaultTestIDAttribute
	}
	return EngineTestID + "=[" + attr + "=" + Exact(id).String() + "]"
}

// Text matches elements by their text content.
func Text(m TextMatch) string {
	return EngineInternalText + "=" + m.String()
}

// Label matches form controls by the text of their label.
func Label(m TextMatch) string {
	return EngineLabel + "=" + m.String()
}

// Attr matches elements whose name attribute satisfies m.
func Attr(name string, m TextMatch) string {
	return EngineAttr + "=[" + name + "=" + m.String() + "]"
}

// Placeholder matches inputs by their placeholder attribute.
func Placeholder(m TextMatch) string {
	return Attr("placeholder", m)
}

// AltText matches elements by their alt attribute.
func AltText(m TextMatch) string {
	return Attr("alt", m)
}

// Title matches elements by their title attribute.
func Title(m TextMatch) string {
	return Attr("title", m)
}

// Role matches elements by their ARIA role.
func Role(role string, opts *RoleOptions) string {
	var b strings.Builder
	b.WriteString(EngineRole + "=" + role)
	if opts == nil {
		return b.String()
	}
	boolProp := func(name string, v *bool) {
		if v != nil {
			fmt.Fprintf(&b, "[%s=%t]", name, *v)
		}
	}
	boolProp("checked", opts.Checked)
	boolProp("disabled", opts.Disabled)
	boolProp("selected", opts.Selected)
	boolProp("expanded", opts.Expanded)
	if opts.IncludeHidden {
		b.WriteString("[include-hidden=true]")
	}
	if opts.Level > 0 {
		fmt.Fprintf(&b, "[level=%d]", opts.Level)
	}
	if opts.Name != nil {
		b.WriteString("[name=" + opts.Name.String() + "]")
	}
	boolProp("pressed", opts.Pressed)

	return b.String()
}

// ParseAttr parses the `[name=match]` body of internal:attr and
// internal:testid parts.
func ParseAttr(body string) (string, TextMatch, error) {
	groups, rest, err := bracketGroups(body)
	if err != nil {
		return "", TextMatch{}, err
	}
	if rest != "" || len(groups) != 1 {
		return "", TextMatch{}, fmt.Errorf("expected a single [name=value] group, got %q", body)
	}
	name, value, ok := strings.Cut(groups[0], "=")
	if !ok || strings.TrimSpace(name) == "" {
		return "", TextMatch{}, fmt.Errorf("expected name=value in %q", groups[0])
	}
	m, err := ParseTextMatch(value)
	if err != nil {
		return "", TextMatch{}, err
	}
	return strings.TrimSpace(name), m, nil
}

// ParseRole parses the body of an internal:role part.
func ParseRole(body string) (string, RoleOptions, error) {
	var opts RoleOptions

	i := strings.IndexByte(body, '[')
	if i == -1 {
		i = len(body)
	}
	role := strings.TrimSpace(body[:i])
	if role == "" {
		return "", opts, errors.New("empty role")
	}
	groups, rest, err := bracketGroups(body[i:])
	if err != nil {
		return "", opts, err
	}
	if rest != "" {
		return "", opts, fmt.Errorf("unexpected %q after role properties", rest)
	}

	for _, g := range groups {
		key, value, _ := strings.Cut(g, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "checked", "disabled", "selected", "expanded", "pressed":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return "", opts, fmt.Errorf("role property %s expects true or false, got %q", key, value)
			}
			setRoleBool(&opts, key, b)
		case "include-hidden":
			opts.IncludeHidden = value == "" || value == "true"
		case "level":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return "", opts, fmt.Errorf("role property level expects a positive integer, got %q", value)
			}
			opts.Level = n
		case "name":
			m, err := ParseTextMatch(value)
			if err != nil {
				return "", opts, fmt.Errorf("role property name: %w", err)
			}
			opts.Name = &m
		default:
			return "", opts, fmt.Errorf("unknown role property %q", key)
		}
	}

	return role, opts, nil
}

func setRoleBool(opts *RoleOptions, key string, v bool) {
	p := &v
	switch key {
	case "checked":
		opts.Checked = p
	case "disabled":
		opts.Disabled = p
	case "selected":
		opts.Selected = p
	case "expanded":
		opts.Expanded = p
	case "pressed":
		opts.Pressed = p
	}
}

// bracketGroups splits "[a][b=c]" into its group contents, honoring quotes.
func bracketGroups(s string) ([]string, string, error) {
	var groups []string
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "[") {
		var quote byte
		end := -1
	scan:
		for i := 1; i < len(s); i++ {
			c := s[i]
			switch {
			case c == '\\':
				i++
			case quote != 0 && c == quote:
				quote = 0
			case quote == 0 && (c == '"' || c == '\''):
				quote = c
			case quote == 0 && c == '/' && strings.HasSuffix(strings.TrimSpace(s[1:i]), "="):
				next, ok := skipPattern(s, i)
				if !ok {
					return nil, "", fmt.Errorf("unterminated pattern in %q", s)
				}
				i = next - 1
			case quote == 0 && c == ']':
				end = i
				break scan
			}
		}
		if end == -1 {
			return nil, "", fmt.Errorf("unterminated [ in %q", s)
		}
		groups = append(groups, s[1:end])
		s = strings.TrimSpace(s[end+1:])
	}
	return groups, s, nil
}
