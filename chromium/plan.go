package chromium

import (
	"fmt"

	"github.com/liuxd6825/xk6-locator/selector"
)

// plan is a parsed selector in the shape the injected script evaluates.
// Text predicates, attribute and role bodies are decoded on this side so
// the script never parses selector syntax.
type plan struct {
	Parts   []*planPart `json:"parts"`
	Capture int         `json:"capture"`
}

type planPart struct {
	Engine  string      `json:"engine"`
	Body    string      `json:"body,omitempty"`
	Text    *planText   `json:"text,omitempty"`
	Attr    string      `json:"attr,omitempty"`
	Role    *planRole   `json:"role,omitempty"`
	Nth     int         `json:"nth,omitempty"`
	Visible bool        `json:"visible,omitempty"`
	Nested  *plan       `json:"nested,omitempty"`
}

type planText struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Flags string `json:"flags,omitempty"`
}

type planRole struct {
	Role          string    `json:"role"`
	Name          *planText `json:"name,omitempty"`
	Checked       *bool     `json:"checked,omitempty"`
	Disabled      *bool     `json:"disabled,omitempty"`
	Expanded      *bool     `json:"expanded,omitempty"`
	Pressed       *bool     `json:"pressed,omitempty"`
	Selected      *bool     `json:"selected,omitempty"`
	IncludeHidden bool      `json:"includeHidden,omitempty"`
	Level         int       `json:"level,omitempty"`
}

// engines maps selector engines to the names the injected script knows.
var engines = map[string]string{
	selector.EngineCSS:          "css",
	selector.EngineXPath:        "xpath",
	selector.EngineID:           "id",
	selector.EngineText:         "text",
	selector.EngineInternalText: "text",
	selector.EngineLabel:        "label",
	selector.EngineAttr:         "attr",
	selector.EngineTestID:       "attr",
	selector.EngineRole:         "role",
	selector.EngineNth:          "nth",
	selector.EngineVisible:      "visible",
	selector.EngineHas:          "has",
	selector.EngineHasNot:       "has-not",
	selector.EngineHasText:      "has-text",
	selector.EngineHasNotText:   "has-not-text",
	selector.EngineAnd:          "and",
	selector.EngineOr:           "or",
	selector.EngineChain:        "chain",
}

func compilePlan(s *selector.Selector) (*plan, error) {
	if s == nil || len(s.Parts) == 0 {
		return nil, fmt.Errorf("compiling selector: empty selector")
	}
	p := &plan{Parts: make([]*planPart, 0, len(s.Parts)), Capture: -1}
	if s.Capture != nil {
		p.Capture = *s.Capture
	}
	for _, part := range s.Parts {
		pp, err := compilePart(part)
		if err != nil {
			return nil, fmt.Errorf("compiling selector %q: %w", s.Selector, err)
		}
		p.Parts = append(p.Parts, pp)
	}
	return p, nil
}

func compilePart(part *selector.Part) (*planPart, error) {
	if part.IsEnterFrame() {
		return &planPart{Engine: "enter-frame"}, nil
	}
	engine, ok := engines[part.Name]
	if !ok {
		return nil, fmt.Errorf("selector engine %q is not supported", part.Name)
	}
	pp := &planPart{Engine: engine}

	switch part.Name {
	case selector.EngineCSS, selector.EngineXPath, selector.EngineID:
		pp.Body = part.Body
	case selector.EngineText, selector.EngineInternalText, selector.EngineLabel,
		selector.EngineHasText, selector.EngineHasNotText:
		m, err := selector.ParseTextMatch(part.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part.Name, err)
		}
		pp.Text = textPlan(m)
	case selector.EngineAttr, selector.EngineTestID:
		name, m, err := selector.ParseAttr(part.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part.Name, err)
		}
		pp.Attr, pp.Text = name, textPlan(m)
	case selector.EngineRole:
		role, opts, err := selector.ParseRole(part.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part.Name, err)
		}
		pp.Role = &planRole{
			Role:          role,
			Checked:       opts.Checked,
			Disabled:      opts.Disabled,
			Expanded:      opts.Expanded,
			Pressed:       opts.Pressed,
			Selected:      opts.Selected,
			IncludeHidden: opts.IncludeHidden,
			Level:         opts.Level,
		}
		if opts.Name != nil {
			pp.Role.Name = textPlan(*opts.Name)
		}
	case selector.EngineNth:
		pp.Nth = part.Nth()
	case selector.EngineVisible:
		pp.Visible = part.Body == "true"
	case selector.EngineHas, selector.EngineHasNot, selector.EngineAnd,
		selector.EngineOr, selector.EngineChain:
		nested, err := compilePlan(part.Nested)
		if err != nil {
			return nil, err
		}
		pp.Nested = nested
	}

	return pp, nil
}

func textPlan(m selector.TextMatch) *planText {
	switch m.Kind {
	case selector.TextRegexp:
		return &planText{Kind: "regexp", Text: m.Text, Flags: m.Flags}
	case selector.TextExact:
		return &planText{Kind: "exact", Text: m.Text}
	default:
		return &planText{Kind: "substring", Text: m.Text}
	}
}
