package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/xk6-locator/browser"
	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
	"github.com/liuxd6825/xk6-locator/ui/console"
)

// stepScript is a YAML file of steps run in order against one page.
//
//	url: https://example.com/login
//	steps:
//	  - { action: fill, selector: "#user", value: ada }
//	  - action: click
//	    selector: role=button[name="Sign in"]
//	  - action: expect
//	    selector: h1
//	    text: Welcome
type stepScript struct {
	URL   string `yaml:"url"`
	Steps []step `yaml:"steps"`
}

type step struct {
	Name     string        `yaml:"name"`
	Action   string        `yaml:"action"`
	Selector string        `yaml:"selector"`
	Value    string        `yaml:"value"`
	Values   []string      `yaml:"values"`
	Key      string        `yaml:"key"`
	State    string        `yaml:"state"`
	Timeout  time.Duration `yaml:"timeout"`
	Force    bool          `yaml:"force"`

	// expectations of the expect action
	Text    *string `yaml:"text"`
	Count   *int    `yaml:"count"`
	Visible *bool   `yaml:"visible"`
}

func (s step) String() string {
	if s.Name != "" {
		return s.Name
	}
	switch {
	case s.Selector != "":
		return s.Action + " " + s.Selector
	case s.Value != "":
		return s.Action + " " + s.Value
	default:
		return s.Action
	}
}

var errStepFailed = errors.New("step failed")

// parseStepScript decodes a step script. Unknown keys are rejected.
func parseStepScript(data []byte) (*stepScript, error) {
	var sc stepScript
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("parsing step script: %w", err), exitcodes.InvalidConfig)
	}
	for i, s := range sc.Steps {
		if err := s.validate(); err != nil {
			return nil, errext.WithExitCodeIfNone(fmt.Errorf("step %d: %w", i+1, err), exitcodes.InvalidConfig)
		}
	}
	return &sc, nil
}

func (s step) validate() error {
	needsSelector := true
	switch s.Action {
	case "goto":
		if s.Value == "" {
			return errors.New("goto needs a value")
		}
		needsSelector = false
	case "back", "forward":
		needsSelector = false
	case "press":
		if s.Key == "" {
			return errors.New("press needs a key")
		}
	case "expect":
		if s.Text == nil && s.Count == nil && s.Visible == nil {
			return errors.New("expect needs text, count or visible")
		}
	case "wait":
		if s.State != "" {
			var st common.DOMElementState
			if err := st.UnmarshalText([]byte(s.State)); err != nil {
				return err //nolint:wrapcheck
			}
		}
	case "click", "dblclick", "hover", "tap", "fill", "clear", "type", "check", "uncheck", "select", "focus", "blur":
	case "":
		return errors.New("action is required")
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if needsSelector && s.Selector == "" {
		return fmt.Errorf("%s needs a selector", s.Action)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", s.Timeout)
	}
	return nil
}

// stepRunner runs step scripts against a page and reports each step to
// the console.
type stepRunner struct {
	ctx     context.Context
	page    browser.Page
	console *console.Console
	quiet   bool
}

// run runs every step and stops at the first failure.
func (r *stepRunner) run(sc *stepScript) error {
	if sc.URL != "" {
		if err := r.step(step{Action: "goto", Value: sc.URL}); err != nil {
			return err
		}
	}
	for _, s := range sc.Steps {
		if err := r.step(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *stepRunner) step(s step) error {
	start := time.Now()
	err := r.do(s)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		r.console.Printf("%s %s\n", r.console.Failure("✗ "+s.String()), r.console.Faint(elapsed.String()))
		return fmt.Errorf("%s: %w", s, err)
	}
	if !r.quiet {
		r.console.Printf("%s %s\n", r.console.Success("✓ "+s.String()), r.console.Faint(elapsed.String()))
	}
	return nil
}

func (r *stepRunner) locator(s step) (*common.Locator, error) {
	mf := r.page.MainFrame()
	if mf == nil {
		return nil, errors.New("page has no main frame")
	}
	return mf.Locator(s.Selector, nil), nil
}

func (r *stepRunner) do(s step) error {
	switch s.Action {
	case "goto":
		nav, ok := r.page.(browser.Navigator)
		if !ok {
			return errors.New("page cannot navigate")
		}
		_, err := nav.Navigate(r.ctx, s.Value, s.Timeout)
		return err //nolint:wrapcheck
	case "back", "forward":
		move := r.page.GoBack
		if s.Action == "forward" {
			move = r.page.GoForward
		}
		if !move(r.ctx) {
			return errext.WithExitCodeIfNone(errNoHistoryEntry, exitcodes.NavigationFailed)
		}
		return nil
	}

	l, err := r.locator(s)
	if err != nil {
		return err
	}
	ao := common.ActionOptions{Timeout: s.Timeout, Force: s.Force}

	switch s.Action {
	case "click":
		return l.Click(&common.ClickOptions{ActionOptions: ao}) //nolint:wrapcheck
	case "dblclick":
		return l.Dblclick(&common.DblclickOptions{ActionOptions: ao}) //nolint:wrapcheck
	case "hover":
		return l.Hover(&common.HoverOptions{ActionOptions: ao}) //nolint:wrapcheck
	case "tap":
		return l.Tap(&common.HoverOptions{ActionOptions: ao}) //nolint:wrapcheck
	case "fill":
		return l.Fill(s.Value, &ao) //nolint:wrapcheck
	case "clear":
		return l.Clear(&ao) //nolint:wrapcheck
	case "press":
		return l.Press(s.Key, &common.KeyboardOptions{ActionOptions: ao}) //nolint:wrapcheck
	case "type":
		return l.Type(s.Value, &common.KeyboardOptions{ActionOptions: ao}) //nolint:wrapcheck
	case "check":
		return l.Check(&common.CheckOptions{ActionOptions: ao}) //nolint:wrapcheck
	case "uncheck":
		return l.Uncheck(&common.CheckOptions{ActionOptions: ao}) //nolint:wrapcheck
	case "select":
		values := s.Values
		if len(values) == 0 {
			values = []string{s.Value}
		}
		opts := make([]dom.SelectOptionValue, 0, len(values))
		for _, v := range values {
			opts = append(opts, dom.SelectOptionValue{Value: null.StringFrom(v)})
		}
		_, err := l.SelectOption(opts, &ao)
		return err //nolint:wrapcheck
	case "focus":
		return l.Focus(&ao) //nolint:wrapcheck
	case "blur":
		return l.Blur(&ao) //nolint:wrapcheck
	case "wait":
		wo := &common.LocatorWaitForOptions{State: common.DOMElementStateVisible, Timeout: s.Timeout}
		if s.State != "" {
			if err := wo.State.UnmarshalText([]byte(s.State)); err != nil {
				return err //nolint:wrapcheck
			}
		}
		return l.WaitFor(wo) //nolint:wrapcheck
	case "expect":
		return r.expect(l, s, &ao)
	}
	return fmt.Errorf("unknown action %q", s.Action)
}

// expect checks the expectations of s once. Text is compared with the
// whitespace trimmed inner text of the single matching element.
func (r *stepRunner) expect(l *common.Locator, s step, ao *common.ActionOptions) error {
	if s.Count != nil {
		n, err := l.Count()
		if err != nil {
			return err //nolint:wrapcheck
		}
		if n != *s.Count {
			return fmt.Errorf("%w: expected %d elements, got %d", errStepFailed, *s.Count, n)
		}
	}
	if s.Visible != nil {
		v, err := l.IsVisible()
		if err != nil {
			return err //nolint:wrapcheck
		}
		if v != *s.Visible {
			return fmt.Errorf("%w: expected visible to be %t", errStepFailed, *s.Visible)
		}
	}
	if s.Text != nil {
		text, err := l.InnerText(ao)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if got := strings.TrimSpace(text); got != *s.Text {
			return fmt.Errorf("%w: expected text %q, got %q", errStepFailed, *s.Text, got)
		}
	}
	return nil
}
