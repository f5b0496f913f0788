package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/liuxd6825/xk6-locator/cmd/state"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
	"github.com/liuxd6825/xk6-locator/selector"
)

// partView is how a selector part is printed.
type partView struct {
	Engine  string        `json:"engine" yaml:"engine"`
	Body    string        `json:"body,omitempty" yaml:"body,omitempty"`
	Capture bool          `json:"capture,omitempty" yaml:"capture,omitempty"`
	Nested  *selectorView `json:"nested,omitempty" yaml:"nested,omitempty"`
}

type selectorView struct {
	Selector string     `json:"selector" yaml:"selector"`
	Parts    []partView `json:"parts" yaml:"parts"`
}

func newSelectorView(s *selector.Selector) *selectorView {
	if s == nil {
		return nil
	}
	v := &selectorView{Selector: s.Selector, Parts: make([]partView, 0, len(s.Parts))}
	for i, p := range s.Parts {
		v.Parts = append(v.Parts, partView{
			Engine:  p.Name,
			Body:    p.Body,
			Capture: s.Capture != nil && *s.Capture == i,
			Nested:  newSelectorView(p.Nested),
		})
	}
	return v
}

func parseSelector(sel string) (*selector.Selector, error) {
	s, err := selector.Parse(sel)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidSelector)
	}
	return s, nil
}

type cmdSelector struct {
	gs     *state.GlobalState
	isJSON bool
}

func (c *cmdSelector) print(s *selector.Selector) error {
	v := newSelectorView(s)
	if !c.isJSON {
		return c.gs.Console.PrintYAML(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to produce JSON: %w", err)
	}
	c.gs.Console.Printf("%s\n", data)
	return nil
}

func (c *cmdSelector) parse(_ *cobra.Command, args []string) error {
	s, err := parseSelector(args[0])
	if err != nil {
		return err
	}
	return c.print(s)
}

// combine builds a selector out of parsed operands so that malformed input
// is reported before anything is printed.
func (c *cmdSelector) combine(build func(args []string) string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		for _, a := range args {
			if _, err := parseSelector(a); err != nil {
				return err
			}
		}
		s, err := parseSelector(build(args))
		if err != nil {
			return err
		}
		return c.print(s)
	}
}

func getCmdSelector(gs *state.GlobalState) *cobra.Command {
	c := &cmdSelector{gs: gs}

	selectorCmd := &cobra.Command{
		Use:   "selector",
		Short: "Inspect and build selectors",
		Long: `Inspect and build selectors without a browser.

Selectors are parts joined by " >> ". A part is engine=body, or a bare body
whose engine is inferred: quoted text is a text selector, // starts an XPath
selector and anything else is CSS.`,
	}
	selectorCmd.PersistentFlags().BoolVar(&c.isJSON, "json", false, "print JSON instead of YAML")

	selectorCmd.AddCommand(
		&cobra.Command{
			Use:     "parse <selector>",
			Short:   "Print the parts of a selector",
			Example: `  xk6-locator selector parse 'div.list >> text="Sign in" >> nth=0'`,
			Args:    cobra.ExactArgs(1),
			RunE:    c.parse,
		},
		&cobra.Command{
			Use:   "chain <selector> <selector>...",
			Short: "Resolve each selector inside the matches of the previous one",
			Args:  cobra.MinimumNArgs(2),
			RunE: c.combine(func(args []string) string {
				sel := args[0]
				for _, a := range args[1:] {
					sel = selector.Chain(sel, a)
				}
				return sel
			}),
		},
		&cobra.Command{
			Use:     "nth <selector> <index>",
			Short:   "Pick one match by index, negative from the end",
			Example: `  xk6-locator selector nth li -- -1`,
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				i, err := strconv.Atoi(args[1])
				if err != nil {
					return errext.WithExitCodeIfNone(fmt.Errorf("invalid index %q", args[1]), exitcodes.InvalidSelector)
				}
				return c.combine(func(args []string) string {
					return selector.Nth(args[0], i)
				})(cmd, args[:1])
			},
		},
		&cobra.Command{
			Use:   "and <selector> <selector>",
			Short: "Match elements matched by both selectors",
			Args:  cobra.ExactArgs(2),
			RunE: c.combine(func(args []string) string {
				return selector.And(args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "or <selector> <selector>",
			Short: "Match elements matched by either selector",
			Args:  cobra.ExactArgs(2),
			RunE: c.combine(func(args []string) string {
				return selector.Or(args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "has <selector> <inner>",
			Short: "Match elements containing a match of inner",
			Args:  cobra.ExactArgs(2),
			RunE: c.combine(func(args []string) string {
				return selector.Has(args[0], args[1])
			}),
		},
	)

	return selectorCmd
}
