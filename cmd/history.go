package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liuxd6825/xk6-locator/cmd/state"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
)

// errNoHistoryEntry is returned when the page did not move through its
// history.
var errNoHistoryEntry = errors.New("page did not navigate")

type historyCmd struct {
	gs      *state.GlobalState
	forward bool
}

func (c *historyCmd) direction() string {
	if c.forward {
		return "forward"
	}
	return "back"
}

func (c *historyCmd) run(cmd *cobra.Command, _ []string) (err error) {
	conf, err := loadConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := conf.WrapLogger(c.gs.Logger)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	b, err := openBrowser(c.gs.Ctx, c.gs, conf, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	nav := b.History()
	var ok bool
	if c.forward {
		ok = nav.GoForward(c.gs.Ctx)
	} else {
		ok = nav.GoBack(c.gs.Ctx)
	}
	if !ok {
		c.gs.Console.Printf("%s\n", c.gs.Console.Failure("✗ "+c.direction()))
		return errext.WithExitCodeIfNone(
			fmt.Errorf("going %s: %w", c.direction(), errNoHistoryEntry), exitcodes.NavigationFailed)
	}
	if !c.gs.Flags.Quiet {
		c.gs.Console.Printf("%s\n", c.gs.Console.Success("✓ "+c.direction()))
	}
	return nil
}

func getCmdBack(gs *state.GlobalState) *cobra.Command {
	c := &historyCmd{gs: gs}
	return &cobra.Command{
		Use:   "back",
		Short: "Move the browser's current page back in its history",
		Long: `Move the browser's current page back in its history.

Without --ws-url a new browser is launched, which has no history to go back
through, so this is mostly useful against a running browser.`,
		Example: `  xk6-locator back --ws-url ws://127.0.0.1:9222/devtools/browser/<id>`,
		Args:    cobra.NoArgs,
		RunE:    c.run,
	}
}

func getCmdForward(gs *state.GlobalState) *cobra.Command {
	c := &historyCmd{gs: gs, forward: true}
	return &cobra.Command{
		Use:     "forward",
		Short:   "Move the browser's current page forward in its history",
		Example: `  xk6-locator forward --ws-url ws://127.0.0.1:9222/devtools/browser/<id>`,
		Args:    cobra.NoArgs,
		RunE:    c.run,
	}
}
