package chromium

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// namedKeys maps DOM key names such as "Enter" or "ArrowLeft" to the rune
// package kb encodes them with.
var namedKeys = func() map[string]rune {
	m := make(map[string]rune)
	for r, k := range kb.Keys {
		if utf8.RuneCountInString(k.Key) < 2 {
			continue
		}
		if prev, ok := m[k.Key]; !ok || r < prev {
			m[k.Key] = r
		}
	}
	return m
}()

var modifierKeys = map[string]input.Modifier{
	"Alt":     input.ModifierAlt,
	"Control": input.ModifierCtrl,
	"Meta":    input.ModifierMeta,
	"Shift":   input.ModifierShift,
}

// inputDispatcher sends trusted mouse, touch and keyboard events to a tab.
// Coordinates are relative to the top level viewport.
type inputDispatcher struct {
	executor cdp.Executor
}

func (in *inputDispatcher) run(ctx context.Context, actions ...chromedp.Action) error {
	ctx = cdp.WithExecutor(ctx, in.executor)
	for _, a := range actions {
		if err := a.Do(ctx); err != nil {
			return fmt.Errorf("dispatching input: %w", err)
		}
	}
	return nil
}

func modifiersOf(names []string) input.Modifier {
	var m input.Modifier
	for _, n := range names {
		if n == "ControlOrMeta" {
			n = "Control"
		}
		m |= modifierKeys[n]
	}
	return m
}

func mouseButton(name string) input.MouseButton {
	switch name {
	case "right":
		return input.Right
	case "middle":
		return input.Middle
	}
	return input.Left
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return chromedp.Sleep(d).Do(ctx)
}

func (in *inputDispatcher) move(ctx context.Context, x, y float64, modifiers []string) error {
	return in.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y,
		chromedp.ButtonModifiers(modifiersOf(modifiers))))
}

// click moves to x, y and presses button count times, holding it for delay.
func (in *inputDispatcher) click(
	ctx context.Context, x, y float64, button string, count int, delay time.Duration, modifiers []string,
) error {
	if count < 1 {
		count = 1
	}
	if err := in.move(ctx, x, y, modifiers); err != nil {
		return err
	}
	mods := chromedp.ButtonModifiers(modifiersOf(modifiers))
	btn := chromedp.ButtonType(mouseButton(button))
	for i := 1; i <= count; i++ {
		clicks := chromedp.ClickCount(i)
		if err := in.run(ctx, chromedp.MouseEvent(input.MousePressed, x, y, btn, clicks, mods)); err != nil {
			return err
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		if err := in.run(ctx, chromedp.MouseEvent(input.MouseReleased, x, y, btn, clicks, mods)); err != nil {
			return err
		}
	}
	return nil
}

func (in *inputDispatcher) dblclick(
	ctx context.Context, x, y float64, button string, delay time.Duration, modifiers []string,
) error {
	return in.click(ctx, x, y, button, 2, delay, modifiers)
}

func (in *inputDispatcher) tap(ctx context.Context, x, y float64, modifiers []string) error {
	mods := modifiersOf(modifiers)
	return in.run(ctx,
		input.DispatchTouchEvent(input.TouchStart, []*input.TouchPoint{{X: x, Y: y}}).WithModifiers(mods),
		input.DispatchTouchEvent(input.TouchEnd, []*input.TouchPoint{}).WithModifiers(mods),
	)
}

// splitKeyCombo splits "Control+Shift+A" into its keys. A "+" right after a
// separator is the plus key itself.
func splitKeyCombo(combo string) []string {
	var keys []string
	start := 0
	for i := 0; i < len(combo); i++ {
		if combo[i] == '+' && i > start {
			keys = append(keys, combo[start:i])
			start = i + 1
		}
	}
	return append(keys, combo[start:])
}

// keyRune returns the rune kb encodes key with.
func keyRune(key string) (rune, error) {
	if r, ok := namedKeys[key]; ok {
		return r, nil
	}
	if utf8.RuneCountInString(key) == 1 {
		r, _ := utf8.DecodeRuneInString(key)
		return r, nil
	}
	return 0, fmt.Errorf("unknown key: %q", key)
}

// press presses a key combination such as "Shift+ArrowLeft": the modifiers
// are held while the last key is pressed and released after delay.
func (in *inputDispatcher) press(ctx context.Context, combo string, delay time.Duration) error {
	keys := splitKeyCombo(combo)
	key, held := keys[len(keys)-1], keys[:len(keys)-1]

	var mods input.Modifier
	for _, k := range held {
		m, ok := modifierKeys[k]
		if k == "ControlOrMeta" {
			m, ok = input.ModifierCtrl, true
			k = "Control"
		}
		if !ok {
			return fmt.Errorf("%q is not a modifier key in %q", k, combo)
		}
		mods |= m
		if err := in.modifierEvent(ctx, input.KeyDown, k, mods); err != nil {
			return err
		}
	}

	r, err := keyRune(key)
	if err != nil {
		return err
	}
	events := kb.Encode(r)
	for i, ev := range events {
		ev.Modifiers |= mods
		if mods&^input.ModifierShift != 0 {
			// Shortcuts do not produce text.
			ev.Text, ev.UnmodifiedText = "", ""
			if ev.Type == input.KeyChar {
				continue
			}
		}
		if i == len(events)-1 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		if err := in.run(ctx, ev); err != nil {
			return err
		}
	}

	for i := len(held) - 1; i >= 0; i-- {
		k := held[i]
		if k == "ControlOrMeta" {
			k = "Control"
		}
		mods &^= modifierKeys[k]
		if err := in.modifierEvent(ctx, input.KeyUp, k, mods); err != nil {
			return err
		}
	}
	return nil
}

func (in *inputDispatcher) modifierEvent(ctx context.Context, typ input.KeyType, key string, mods input.Modifier) error {
	k := kb.Keys[namedKeys[key]]
	ev := input.DispatchKeyEvent(typ).WithKey(key).WithModifiers(mods)
	if k != nil {
		ev = ev.WithCode(k.Code).WithWindowsVirtualKeyCode(k.Windows).WithNativeVirtualKeyCode(k.Native)
	}
	return in.run(ctx, ev)
}

// typeText types text one rune at a time, pausing delay between runes.
func (in *inputDispatcher) typeText(ctx context.Context, text string, delay time.Duration) error {
	first := true
	for _, r := range text {
		if !first {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		first = false
		if err := in.run(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return err
		}
	}
	return nil
}
