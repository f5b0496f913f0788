package chromium

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"
)

// defaultSwitches are turned on for every launched browser. They keep
// background work and first run UI from interfering with automation.
var defaultSwitches = []string{
	"disable-background-networking",
	"disable-background-timer-throttling",
	"disable-backgrounding-occluded-windows",
	"disable-breakpad",
	"disable-component-extensions-with-background-pages",
	"disable-default-apps",
	"disable-dev-shm-usage",
	"disable-extensions",
	"disable-hang-monitor",
	"disable-ipc-flooding-protection",
	"disable-popup-blocking",
	"disable-prompt-on-repost",
	"disable-renderer-backgrounding",
	"enable-automation",
	"metrics-recording-only",
	"no-default-browser-check",
	"no-first-run",
	"no-service-autorun",
	"use-mock-keychain",
}

var defaultValues = map[string]string{
	"disable-features": strings.Join([]string{
		"ImprovedCookieControls", "LazyFrameLoading", "GlobalMediaControls",
		"DestroyProfileOnBrowserClose", "MediaRouter", "AcceptCHFrame",
		// keep cross-origin iframes in the tab's session
		"IsolateOrigins", "site-per-process",
	}, ","),
	"enable-features":     "NetworkService,NetworkServiceInProcess",
	"force-color-profile": "srgb",
	"password-store":      "basic",
	"window-size":         "800,600",
}

// headlessValues are added in headless mode so that pages see a touch
// device without hover.
var headlessValues = map[string]any{
	"hide-scrollbars": true,
	"mute-audio":      true,
	"blink-settings":  "primaryHoverType=2,availableHoverTypes=2,primaryPointerType=4,availablePointerTypes=4",
}

// prepareFlags returns the command line flags a launched browser starts
// with. Values are either a bool switch or a string.
func prepareFlags(lopts *LaunchOptions) map[string]any {
	flags := make(map[string]any, len(defaultSwitches)+len(defaultValues)+2)
	for _, name := range defaultSwitches {
		flags[name] = true
	}
	for name, v := range defaultValues {
		flags[name] = v
	}
	flags["headless"] = lopts.Headless
	flags["auto-open-devtools-for-tabs"] = lopts.Devtools
	if lopts.Headless {
		for name, v := range headlessValues {
			flags[name] = v
		}
	}

	for _, name := range lopts.IgnoreDefaultArgs {
		delete(flags, strings.TrimPrefix(name, "--"))
	}
	for _, arg := range lopts.Args {
		name, value, hasValue := strings.Cut(arg, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "--")
		switch {
		case name == "":
		case hasValue:
			flags[name] = trimQuotes(strings.TrimSpace(value))
		default:
			flags[name] = true
		}
	}
	return flags
}

// trimQuotes removes one pair of matching single or double quotes.
func trimQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
		return s[1 : len(s)-1]
	}
	return s
}

// allocatorOptions turns flags into exec allocator options, sorted by name
// so the browser command line is reproducible.
func allocatorOptions(flags map[string]any) ([]chromedp.ExecAllocatorOption, error) {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]chromedp.ExecAllocatorOption, 0, len(names))
	for _, name := range names {
		switch v := flags[name].(type) {
		case string, bool:
			opts = append(opts, chromedp.Flag(name, v))
		default:
			return nil, fmt.Errorf(`invalid browser command line flag: "%s=%v"`, name, v)
		}
	}
	return opts, nil
}
