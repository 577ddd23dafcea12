// internal/browser/options.go
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/spacewatch/internal/config"
)

// LaunchFlags resolves the Chromium command-line flags for cfg. Entries in
// cfg.Args are either boolean switches or key=value pairs; a leading "--" is
// optional.
func LaunchFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"no-sandbox":               true,
		"disable-gpu":              true,
		"enable-automation":        true,
		"no-first-run":             true,
		"no-default-browser-check": true,
		"hide-scrollbars":          true,
		"mute-audio":               true,
	}
	if cfg.Headless {
		flags["headless"] = true
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		key, value, found := strings.Cut(arg, "=")
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for cfg. Viewport
// dimensions become the initial window size when both are set.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	flags := LaunchFlags(cfg)
	opts := make([]chromedp.ExecAllocatorOption, 0, len(flags)+1)
	for key, value := range flags {
		opts = append(opts, chromedp.Flag(key, value))
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}
	return opts
}
