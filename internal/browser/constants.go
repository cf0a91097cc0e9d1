// Package browser drives Chromium for end-to-end checks.
// It hides the automation library behind the Browser and Page interfaces so
// scenarios can run on Playwright or on raw CDP (chromedp).
package browser

import "time"

// Driver names
const (
	// DriverPlaywright uses playwright-go with a Playwright-managed Chromium.
	DriverPlaywright = "playwright"

	// DriverChromedp talks CDP directly to a local Chrome/Chromium.
	DriverChromedp = "chromedp"
)

// Defaults
const (
	DefaultActionTimeout     = 10 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
	DefaultDragSteps         = 12

	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
)
