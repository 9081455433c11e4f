package redact

import "context"

var defaultLocator Locator = noopLocator{}

// Default returns the process-wide default locator. Importing the tesseract
// subpackage replaces the noop with the Tesseract-backed locator.
func Default() Locator {
	return defaultLocator
}

// SetDefault replaces the process-wide default locator.
func SetDefault(loc Locator) {
	defaultLocator = loc
}

// noopLocator finds nothing. It keeps redaction runnable in builds without a
// recognition engine: the content is still marked, just not box-targeted.
type noopLocator struct{}

func (noopLocator) Name() string { return "noop" }

func (noopLocator) Locate(context.Context, PageImage, []string, bool) ([]Match, error) {
	return nil, nil
}
