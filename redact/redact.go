// Package redact defines the abstraction for locating search-term
// occurrences on rasterized pages so a redact-text rule can black them out.
// The interface is small and transport-agnostic: locators can be backed by
// native libraries, local binaries, or remote services without leaking
// provider-specific concerns into callers.
package redact

import (
	"context"
	"fmt"

	"github.com/wudi/pdfstudio/coords"
)

// Region describes a rectangular area in pixel coordinates with the origin
// in the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// PageImage is one rasterized page submitted for term location.
type PageImage struct {
	// Page is the 1-based page number the image was rasterized from.
	Page int
	// Image is the encoded PNG payload.
	Image []byte
	// Scale is the rasterization factor in pixels per page-space unit; the
	// locator divides pixel boxes by it to report page-space bounds.
	Scale float64
	// PageHeight is the page height in page-space units, needed to flip the
	// image's top-left origin into the page's bottom-left origin.
	PageHeight float64
	// DPI carries the effective dots-per-inch; zero means unknown.
	DPI int
	// Languages is a list of trained-data hints (e.g. "eng", "deu").
	Languages []string
	// Region restricts recognition to a subsection of the image. Nil means
	// the full image is processed.
	Region *Region
	// Metadata passes engine-specific knobs through without hard-coding
	// them into the API surface.
	Metadata map[string]string
}

// Match is one located term occurrence in page-space coordinates.
type Match struct {
	Page       int
	Term       string
	Bounds     coords.Rect
	Confidence float64
}

// Locator finds occurrences of search terms on rasterized pages.
type Locator interface {
	Name() string
	Locate(ctx context.Context, img PageImage, terms []string, matchCase bool) ([]Match, error)
}

// Option mutates a page image before it is submitted to a locator.
type Option func(*PageImage)

// WithLanguages sets trained-data hints on the page image.
func WithLanguages(langs ...string) Option {
	return func(img *PageImage) { img.Languages = append([]string(nil), langs...) }
}

// WithDPI overrides the DPI value on the page image.
func WithDPI(dpi int) Option {
	return func(img *PageImage) { img.DPI = dpi }
}

// WithRegion restricts recognition to a pixel region of the page image.
func WithRegion(region Region) Option {
	return func(img *PageImage) {
		if region.IsEmpty() {
			img.Region = nil
			return
		}
		img.Region = &region
	}
}

// WithMetadata sets provider-specific metadata for the page image.
func WithMetadata(metadata map[string]string) Option {
	return func(img *PageImage) {
		if len(metadata) == 0 {
			img.Metadata = nil
			return
		}
		img.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			img.Metadata[k] = v
		}
	}
}

// LocatePages runs a locator over several page images sequentially and
// concatenates the matches.
func LocatePages(ctx context.Context, loc Locator, imgs []PageImage, terms []string, matchCase bool, opts ...Option) ([]Match, error) {
	var matches []Match
	for _, img := range imgs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for _, opt := range opts {
			opt(&img)
		}
		found, err := loc.Locate(ctx, img, terms, matchCase)
		if err != nil {
			return nil, fmt.Errorf("locate on page %d: %w", img.Page, err)
		}
		matches = append(matches, found...)
	}
	return matches, nil
}
