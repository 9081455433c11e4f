// Package tesseract provides the Tesseract-backed term locator. Importing it
// registers the locator as the redact package default.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/redact"
)

func init() {
	redact.SetDefault(NewLocator())
}

// Locator locates search terms on rasterized pages using the gosseract
// client.
type Locator struct {
	clientFactory func() *gosseract.Client
}

// NewLocator constructs a Tesseract-backed locator.
func NewLocator() *Locator {
	return &Locator{clientFactory: gosseract.NewClient}
}

func (l *Locator) Name() string { return "tesseract" }

// Locate recognizes the page image word by word and reports every word that
// matches one of the terms, with bounds mapped back into page space.
func (l *Locator) Locate(ctx context.Context, img redact.PageImage, terms []string, matchCase bool) ([]redact.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, nil
	}
	c := l.clientFactory()
	defer c.Close()

	data, err := cropImage(img.Image, img.Region)
	if err != nil {
		return nil, err
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(img.Languages) > 0 {
		if err := c.SetLanguage(img.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if img.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(img.DPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range img.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}

	var matches []redact.Match
	for _, b := range boxes {
		term, ok := matchTerm(b.Word, terms, matchCase)
		if !ok {
			continue
		}
		matches = append(matches, redact.Match{
			Page:       img.Page,
			Term:       term,
			Bounds:     pageBounds(b.Box, img),
			Confidence: b.Confidence / 100.0,
		})
	}
	return matches, nil
}

// matchTerm reports which term, if any, the recognized word corresponds to.
// Surrounding punctuation is ignored so "confidential," still matches.
func matchTerm(word string, terms []string, matchCase bool) (string, bool) {
	trimmed := strings.TrimFunc(word, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	})
	for _, term := range terms {
		if matchCase {
			if trimmed == term {
				return term, true
			}
		} else if strings.EqualFold(trimmed, term) {
			return term, true
		}
	}
	return "", false
}

// pageBounds maps a pixel box (top-left origin) into page space (bottom-left
// origin). A crop region offsets the box back into full-image pixels first.
func pageBounds(box image.Rectangle, img redact.PageImage) coords.Rect {
	scale := img.Scale
	if scale <= 0 {
		scale = 1
	}
	x := float64(box.Min.X)
	y := float64(box.Min.Y)
	if img.Region != nil {
		x += img.Region.X
		y += img.Region.Y
	}
	w := float64(box.Dx()) / scale
	h := float64(box.Dy()) / scale
	return coords.Rect{
		X: x / scale,
		Y: img.PageHeight - y/scale - h,
		W: w,
		H: h,
	}
}

func cropImage(data []byte, region *redact.Region) ([]byte, error) {
	if region == nil || region.IsEmpty() {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for region: %w", err)
	}
	rect := image.Rect(
		int(math.Round(region.X)),
		int(math.Round(region.Y)),
		int(math.Round(region.X+region.Width)),
		int(math.Round(region.Y+region.Height)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region outside image bounds")
	}
	subImg, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("image does not support sub-image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, subImg.SubImage(rect)); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
