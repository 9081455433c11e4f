package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/wudi/pdfstudio/document"
)

// Rasterize renders one page to PNG at the given scale. The output is a
// schematic proof of the page model, not typeset content: the page is white
// with one gray band per recorded content mark.
func (e *Engine) Rasterize(ctx context.Context, h document.Handle, page int, scale float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state, err := e.state(h.ID())
	if err != nil {
		return nil, err
	}
	if page < 1 || page > len(state.pages) {
		return nil, fmt.Errorf("render: page %d outside [1, %d]", page, len(state.pages))
	}
	if scale <= 0 {
		scale = 1.0
	}

	base, err := renderPage(state.pages[page-1])
	if err != nil {
		return nil, err
	}
	out := base
	if scale != 1.0 {
		scaled := image.NewRGBA(image.Rect(0, 0,
			int(math.Round(float64(base.Bounds().Dx())*scale)),
			int(math.Round(float64(base.Bounds().Dy())*scale)),
		))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), base, base.Bounds(), xdraw.Over, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page, err)
	}
	return buf.Bytes(), nil
}

// rasterizePage renders without scaling, for the redaction locator.
func rasterizePage(p pageState) ([]byte, error) {
	img, err := renderPage(p)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPage(p pageState) (*image.RGBA, error) {
	w := int(math.Round(p.size.Width))
	h := int(math.Round(p.size.Height))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("render: page has no printable area (%gx%g)", p.size.Width, p.size.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	band := h / 12
	if band < 1 {
		band = 1
	}
	gray := image.NewUniform(color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xFF})
	for i := range p.marks {
		top := (i + 1) * band
		if top+band > h {
			break
		}
		r := image.Rect(w/10, top, w-w/10, top+band/2)
		xdraw.Draw(img, r, gray, image.Point{}, xdraw.Src)
	}
	return img, nil
}

// exportedPage is the wire form of one page in an exported snapshot.
type exportedPage struct {
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Rotation int      `json:"rotation,omitempty"`
	Marks    []string `json:"marks,omitempty"`
}

// Export serializes a document version for persistence. The payload is the
// engine's page-model snapshot; a production engine would emit the actual
// container bytes here.
func (e *Engine) Export(ctx context.Context, h document.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state, err := e.state(h.ID())
	if err != nil {
		return nil, err
	}
	pages := make([]exportedPage, len(state.pages))
	for i, p := range state.pages {
		ep := exportedPage{Width: p.size.Width, Height: p.size.Height, Rotation: p.rotation}
		for _, m := range p.marks {
			ep.Marks = append(ep.Marks, string(m.op)+":"+m.detail)
		}
		pages[i] = ep
	}
	return json.Marshal(struct {
		Format    string         `json:"format"`
		Encrypted bool           `json:"encrypted"`
		ByteSize  int64          `json:"byte_size"`
		Pages     []exportedPage `json:"pages"`
	}{
		Format:    string(state.format),
		Encrypted: len(state.encKey) > 0,
		ByteSize:  state.meta.ByteSize,
		Pages:     pages,
	})
}
