package render

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/wudi/pdfstudio/estimate"
	"github.com/wudi/pdfstudio/redact"
	"github.com/wudi/pdfstudio/rules"
)

const (
	keyIterations = 4096
	keyLength     = 32
)

// apply computes the successor state for one rule. It never mutates the
// input state: page slices are rebuilt, so a failed rule leaves no trace.
func (e *Engine) apply(ctx context.Context, docID string, state *docState, r rules.Rule) (*docState, error) {
	projected, err := derefRule(r).Project(state.meta, e.lookup())
	if err != nil {
		return nil, err
	}
	next := &docState{
		meta:   projected,
		pages:  clonePages(state.pages),
		format: state.format,
		encKey: state.encKey,
		salt:   state.salt,
	}

	switch v := derefRule(r).(type) {
	case rules.RemovePages:
		drop := make(map[int]bool)
		for _, p := range v.Pages {
			drop[p] = true
		}
		kept := next.pages[:0]
		for i, pg := range next.pages {
			if !drop[i+1] {
				kept = append(kept, pg)
			}
		}
		next.pages = kept

	case rules.RotatePages:
		// Duplicate page references rotate once, matching the metadata
		// projection's de-duplication.
		for p := range pageSet(v.Pages) {
			if p >= 1 && p <= len(next.pages) {
				next.pages[p-1].rotation = (next.pages[p-1].rotation + v.Angle + 360) % 360
			}
		}

	case rules.ExtractPages:
		next.pages = append([]pageState(nil), next.pages[v.Start-1:v.End]...)

	case rules.RearrangePages:
		reordered := make([]pageState, 0, len(v.Order))
		for _, p := range v.Order {
			reordered = append(reordered, state.pages[p-1])
		}
		next.pages = clonePages(reordered)

	case rules.AddBlankPages:
		inserted := make([]pageState, 0, len(state.pages)+v.Count)
		inserted = append(inserted, next.pages[:v.After]...)
		for i := 0; i < v.Count; i++ {
			inserted = append(inserted, pageState{})
		}
		inserted = append(inserted, next.pages[v.After:]...)
		next.pages = inserted

	case rules.SplitDocument:
		selected := make([]pageState, 0, projected.PageCount)
		for _, rg := range v.Ranges {
			selected = append(selected, state.pages[rg.Start-1:rg.End]...)
		}
		next.pages = clonePages(selected)

	case rules.MergeDocuments:
		for _, id := range v.Sources {
			src, err := e.state(id)
			if err != nil {
				return nil, err
			}
			next.pages = append(next.pages, clonePages(src.pages)...)
		}

	case rules.CropPages, rules.ResizePages:
		// Dimension changes come from the metadata projection below.

	case rules.Compress:
		est, err := estimate.ForRule(state.meta.ByteSize, v)
		if err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
		next.meta.ByteSize = est.EstimatedSizeBytes
		e.markAll(next, r.Kind(), string(v.Level))

	case rules.ConvertFormat:
		next.format = v.Format

	case rules.AddWatermark:
		e.markPages(next, v.Pages, r.Kind(), v.Text)

	case rules.AddImage:
		if e.blobs != nil && !e.blobs.Has(v.ImageRef) {
			return nil, fmt.Errorf("image %s is not in the blob store", v.ImageRef)
		}
		e.markPages(next, v.Pages, r.Kind(), v.ImageRef)

	case rules.AddHeaderFooter:
		e.markPages(next, v.Pages, r.Kind(), v.Header+"|"+v.Footer)

	case rules.AddPageNumbers:
		e.markAll(next, r.Kind(), v.Template)

	case rules.AddTextAnnotation:
		e.markPages(next, []int{v.Page}, r.Kind(), v.Text)

	case rules.AddBackground:
		e.markPages(next, v.Pages, r.Kind(), "")

	case rules.AddBorder:
		e.markPages(next, v.Pages, r.Kind(), "")

	case rules.RedactText:
		if err := e.applyRedaction(ctx, state, next, v); err != nil {
			return nil, err
		}

	case rules.PasswordProtect:
		if err := applyProtect(docID, next, v); err != nil {
			return nil, err
		}

	case rules.RemovePassword:
		if err := applyUnprotect(next, v); err != nil {
			return nil, err
		}

	case rules.ApplyOverlay:
		if err := e.applyOverlay(next, v); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported rule kind %q", r.Kind())
	}

	// The metadata projection is authoritative for page dimensions.
	for i := range next.pages {
		if i < len(next.meta.Pages) {
			next.pages[i].size = next.meta.Pages[i]
		}
	}
	return next, nil
}

// applyRedaction rasterizes the target pages, locates the terms, and records
// one redaction mark per match. Zero matches is still a success.
func (e *Engine) applyRedaction(ctx context.Context, state, next *docState, r rules.RedactText) error {
	pages := r.Pages
	if len(pages) == 0 {
		pages = make([]int, len(state.pages))
		for i := range pages {
			pages[i] = i + 1
		}
	}
	imgs := make([]redact.PageImage, 0, len(pages))
	for p := range pageSet(pages) {
		if p < 1 || p > len(state.pages) {
			continue
		}
		png, err := rasterizePage(state.pages[p-1])
		if err != nil {
			return fmt.Errorf("rasterize page %d: %w", p, err)
		}
		imgs = append(imgs, redact.PageImage{
			Page:       p,
			Image:      png,
			Scale:      1.0,
			PageHeight: state.pages[p-1].size.Height,
		})
	}
	matches, err := redact.LocatePages(ctx, e.locator, imgs, r.Terms, r.MatchCase, e.locatorOpts...)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m.Page < 1 || m.Page > len(next.pages) {
			continue
		}
		next.pages[m.Page-1].marks = append(next.pages[m.Page-1].marks, mark{
			op:     r.Kind(),
			detail: m.Term,
		})
	}
	return nil
}

// applyOverlay records every element before committing any of them, so a bad
// element leaves no partial overlay behind.
func (e *Engine) applyOverlay(next *docState, r rules.ApplyOverlay) error {
	additions := make(map[int][]mark)
	for _, el := range r.Elements {
		if el.Type == rules.ElementImage && e.blobs != nil && !e.blobs.Has(el.ImageRef) {
			return fmt.Errorf("overlay image %s is not in the blob store", el.ImageRef)
		}
		if el.Page < 1 || el.Page > len(next.pages) {
			return fmt.Errorf("overlay element %s targets page %d of %d", el.ID, el.Page, len(next.pages))
		}
		additions[el.Page] = append(additions[el.Page], mark{op: r.Kind(), detail: string(el.Type)})
	}
	for p, marks := range additions {
		next.pages[p-1].marks = append(next.pages[p-1].marks, marks...)
	}
	return nil
}

func applyProtect(docID string, next *docState, r rules.PasswordProtect) error {
	password := r.OwnerPassword
	if password == "" {
		password = r.UserPassword
	}
	if len(next.salt) == 0 {
		next.salt = []byte(docID)
	}
	next.encKey = pbkdf2.Key([]byte(password), next.salt, keyIterations, keyLength, sha256.New)
	return nil
}

func applyUnprotect(next *docState, r rules.RemovePassword) error {
	if len(next.encKey) > 0 {
		supplied := pbkdf2.Key([]byte(r.Password), next.salt, keyIterations, keyLength, sha256.New)
		if subtle.ConstantTimeCompare(supplied, next.encKey) != 1 {
			return fmt.Errorf("wrong password")
		}
	}
	if !next.meta.Security.Encrypted() {
		next.encKey = nil
		next.salt = nil
	}
	return nil
}

func (e *Engine) markPages(state *docState, pages []int, op rules.Kind, detail string) {
	if len(pages) == 0 {
		e.markAll(state, op, detail)
		return
	}
	for p := range pageSet(pages) {
		if p >= 1 && p <= len(state.pages) {
			state.pages[p-1].marks = append(state.pages[p-1].marks, mark{op: op, detail: detail})
		}
	}
}

// pageSet de-duplicates a page reference list.
func pageSet(pages []int) map[int]struct{} {
	set := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		set[p] = struct{}{}
	}
	return set
}

func (e *Engine) markAll(state *docState, op rules.Kind, detail string) {
	for i := range state.pages {
		state.pages[i].marks = append(state.pages[i].marks, mark{op: op, detail: detail})
	}
}

func clonePages(pages []pageState) []pageState {
	out := make([]pageState, len(pages))
	for i, p := range pages {
		out[i] = p
		out[i].marks = append([]mark(nil), p.marks...)
	}
	return out
}

// derefRule normalizes pointer rules, which the JSON codec produces, to their
// value form for type switching.
func derefRule(r rules.Rule) rules.Rule {
	switch v := r.(type) {
	case *rules.RemovePages:
		return *v
	case *rules.RotatePages:
		return *v
	case *rules.ExtractPages:
		return *v
	case *rules.RearrangePages:
		return *v
	case *rules.AddBlankPages:
		return *v
	case *rules.CropPages:
		return *v
	case *rules.ResizePages:
		return *v
	case *rules.MergeDocuments:
		return *v
	case *rules.SplitDocument:
		return *v
	case *rules.Compress:
		return *v
	case *rules.ConvertFormat:
		return *v
	case *rules.AddWatermark:
		return *v
	case *rules.AddImage:
		return *v
	case *rules.AddHeaderFooter:
		return *v
	case *rules.AddPageNumbers:
		return *v
	case *rules.AddTextAnnotation:
		return *v
	case *rules.AddBackground:
		return *v
	case *rules.AddBorder:
		return *v
	case *rules.RedactText:
		return *v
	case *rules.PasswordProtect:
		return *v
	case *rules.RemovePassword:
		return *v
	case *rules.ApplyOverlay:
		return *v
	}
	return r
}
