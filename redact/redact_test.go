package redact

import (
	"context"
	"errors"
	"testing"

	"github.com/wudi/pdfstudio/coords"
)

type stubLocator struct {
	calls []PageImage
	err   error
}

func (s *stubLocator) Name() string { return "stub" }

func (s *stubLocator) Locate(_ context.Context, img PageImage, terms []string, _ bool) ([]Match, error) {
	s.calls = append(s.calls, img)
	if s.err != nil {
		return nil, s.err
	}
	return []Match{{Page: img.Page, Term: terms[0], Bounds: coords.Rect{W: 10, H: 10}}}, nil
}

func TestLocatePagesConcatenates(t *testing.T) {
	loc := &stubLocator{}
	imgs := []PageImage{{Page: 1}, {Page: 3}}
	matches, err := LocatePages(context.Background(), loc, imgs, []string{"secret"}, false,
		WithLanguages("eng"), WithDPI(300))
	if err != nil {
		t.Fatalf("LocatePages() error = %v", err)
	}
	if len(matches) != 2 || matches[0].Page != 1 || matches[1].Page != 3 {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	for _, call := range loc.calls {
		if call.DPI != 300 || len(call.Languages) != 1 || call.Languages[0] != "eng" {
			t.Fatalf("options not applied: %+v", call)
		}
	}
}

func TestLocatePagesPropagatesError(t *testing.T) {
	boom := errors.New("engine down")
	loc := &stubLocator{err: boom}
	_, err := LocatePages(context.Background(), loc, []PageImage{{Page: 2}}, []string{"x"}, false)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped engine error", err)
	}
}

func TestLocatePagesHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LocatePages(ctx, &stubLocator{}, []PageImage{{Page: 1}}, []string{"x"}, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestWithRegionDropsEmpty(t *testing.T) {
	img := PageImage{Region: &Region{Width: 5, Height: 5}}
	WithRegion(Region{})(&img)
	if img.Region != nil {
		t.Fatal("empty region should clear the restriction")
	}
	WithRegion(Region{X: 1, Y: 2, Width: 3, Height: 4})(&img)
	if img.Region == nil || img.Region.Width != 3 {
		t.Fatalf("region not applied: %+v", img.Region)
	}
}

func TestDefaultIsNoop(t *testing.T) {
	loc := Default()
	if loc.Name() != "noop" {
		t.Skipf("a locator engine is registered: %s", loc.Name())
	}
	matches, err := loc.Locate(context.Background(), PageImage{Page: 1}, []string{"x"}, false)
	if err != nil || matches != nil {
		t.Fatalf("noop locator returned %v, %v", matches, err)
	}
}
