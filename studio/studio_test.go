package studio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/pipeline"
	"github.com/wudi/pdfstudio/rules"
)

func newStudio(t *testing.T) *Studio {
	t.Helper()
	s, err := New(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func upload(s *Studio, pages int) document.Handle {
	sizes := make([]document.PageSize, pages)
	for i := range sizes {
		sizes[i] = document.A4
	}
	return s.Upload(make([]byte, 10_000), sizes)
}

func TestSubmitRuleList(t *testing.T) {
	s := newStudio(t)
	doc := upload(s, 3)

	require.NoError(t, s.SubmitRuleList(doc, rules.NewList(
		rules.RemovePages{Pages: []int{2}},
	)))

	err := s.SubmitRuleList(doc, rules.NewList(
		rules.ExtractPages{Start: 1, End: 5},
	))
	var step *pipeline.StepError
	require.ErrorAs(t, err, &step)
	require.Equal(t, 0, step.RuleIndex)
}

func TestCommitEndToEnd(t *testing.T) {
	s := newStudio(t)
	doc := upload(s, 3)
	list := rules.NewList(
		rules.RemovePages{Pages: []int{2}},
		rules.RotatePages{Pages: []int{1}, Angle: 90},
	)

	res, err := s.Commit(context.Background(), doc, list)
	require.NoError(t, err)
	require.Equal(t, 2, res.Document.Meta().PageCount)
	require.NotNil(t, res.Artifact)
	require.Equal(t, list.Fingerprint(), res.Artifact.Fingerprint)

	data, err := s.OpenArtifact(res.Artifact.ID)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	listed, err := s.Artifacts(res.Document.ID())
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestPreviewFlow(t *testing.T) {
	s := newStudio(t)
	doc := upload(s, 3)

	g := s.RequestPreview(doc, rules.NewList(rules.RotatePages{Pages: []int{1}, Angle: 90}))
	res, err := g.Result(context.Background())
	require.NoError(t, err)
	require.Nil(t, res.Artifact, "previews never persist artifacts")

	png, err := s.Rasterize(context.Background(), res.Document, 1, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, png)
}

func TestAuthoringToCommit(t *testing.T) {
	s := newStudio(t)
	doc := upload(s, 2)

	sess := s.OpenSession(doc)
	_, err := sess.AddElement(rules.OverlayElement{
		Type:     rules.ElementText,
		Page:     1,
		Position: coords.Point{X: 50, Y: 700},
		Text:     "**approved**",
		Markup:   "markdown",
	})
	require.NoError(t, err)

	overlay, err := sess.CompileToRule()
	require.NoError(t, err)
	require.True(t, overlay.Elements[0].Spans[0].Bold)

	res, err := s.Commit(context.Background(), doc, rules.NewList(overlay))
	require.NoError(t, err)
	require.NotNil(t, res.Artifact)
}

func TestImageBlobFlow(t *testing.T) {
	s := newStudio(t)
	doc := upload(s, 1)

	ref, err := s.PutBlob([]byte("image bytes"))
	require.NoError(t, err)

	list := rules.NewList(rules.AddImage{
		Pages:    []int{1},
		ImageRef: ref,
		Box:      coords.Rect{X: 10, Y: 10, W: 100, H: 50},
	})
	_, err = s.Commit(context.Background(), doc, list)
	require.NoError(t, err)

	list = rules.NewList(rules.AddImage{
		Pages:    []int{1},
		ImageRef: "not-stored",
		Box:      coords.Rect{X: 10, Y: 10, W: 100, H: 50},
	})
	_, err = s.Commit(context.Background(), doc, list)
	var step *pipeline.StepError
	require.ErrorAs(t, err, &step)
	require.Equal(t, rules.KindAddImage, step.RuleKind)
}
