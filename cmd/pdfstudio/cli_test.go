package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeRules(t, `[{"kind":"rotate-pages","pages":[1],"angle":90}]`)
	app := newApp()
	err := app.Run([]string{"pdfstudio", "validate", "--rules", path, "--pages", "3"})
	require.NoError(t, err)
}

func TestValidateCommandRejectsBadList(t *testing.T) {
	path := writeRules(t, `[{"kind":"extract-pages","start":1,"end":5}]`)
	app := newApp()
	err := app.Run([]string{"pdfstudio", "validate", "--rules", path, "--pages", "3"})
	require.Error(t, err)
}

func TestValidateCommandRejectsUnknownKind(t *testing.T) {
	path := writeRules(t, `[{"kind":"frobnicate"}]`)
	app := newApp()
	err := app.Run([]string{"pdfstudio", "validate", "--rules", path, "--pages", "3"})
	require.Error(t, err)
}

func TestApplyCommandWritesArtifact(t *testing.T) {
	rulesPath := writeRules(t, `[{"kind":"remove-pages","pages":[2]}]`)
	out := filepath.Join(t.TempDir(), "out.bin")
	app := newApp()
	err := app.Run([]string{
		"pdfstudio", "apply",
		"--rules", rulesPath,
		"--pages", "3",
		"--data-dir", t.TempDir(),
		"--out", out,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var snap struct {
		Pages []json.RawMessage `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Len(t, snap.Pages, 2)
}

func TestEstimateCommand(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"pdfstudio", "estimate", "--size", "1000000", "--level", "high"})
	require.NoError(t, err)

	err = app.Run([]string{"pdfstudio", "estimate", "--size", "1000000", "--level", "bogus"})
	require.Error(t, err)
}
