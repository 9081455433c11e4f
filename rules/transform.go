package rules

import (
	"fmt"

	"github.com/wudi/pdfstudio/document"
)

// MergeDocuments appends the pages of each source document, in order, after
// the current document's pages. Sources are content-store identities resolved
// by the executor's document source at projection time.
type MergeDocuments struct {
	Sources []string `json:"sources"`
}

func (r MergeDocuments) Kind() Kind { return KindMergeDocuments }

func (r MergeDocuments) Validate() []ValidationError {
	if len(r.Sources) == 0 {
		return []ValidationError{verr(r.Kind(), "sources", CodeEmpty, "no documents to merge")}
	}
	for i, id := range r.Sources {
		if id == "" {
			return []ValidationError{verr(r.Kind(), "sources", CodeMissingField,
				fmt.Sprintf("source %d has an empty identity", i))}
		}
	}
	return nil
}

func (r MergeDocuments) ValidateAgainst(document.Meta) []ValidationError { return nil }

func (r MergeDocuments) Project(meta document.Meta, lookup MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	for _, id := range r.Sources {
		if lookup == nil {
			return document.Meta{}, &UnknownSourceError{ID: id}
		}
		src, ok := lookup(id)
		if !ok {
			return document.Meta{}, &UnknownSourceError{ID: id}
		}
		out.Pages = append(out.Pages, src.Pages...)
		out.ByteSize += src.ByteSize
	}
	out.PageCount = len(out.Pages)
	return out, nil
}

// PageRange is an inclusive 1-based page span.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SplitDocument keeps only the selected ranges, renumbered in range order.
// Later rules observe the post-split page count.
type SplitDocument struct {
	Ranges []PageRange `json:"ranges"`
}

func (r SplitDocument) Kind() Kind { return KindSplitDocument }

func (r SplitDocument) Validate() []ValidationError {
	var errs []ValidationError
	if len(r.Ranges) == 0 {
		return []ValidationError{verr(r.Kind(), "ranges", CodeEmpty, "no split ranges supplied")}
	}
	for i, rg := range r.Ranges {
		if rg.Start < 1 {
			errs = append(errs, verr(r.Kind(), "ranges", CodeBadRange,
				fmt.Sprintf("range %d start %d must be at least 1", i, rg.Start)))
		}
		if rg.End < rg.Start {
			errs = append(errs, verr(r.Kind(), "ranges", CodeBadRange,
				fmt.Sprintf("range %d end %d precedes start %d", i, rg.End, rg.Start)))
		}
	}
	return errs
}

func (r SplitDocument) ValidateAgainst(meta document.Meta) []ValidationError {
	var errs []ValidationError
	for i, rg := range r.Ranges {
		if rg.End >= rg.Start && rg.End > meta.PageCount {
			errs = append(errs, verr(r.Kind(), "ranges", CodePageOutOfRange,
				fmt.Sprintf("range %d end %d exceeds page count %d", i, rg.End, meta.PageCount)))
		}
	}
	return errs
}

func (r SplitDocument) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	out.Pages = out.Pages[:0]
	for _, rg := range r.Ranges {
		out.Pages = append(out.Pages, meta.Pages[rg.Start-1:rg.End]...)
	}
	out.PageCount = len(out.Pages)
	return out, nil
}

// CompressionLevel enumerates the supported compression presets.
type CompressionLevel string

const (
	LevelLow     CompressionLevel = "low"
	LevelMedium  CompressionLevel = "medium"
	LevelHigh    CompressionLevel = "high"
	LevelMaximum CompressionLevel = "maximum"
	LevelCustom  CompressionLevel = "custom"
)

// Valid reports whether the level is a member of the enumerated set.
func (l CompressionLevel) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelMaximum, LevelCustom:
		return true
	}
	return false
}

// Compress re-encodes the document at the given level. A custom target is
// never a validation failure: when unreachable the executor surfaces an
// advisory alongside the achieved size instead of an error.
type Compress struct {
	Level       CompressionLevel `json:"level"`
	TargetBytes int64            `json:"target_bytes,omitempty"`
}

func (r Compress) Kind() Kind { return KindCompress }

func (r Compress) Validate() []ValidationError {
	var errs []ValidationError
	if !r.Level.Valid() {
		errs = append(errs, verr(r.Kind(), "level", CodeBadEnum,
			fmt.Sprintf("level %q not in {low, medium, high, maximum, custom}", r.Level)))
	}
	if r.Level == LevelCustom && r.TargetBytes <= 0 {
		errs = append(errs, verr(r.Kind(), "target_bytes", CodeMissingField,
			"custom level requires a positive target size"))
	}
	return errs
}

func (r Compress) ValidateAgainst(document.Meta) []ValidationError { return nil }

func (r Compress) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	// The achieved size is the renderer's to report; projection leaves it be.
	return meta.Clone(), nil
}

// OutputFormat enumerates conversion targets.
type OutputFormat string

const (
	FormatPDF  OutputFormat = "pdf"
	FormatPDFA OutputFormat = "pdfa"
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
)

// ConvertFormat re-targets the final artifact's container format.
type ConvertFormat struct {
	Format OutputFormat `json:"format"`
}

func (r ConvertFormat) Kind() Kind { return KindConvertFormat }

func (r ConvertFormat) Validate() []ValidationError {
	switch r.Format {
	case FormatPDF, FormatPDFA, FormatPNG, FormatJPEG:
		return nil
	}
	return []ValidationError{verr(r.Kind(), "format", CodeBadEnum,
		fmt.Sprintf("format %q not in {pdf, pdfa, png, jpeg}", r.Format))}
}

func (r ConvertFormat) ValidateAgainst(document.Meta) []ValidationError { return nil }

func (r ConvertFormat) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}
