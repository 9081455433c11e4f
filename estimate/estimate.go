// Package estimate predicts the outcome of a compress rule before anything
// runs. The numbers are advisory: the executor's achieved size is the source
// of truth and nothing here is ever asserted against it.
package estimate

import (
	"fmt"
	"math"

	"github.com/wudi/pdfstudio/rules"
)

// reductionRatios is the expected fraction removed per level, from field
// measurements across typical mixed text-and-image documents.
var reductionRatios = map[rules.CompressionLevel]float64{
	rules.LevelLow:     0.10,
	rules.LevelMedium:  0.45,
	rules.LevelHigh:    0.70,
	rules.LevelMaximum: 0.85,
}

// floorRatio bounds how small any estimate may get. Structural overhead
// keeps even an aggressively compressed document near a tenth of its
// original size.
const floorRatio = 0.10

// Estimate is one predicted compression outcome.
type Estimate struct {
	EstimatedSizeBytes int64   `json:"estimated_size_bytes"`
	ReductionPercent   float64 `json:"reduction_percent"`

	// SizeIncrease is set when a custom target above the original size was
	// requested; the estimate then reports the original size unchanged
	// rather than pretending a reduction.
	SizeIncrease bool `json:"size_increase,omitempty"`
}

// ForLevel estimates the size after compressing at a named level.
func ForLevel(originalSizeBytes int64, level rules.CompressionLevel) (Estimate, error) {
	if originalSizeBytes <= 0 {
		return Estimate{}, fmt.Errorf("estimate: original size %d must be positive", originalSizeBytes)
	}
	ratio, ok := reductionRatios[level]
	if !ok {
		return Estimate{}, fmt.Errorf("estimate: level %q has no reduction table entry", level)
	}
	size := int64(math.Round(float64(originalSizeBytes) * (1 - ratio)))
	return clamped(originalSizeBytes, size), nil
}

// ForTarget estimates the outcome of a custom byte target. Targets below the
// structural floor are clamped up; a target above the original yields the
// original size with the size-increase advisory set.
func ForTarget(originalSizeBytes, targetBytes int64) (Estimate, error) {
	if originalSizeBytes <= 0 {
		return Estimate{}, fmt.Errorf("estimate: original size %d must be positive", originalSizeBytes)
	}
	if targetBytes <= 0 {
		return Estimate{}, fmt.Errorf("estimate: target size %d must be positive", targetBytes)
	}
	if targetBytes > originalSizeBytes {
		return Estimate{
			EstimatedSizeBytes: originalSizeBytes,
			SizeIncrease:       true,
		}, nil
	}
	return clamped(originalSizeBytes, targetBytes), nil
}

// ForRule dispatches on a compress rule's parameters.
func ForRule(originalSizeBytes int64, r rules.Compress) (Estimate, error) {
	if r.Level == rules.LevelCustom {
		return ForTarget(originalSizeBytes, r.TargetBytes)
	}
	return ForLevel(originalSizeBytes, r.Level)
}

func clamped(original, estimated int64) Estimate {
	floor := int64(math.Round(float64(original) * floorRatio))
	if estimated < floor {
		estimated = floor
	}
	if estimated < 1 {
		estimated = 1
	}
	return Estimate{
		EstimatedSizeBytes: estimated,
		ReductionPercent:   100 * float64(original-estimated) / float64(original),
	}
}
