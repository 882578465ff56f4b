package gcp

import (
	"math"

	"github.com/yungbote/athro-ingest/internal/domain"
)

// normalizedBox turns polygon vertices already in 0..1 space into a top-down box.
func normalizedBox(xs, ys []float64) (domain.BoundingBox, bool) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return domain.BoundingBox{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range xs {
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i])
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}
	return domain.BoundingBox{
		Top:    clamp01(minY),
		Left:   clamp01(minX),
		Width:  clamp01(maxX - minX),
		Height: clamp01(maxY - minY),
	}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
