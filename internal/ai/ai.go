// Package ai defines the two model capabilities the generation pipeline needs.
package ai

import (
	"context"

	"photoshoot-backend/internal/shared/metrics"
	"photoshoot-backend/internal/shared/telemetry"
)

// DescribeFallback is returned by DescribeImage whenever the provider call fails.
const DescribeFallback = "Product image"

// Client describes product photos and synthesizes styled images. Both calls
// absorb provider failures: DescribeImage falls back to DescribeFallback and
// SynthesizeImages omits failed images, so neither returns an error.
type Client interface {
	DescribeImage(ctx context.Context, image []byte) string
	SynthesizeImages(ctx context.Context, prompt, aspectRatio string, count int) []string
}

// Offline is used when no provider credential is configured. Jobs still reach
// a terminal state, with the fallback description and no images.
type Offline struct{}

func (Offline) DescribeImage(ctx context.Context, image []byte) string {
	telemetry.Warn("ai.offline", map[string]any{"operation": "describe"})
	metrics.IncAIFallback("describe")
	return DescribeFallback
}

func (Offline) SynthesizeImages(ctx context.Context, prompt, aspectRatio string, count int) []string {
	telemetry.Warn("ai.offline", map[string]any{"operation": "synthesize", "count": count})
	metrics.IncAIFallback("synthesize")
	return nil
}

var _ Client = Offline{}
