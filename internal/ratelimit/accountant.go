package ratelimit

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/metrics"
	"github.com/tributary-ai/llm-router/internal/statestore"
)

// ApplicableBucket is one rate-limit bucket that governs a given candidate.
type ApplicableBucket struct {
	BucketID  string
	BucketKey string
	Window    Window
	Requests  int
}

// Evaluation is the pre-call eligibility result for one candidate.
type Evaluation struct {
	Eligible                bool
	RemainingCapacityRatio  float64
	Buckets                 []ApplicableBucket
	ExhaustedBucketKeys     []string
}

// BucketKey builds the store key for a provider's bucket.
func BucketKey(providerID, bucketID string) string {
	return "bucket:" + url.QueryEscape(providerID) + ":" + url.QueryEscape(bucketID)
}

// ApplicableBuckets returns every bucket on the provider that governs
// modelID.
func ApplicableBuckets(provider *config.ProviderSpec, modelID string, nowMs int64) ([]ApplicableBucket, error) {
	var out []ApplicableBucket
	for _, b := range provider.RateLimits {
		if b.Requests <= 0 || len(b.Models) == 0 {
			continue
		}
		applies := false
		for _, m := range b.Models {
			if m == "all" || m == modelID {
				applies = true
				break
			}
		}
		if !applies {
			continue
		}
		w, err := ResolveWindowRange(b.Window, nowMs)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: bucket %s: %w", b.ID, err)
		}
		out = append(out, ApplicableBucket{
			BucketID:  b.ID,
			BucketKey: BucketKey(provider.ID, b.ID),
			Window:    w,
			Requests:  b.Requests,
		})
	}
	return out, nil
}

// Evaluate computes eligibility and remaining-capacity ratio for a set of
// applicable buckets. providerID and m (which may be nil) are used only to
// label the rate-limit-evaluation and bucket-remaining-ratio metrics.
func Evaluate(ctx context.Context, store statestore.Store, buckets []ApplicableBucket, providerID string, m *metrics.Metrics) (Evaluation, error) {
	eval := Evaluation{Eligible: true, RemainingCapacityRatio: 1, Buckets: buckets}
	minRatio := 1.0
	for _, b := range buckets {
		used, err := store.ReadBucketUsage(ctx, b.BucketKey, b.Window.Key)
		if err != nil {
			return Evaluation{}, fmt.Errorf("ratelimit: read usage for %s: %w", b.BucketKey, err)
		}
		remaining := b.Requests - used
		if remaining < 0 {
			remaining = 0
		}
		ratio := float64(remaining) / float64(b.Requests)
		eligible := remaining > 0
		if m != nil {
			m.RecordRateLimitEvaluation(providerID, b.BucketID, eligible)
			m.SetBucketRemainingRatio(providerID, b.BucketID, ratio)
		}
		if ratio < minRatio {
			minRatio = ratio
		}
		if !eligible {
			eval.Eligible = false
			eval.ExhaustedBucketKeys = append(eval.ExhaustedBucketKeys, b.BucketKey)
		}
	}
	eval.RemainingCapacityRatio = minRatio
	return eval, nil
}

// Consume applies post-call consumption to every applicable bucket, amount
// 1 each. Only called once the candidate was eligible and the call
// actually reached the upstream.
func Consume(ctx context.Context, store statestore.Store, buckets []ApplicableBucket, nowMs int64) error {
	for _, b := range buckets {
		if _, err := store.IncrementBucketUsage(ctx, b.BucketKey, b.Window.Key, 1, b.Window.EndsAt, nowMs); err != nil {
			return fmt.Errorf("ratelimit: increment usage for %s: %w", b.BucketKey, err)
		}
	}
	return nil
}
