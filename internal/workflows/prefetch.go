package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// PrefetchInput selects the changesets to warm.
type PrefetchInput struct {
	Platform    string
	Bounds      domain.Bounds
	User        string
	Limit       int
	Concurrency int
}

// PrefetchResult reports what the workflow did.
type PrefetchResult struct {
	Listed     int
	Warmed     int
	Evicted    []int64
	Failed     []int64
	Primitives int
}

// PrefetchWorkflow lists recent changesets in an area and acquires the diff
// of each so that later viewer requests are served from the cache. A diff
// that turns out empty is evicted again, so that a feed which has not
// processed the changeset yet is asked again next time.
func PrefetchWorkflow(ctx workflow.Context, input PrefetchInput) (PrefetchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting prefetch workflow", "platform", input.Platform, "limit", input.Limit)

	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
	warmCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 4 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 3,
		},
	})

	var result PrefetchResult

	// Step 1: List changesets in the area
	var ids []int64
	if err := workflow.ExecuteActivity(listCtx, "ListChangesets", input).Get(ctx, &ids); err != nil {
		return result, err
	}
	result.Listed = len(ids)

	conc := input.Concurrency
	if conc <= 0 {
		conc = 4
	}

	// Step 2: Warm each diff, a batch at a time
	for start := 0; start < len(ids); start += conc {
		end := start + conc
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		futures := make([]workflow.Future, len(batch))
		for i, id := range batch {
			futures[i] = workflow.ExecuteActivity(warmCtx, "WarmChangeset", input.Platform, id)
		}

		for i, f := range futures {
			id := batch[i]
			var warm WarmResult
			if err := f.Get(ctx, &warm); err != nil {
				logger.Warn("warm failed", "changeset", id, "error", err)
				result.Failed = append(result.Failed, id)
				continue
			}
			if warm.Primitives > 0 {
				result.Warmed++
				result.Primitives += warm.Primitives
				continue
			}

			// Step 3: Compensate, an empty diff must not stay cached
			if err := workflow.ExecuteActivity(listCtx, "EvictChangeset", input.Platform, id).Get(ctx, nil); err != nil {
				logger.Warn("evict failed", "changeset", id, "error", err)
			}
			result.Evicted = append(result.Evicted, id)
		}
	}

	logger.Info("Prefetch finished", "listed", result.Listed, "warmed", result.Warmed, "failed", len(result.Failed))
	return result, nil
}
