package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
)

// SummaryStatus is what the completing step shows for the summary
type SummaryStatus string

const (
	SummaryPending     SummaryStatus = "pending"
	SummaryReady       SummaryStatus = "ready"
	SummaryUnavailable SummaryStatus = "unavailable"
)

// SummaryResult is the outcome of one summary generation
type SummaryResult struct {
	TestCheckinID string        `json:"testCheckinId"`
	Status        SummaryStatus `json:"status"`
	Summary       string        `json:"summary,omitempty"`
	Err           error         `json:"-"`
}

// SummaryAdapter calls the text generator once per submission and patches
// the result onto the test check-in. Failures are logged and reported as
// an unavailable result, never returned as errors.
type SummaryAdapter struct {
	generator SummaryGenerator
	patcher   SummaryPatcher
	timeout   time.Duration
	logger    *observability.Logger
	metrics   *observability.CheckinMetrics

	wg sync.WaitGroup
}

// NewSummaryAdapter creates an adapter whose background runs are bounded by timeout
func NewSummaryAdapter(generator SummaryGenerator, patcher SummaryPatcher, timeout time.Duration, logger *observability.Logger, metrics *observability.CheckinMetrics) *SummaryAdapter {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &SummaryAdapter{
		generator: generator,
		patcher:   patcher,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Generate runs one generation and patch synchronously
func (a *SummaryAdapter) Generate(ctx context.Context, testCheckinID string, sc models.SummaryContext) SummaryResult {
	ctx, span := observability.StartServiceSpan(ctx, "SummaryAdapter", "Generate")
	defer span.End()
	span.SetAttributes(observability.TestCheckinID(testCheckinID))

	start := time.Now()
	result := a.generate(ctx, testCheckinID, sc)
	a.metrics.RecordSummary(ctx, time.Since(start), result.Status == SummaryReady)

	if result.Err != nil {
		observability.RecordError(span, result.Err)
		a.logger.WithContext(ctx).
			WithField("test_checkin_id", testCheckinID).
			WithError(result.Err).
			Warn("summary unavailable")
	} else {
		observability.SetSuccess(span)
	}
	return result
}

func (a *SummaryAdapter) generate(ctx context.Context, testCheckinID string, sc models.SummaryContext) SummaryResult {
	failed := func(err error) SummaryResult {
		return SummaryResult{
			TestCheckinID: testCheckinID,
			Status:        SummaryUnavailable,
			Err:           fmt.Errorf("%w: %w", ErrSummaryGenerationFailed, err),
		}
	}

	text, err := a.generator.GenerateSummary(ctx, sc)
	if err != nil {
		return failed(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return failed(errors.New("empty response"))
	}

	if err := a.patcher.PatchTestCheckinSummary(ctx, testCheckinID, text); err != nil {
		return failed(fmt.Errorf("patch summary: %w", err))
	}

	return SummaryResult{TestCheckinID: testCheckinID, Status: SummaryReady, Summary: text}
}

// Launch runs Generate on its own goroutine, detached from the caller's
// cancellation and bounded by the adapter timeout. onDone runs before the
// result is sent; the returned channel yields exactly one result and is
// then closed.
func (a *SummaryAdapter) Launch(ctx context.Context, testCheckinID string, sc models.SummaryContext, onDone func(SummaryResult)) <-chan SummaryResult {
	done := make(chan SummaryResult, 1)
	bg := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(done)

		runCtx, cancel := context.WithTimeout(bg, a.timeout)
		defer cancel()

		result := a.Generate(runCtx, testCheckinID, sc)
		if onDone != nil {
			onDone(result)
		}
		done <- result
	}()

	return done
}

// Wait blocks until every launched generation has finished
func (a *SummaryAdapter) Wait() {
	a.wg.Wait()
}
