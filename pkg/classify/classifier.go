// Package classify names the waste item in an image by asking a list of
// vision model candidates in priority order.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-wasteid/internal/log"
	"github.com/teslashibe/go-wasteid/internal/metrics"
	"github.com/teslashibe/go-wasteid/pkg/capture"
	"github.com/teslashibe/go-wasteid/pkg/inference"
)

// Classifier tries its candidates strictly in order until one produces a
// usable name.
type Classifier struct {
	candidates []Candidate
	logger     *slog.Logger
}

// New creates a classifier over candidates, highest priority first. The
// list is copied and never changes afterwards.
func New(candidates []Candidate, logger *slog.Logger) *Classifier {
	return &Classifier{
		candidates: append([]Candidate(nil), candidates...),
		logger:     log.Component(logger, "classify.Classifier"),
	}
}

// Candidates returns the candidate IDs in priority order.
func (c *Classifier) Candidates() []string {
	ids := make([]string, len(c.candidates))
	for i, cand := range c.candidates {
		ids[i] = cand.ID
	}
	return ids
}

// Classify returns the first non-empty sanitized name. A failed candidate
// (request error or unusable text) is logged and the next one is tried.
// When all fail the Result carries a *ClassificationError whose message is
// the last failure. Cancelling ctx yields ErrAbandoned.
func (c *Classifier) Classify(ctx context.Context, img capture.Image) Result {
	start := time.Now()
	res := c.classify(ctx, img)
	res.Duration = time.Since(start)

	metrics.ClassifyDurationSeconds.Observe(res.Duration.Seconds())
	metrics.ClassifyRequestsTotal.WithLabelValues(outcome(res)).Inc()
	return res
}

func (c *Classifier) classify(ctx context.Context, img capture.Image) Result {
	if len(c.candidates) == 0 {
		c.logger.Warn("no model candidates configured")
		return Result{Err: ErrNoCandidates}
	}

	var failures []AttemptError
	var last error

	for i, cand := range c.candidates {
		if ctx.Err() != nil {
			return c.abandoned(i)
		}

		raw, err := cand.Attempt(ctx, img)

		if ctx.Err() != nil {
			return c.abandoned(i + 1)
		}

		var name string
		if err == nil {
			name = Sanitize(raw)
			if name == "" {
				err = emptyName(raw)
			}
		}

		if err != nil {
			metrics.ClassifyAttemptsTotal.WithLabelValues(cand.ID, attemptLabel(err)).Inc()
			failures = append(failures, AttemptError{Candidate: cand.ID, Err: err})
			last = err
			c.logger.Warn("candidate failed, trying next",
				"candidate", cand.ID,
				"index", i,
				"error", err,
			)
			continue
		}

		metrics.ClassifyAttemptsTotal.WithLabelValues(cand.ID, "success").Inc()
		if i > 0 {
			c.logger.Info("fallback candidate succeeded",
				"candidate", cand.ID,
				"index", i,
			)
		}
		return Result{Name: name, Model: cand.ID, Attempts: i + 1}
	}

	c.logger.Error("all candidates failed",
		"attempts", len(failures),
		"error", last,
	)
	return Result{
		Err:      &ClassificationError{Last: last, Attempts: failures},
		Attempts: len(failures),
	}
}

func (c *Classifier) abandoned(attempts int) Result {
	c.logger.Debug("classification abandoned", "attempts", attempts)
	return Result{Err: ErrAbandoned, Attempts: attempts}
}

func attemptLabel(err error) string {
	if errors.Is(err, ErrEmptyName) {
		return string(inference.KindEmpty)
	}
	return string(inference.KindOf(err))
}

func outcome(r Result) string {
	switch {
	case r.OK():
		return "success"
	case errors.Is(r.Err, ErrAbandoned):
		return "abandoned"
	case errors.Is(r.Err, ErrNoCandidates):
		return "no_candidates"
	default:
		return "exhausted"
	}
}
