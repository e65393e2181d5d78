package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
)

// DefectThreshold is the defect probability (in percent) from which a part
// is reported as DEFECTIVE. The boundary itself counts as defective.
const DefectThreshold = 50.0

// PlaceholderProbability is what the adapter reports when no model answered:
// exactly on the threshold, so the part is flagged for re-inspection.
const PlaceholderProbability = 0.5

// ErrOracleUnavailable signals that no model produced a usable score.
var ErrOracleUnavailable = errors.New("classification oracle unavailable")

// Scorer is a defect model. Score returns the probability in [0,1] that the
// part in image is defective.
type Scorer interface {
	Score(ctx context.Context, image []byte) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, image []byte) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, image []byte) (float64, error) { return f(ctx, image) }

// Adapter wraps a Scorer with a timeout and normalizes its output.
type Adapter struct {
	scorer  Scorer
	timeout time.Duration
}

// NewAdapter returns an adapter; a nil scorer means no model is configured.
func NewAdapter(scorer Scorer, timeout time.Duration) *Adapter {
	return &Adapter{scorer: scorer, timeout: timeout}
}

// Classify scores image once. Any failure, including a timeout, is reported
// as ErrOracleUnavailable so the caller can apply Placeholder.
func (a *Adapter) Classify(ctx context.Context, image []byte) (models.Outcome, error) {
	if a == nil || a.scorer == nil {
		return models.Outcome{}, fmt.Errorf("%w: no model configured", ErrOracleUnavailable)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	type answer struct {
		p   float64
		err error
	}
	done := make(chan answer, 1)
	go func() {
		p, err := a.scorer.Score(ctx, image)
		done <- answer{p: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.Outcome{}, fmt.Errorf("%w: %w", ErrOracleUnavailable, ctx.Err())
	case ans := <-done:
		if ans.err != nil {
			return models.Outcome{}, fmt.Errorf("%w: %w", ErrOracleUnavailable, ans.err)
		}
		if math.IsNaN(ans.p) || math.IsInf(ans.p, 0) || ans.p < 0 || ans.p > 1 {
			return models.Outcome{}, fmt.Errorf("%w: score %v is not a probability", ErrOracleUnavailable, ans.p)
		}
		return Normalize(ans.p), nil
	}
}

// Normalize turns a defect probability into a verdict plus the percentage
// towards that verdict. Out of range input is clamped; Classify rejects it
// before it gets here.
func Normalize(probability float64) models.Outcome {
	p := math.Min(math.Max(probability, 0), 1)
	pct := p * 100
	if pct >= DefectThreshold {
		return models.Outcome{Verdict: models.VerdictDefective, Score: round2(pct)}
	}
	return models.Outcome{Verdict: models.VerdictPassed, Score: round2(100 - pct)}
}

// Placeholder is the outcome used when Classify fails.
func Placeholder() models.Outcome {
	out := Normalize(PlaceholderProbability)
	out.Placeholder = true
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// StaticScorer always answers the same probability. Useful for demos and
// tests.
type StaticScorer float64

func (s StaticScorer) Score(ctx context.Context, _ []byte) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return float64(s), nil
}
