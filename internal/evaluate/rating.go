package evaluate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/rubric"
)

// ErrIncompleteRubric is returned when the scorer reports a dimension the
// rubric has no weight for.
var ErrIncompleteRubric = errors.New("rubric is missing a dimension weight")

// RatingResult holds clamped per-dimension scores for one answer. Overall is
// the rubric-weighted mean, recomputed here and never taken from the scorer.
type RatingResult struct {
	TurnID  string             `json:"turn_id"`
	Scores  map[string]float64 `json:"scores"`
	Overall float64            `json:"overall"`
	Notes   string             `json:"notes,omitempty"`
}

// RatingContext carries the question context the scorer sees, including the
// already-known coverage of the answer.
type RatingContext struct {
	Role       string
	Section    string
	Difficulty string
	Question   string
	Coverage   *CoverageResult
}

// Rater turns raw scorer output into a RatingResult governed by the rubric.
type Rater struct {
	scorer ai.AnswerScorer
	rubric *rubric.Rubric
	logger *zap.Logger
}

func NewRater(scorer ai.AnswerScorer, r *rubric.Rubric, logger *zap.Logger) *Rater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rater{scorer: scorer, rubric: r, logger: logger}
}

func (r *Rater) Evaluate(ctx context.Context, turnID, answer string, rctx *RatingContext) (*RatingResult, error) {
	req := &ai.ScoreRequest{
		Role:       rctx.Role,
		Section:    rctx.Section,
		Difficulty: rctx.Difficulty,
		Question:   rctx.Question,
		Answer:     answer,
		Dimensions: r.rubric.DimensionNames(),
	}
	if rctx.Coverage != nil {
		req.PriorCoverage = rctx.Coverage.Score
	}

	scored, err := r.scorer.ScoreAnswer(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scoring answer: %w", err)
	}

	weights, err := r.effectiveWeights(scored.Scores, rctx.Coverage)
	if err != nil {
		return nil, err
	}

	result := &RatingResult{
		TurnID: turnID,
		Scores: make(map[string]float64, len(scored.Scores)),
		Notes:  scored.Notes,
	}

	for dim, score := range scored.Scores {
		clamped := r.rubric.Clamp(score)
		result.Scores[dim] = clamped
		result.Overall += weights[dim] * clamped
	}

	r.logger.Debug("answer rated",
		zap.String("turn_id", turnID),
		zap.Float64("overall", result.Overall),
		zap.Any("scores", result.Scores),
	)

	return result, nil
}

// effectiveWeights returns the rubric weights for the reported dimensions,
// optionally discounting the rubric's discount dimension when coverage is
// poor. The discounted weights are renormalized to sum to 1.
func (r *Rater) effectiveWeights(scores map[string]float64, coverage *CoverageResult) (map[string]float64, error) {
	weights := make(map[string]float64, len(scores))
	for dim := range scores {
		w, ok := r.rubric.Dimensions[dim]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrIncompleteRubric, dim)
		}
		weights[dim] = w
	}

	discount := r.rubric.CoverageDiscount
	if discount <= 0 || coverage == nil || coverage.Score >= 0.5 {
		return weights, nil
	}

	target := r.rubric.DiscountDimension
	if _, ok := weights[target]; !ok {
		return weights, nil
	}

	weights[target] *= 1 - discount

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum > 0 {
		for dim := range weights {
			weights[dim] /= sum
		}
	}

	return weights, nil
}
