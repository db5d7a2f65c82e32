package evaluate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// CoverageResult describes how completely an answer addressed the facets
// required by its question. Score is always in [0, 1].
type CoverageResult struct {
	TurnID  string   `json:"turn_id"`
	Covered []string `json:"covered"`
	Missing []string `json:"missing"`
	Score   float64  `json:"score"`
}

// FacetDetector answers a single question: does the text address the facet?
// Satisfied by any ai.Provider implementation.
type FacetDetector interface {
	DetectFacet(ctx context.Context, text, facet string) (bool, error)
}

// Completeness evaluates answers against their required facets via an
// injected facet detection capability.
type Completeness struct {
	detector FacetDetector
	logger   *zap.Logger
}

func NewCompleteness(detector FacetDetector, logger *zap.Logger) *Completeness {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completeness{detector: detector, logger: logger}
}

// Evaluate checks the answer for every required facet. Detection results are
// cached per (answer, facet) within the call, so a provider-backed detector is
// never asked the same question twice in one evaluation.
func (c *Completeness) Evaluate(ctx context.Context, turnID, answer string, required []string) (*CoverageResult, error) {
	ledger := NewFacetLedger(required)
	seen := make(map[string]bool, len(required))

	for _, facet := range required {
		key := cacheKey(answer, facet)
		addressed, cached := seen[key]
		if !cached {
			var err error
			addressed, err = c.detector.DetectFacet(ctx, answer, facet)
			if err != nil {
				return nil, fmt.Errorf("detecting facet %q: %w", facet, err)
			}
			seen[key] = addressed
		}

		if addressed {
			ledger.MarkCovered(facet)
		}
	}

	result := &CoverageResult{
		TurnID:  turnID,
		Covered: ledger.Covered(),
		Missing: ledger.Missing(),
		Score:   ledger.Score(),
	}

	c.logger.Debug("completeness evaluated",
		zap.String("turn_id", turnID),
		zap.Float64("coverage_score", result.Score),
		zap.Strings("missing_facets", result.Missing),
	)

	return result, nil
}

func cacheKey(answer, facet string) string {
	return facet + "\x00" + strings.TrimSpace(answer)
}
