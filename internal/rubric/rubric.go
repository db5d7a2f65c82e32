package rubric

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

const weightTolerance = 0.001

// Rubric is the declarative weighting and threshold table shared by the
// evaluators and the aggregator. It is loaded once and referenced read-only by
// any number of sessions; a reload produces a new value, never a mutation.
type Rubric struct {
	// Dimensions maps rating dimension name to its weight. Weights must sum to 1.0.
	Dimensions map[string]float64 `json:"dimensions"`
	// SectionWeights maps section name to its share of the overall score.
	// When empty, sections are weighted equally.
	SectionWeights map[string]float64 `json:"section_weights,omitempty"`
	// SectionMinimums overrides the pass threshold per section.
	SectionMinimums map[string]float64 `json:"section_minimums,omitempty"`

	// MinScore and MaxScore bound every dimension score.
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`

	// PassThreshold is the global minimum mean rating.
	PassThreshold float64 `json:"pass_threshold"`
	// PromotionMargin is the headroom above the threshold required before the
	// orchestrator raises difficulty.
	PromotionMargin float64 `json:"promotion_margin"`
	// DivergenceThreshold flags turns where coverage and rating disagree by
	// more than this much (both normalized to [0,1]).
	DivergenceThreshold float64 `json:"divergence_threshold"`

	// CoverageDiscount scales down the weight of DiscountDimension when the
	// answer's coverage is already known to be poor. Zero disables the coupling.
	CoverageDiscount  float64 `json:"coverage_discount,omitempty"`
	DiscountDimension string  `json:"discount_dimension,omitempty"`
}

// Default returns the built-in rubric: three dimensions on a 1-5 scale with a
// pass threshold of 3.
func Default() *Rubric {
	return &Rubric{
		Dimensions: map[string]float64{
			"accuracy":      0.4,
			"depth":         0.3,
			"communication": 0.3,
		},
		MinScore:            1,
		MaxScore:            5,
		PassThreshold:       3,
		PromotionMargin:     0.5,
		DivergenceThreshold: 0.4,
		DiscountDimension:   "accuracy",
	}
}

// FromFile loads and validates a rubric from a JSON file.
func FromFile(path string) (*Rubric, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r Rubric
	if err := json.NewDecoder(file).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding rubric: %w", err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *Rubric) Validate() error {
	if len(r.Dimensions) == 0 {
		return fmt.Errorf("rubric must declare at least one dimension")
	}

	if sum := sumWeights(r.Dimensions); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("dimension weights must sum to 1.0, got %.3f", sum)
	}

	if len(r.SectionWeights) > 0 {
		if sum := sumWeights(r.SectionWeights); math.Abs(sum-1.0) > weightTolerance {
			return fmt.Errorf("section weights must sum to 1.0, got %.3f", sum)
		}
	}

	if r.MaxScore <= r.MinScore {
		return fmt.Errorf("max score (%.1f) must be greater than min score (%.1f)", r.MaxScore, r.MinScore)
	}

	if r.PassThreshold < r.MinScore || r.PassThreshold > r.MaxScore {
		return fmt.Errorf("pass threshold %.1f is outside the score bounds", r.PassThreshold)
	}

	if r.CoverageDiscount < 0 || r.CoverageDiscount >= 1 {
		return fmt.Errorf("coverage discount must be in [0, 1), got %.2f", r.CoverageDiscount)
	}

	return nil
}

// MinimumFor returns the minimum mean rating for a section, falling back to
// the global pass threshold.
func (r *Rubric) MinimumFor(section string) float64 {
	if min, ok := r.SectionMinimums[section]; ok {
		return min
	}
	return r.PassThreshold
}

// SectionWeight returns the overall-score weight of a section. total is the
// number of sections in the plan; it is used for the equal-weight fallback.
func (r *Rubric) SectionWeight(section string, total int) float64 {
	if w, ok := r.SectionWeights[section]; ok {
		return w
	}
	if total <= 0 {
		return 0
	}
	return 1.0 / float64(total)
}

// DimensionNames returns the declared dimensions in stable sorted order.
func (r *Rubric) DimensionNames() []string {
	names := make([]string, 0, len(r.Dimensions))
	for name := range r.Dimensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clamp bounds a dimension score to the declared range.
func (r *Rubric) Clamp(score float64) float64 {
	return math.Min(r.MaxScore, math.Max(r.MinScore, score))
}

// Normalize maps a rating from the score bounds onto [0, 1].
func (r *Rubric) Normalize(score float64) float64 {
	return (r.Clamp(score) - r.MinScore) / (r.MaxScore - r.MinScore)
}

func sumWeights(weights map[string]float64) float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	return sum
}
