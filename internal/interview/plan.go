package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spigell/interview-conductor/internal/ai"
)

// ErrInvalidPlan is returned when a plan cannot drive a session.
var ErrInvalidPlan = errors.New("invalid interview plan")

// Plan is the ordered interview script supplied by the planner. The core
// consumes it read-only; the candidate profile is forwarded to question
// generation and nothing else.
type Plan struct {
	Role      string      `json:"role"`
	Candidate string      `json:"candidate,omitempty"`
	Profile   *ai.Profile `json:"profile,omitempty"`
	Sections  []Section   `json:"sections"`
}

// Section is one thematic block of the plan.
type Section struct {
	Name              string     `json:"name"`
	QuestionCount     int        `json:"question_count"`
	InitialDifficulty Difficulty `json:"initial_difficulty"`
	// FacetSlots optionally pins the required facets per question slot.
	// Slots without an entry fall back to provider-generated facets.
	FacetSlots [][]string `json:"facet_slots,omitempty"`
	// QuestionWeights optionally weights questions within the section when
	// aggregating. Missing entries default to 1.
	QuestionWeights []float64 `json:"question_weights,omitempty"`
}

// PlanFromFile loads and validates a plan artifact produced by the planner.
func PlanFromFile(path string) (*Plan, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var plan Plan
	if err := json.NewDecoder(file).Decode(&plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return &plan, nil
}

func (p *Plan) Validate() error {
	if len(p.Sections) == 0 {
		return fmt.Errorf("%w: plan must have at least one section", ErrInvalidPlan)
	}

	for i, section := range p.Sections {
		if section.Name == "" {
			return fmt.Errorf("%w: section %d has no name", ErrInvalidPlan, i)
		}
		if section.QuestionCount <= 0 {
			return fmt.Errorf("%w: section %q specifies zero questions", ErrInvalidPlan, section.Name)
		}
		if section.InitialDifficulty < Easy || section.InitialDifficulty > Hard {
			return fmt.Errorf("%w: section %q has an unknown initial difficulty", ErrInvalidPlan, section.Name)
		}
	}

	return nil
}

// FacetsFor returns the pinned facets for a question slot, or nil when the
// provider should choose them.
func (s *Section) FacetsFor(slot int) []string {
	if slot < 0 || slot >= len(s.FacetSlots) {
		return nil
	}
	return s.FacetSlots[slot]
}

// WeightFor returns the aggregation weight for a question slot.
func (s *Section) WeightFor(slot int) float64 {
	if slot < 0 || slot >= len(s.QuestionWeights) {
		return 1
	}
	if s.QuestionWeights[slot] <= 0 {
		return 1
	}
	return s.QuestionWeights[slot]
}
