package report

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/rubric"
)

// ErrIncompleteSession is returned when aggregation is attempted on a session
// that has not concluded or has answered turns without both evaluations.
var ErrIncompleteSession = errors.New("session is not ready for aggregation")

// Recommendation is the categorical hiring decision.
type Recommendation string

const (
	StrongHire Recommendation = "strong_hire"
	Hire       Recommendation = "hire"
	LeanHire   Recommendation = "lean_hire"
	NoHire     Recommendation = "no_hire"
)

// Demote returns the next tier down, flooring at no_hire.
func (r Recommendation) Demote() Recommendation {
	switch r {
	case StrongHire:
		return Hire
	case Hire:
		return LeanHire
	default:
		return NoHire
	}
}

// SectionScore aggregates one section of the interview.
type SectionScore struct {
	Name         string  `json:"name"`
	Questions    int     `json:"questions"`
	MeanRating   float64 `json:"mean_rating"`
	MeanCoverage float64 `json:"mean_coverage"`
	// BelowMinimum marks a section whose mean rating missed its threshold,
	// which demotes the recommendation one tier regardless of the overall.
	BelowMinimum bool `json:"below_minimum"`
}

// Finding pairs an observation with the evidence behind it.
type Finding struct {
	Topic    string `json:"topic"`
	Evidence string `json:"evidence"`
}

// FinalReport is the decision artifact produced once per session.
type FinalReport struct {
	SessionID         string         `json:"session_id"`
	Role              string         `json:"role,omitempty"`
	Candidate         string         `json:"candidate,omitempty"`
	TerminationReason string         `json:"termination_reason,omitempty"`
	Sections          []SectionScore `json:"sections"`
	Overall           float64        `json:"overall"`
	Recommendation    Recommendation `json:"recommendation"`
	Strengths         []Finding      `json:"strengths,omitempty"`
	Risks             []Finding      `json:"risks,omitempty"`
	CalibrationNotes  []string       `json:"calibration_notes,omitempty"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// Aggregate fuses the full evaluation history of a concluded session into the
// final recommendation. It is pure and deterministic: identical session and
// rubric input yields identical report fields.
func Aggregate(s *interview.Session, r *rubric.Rubric) (*FinalReport, error) {
	if !s.Concluded() {
		return nil, fmt.Errorf("%w: session %s is still %s", ErrIncompleteSession, s.ID, s.Phase)
	}

	for _, turn := range s.Turns {
		if turn.Answered && (turn.Coverage == nil || turn.Rating == nil) {
			return nil, fmt.Errorf("%w: turn %s is answered but not evaluated", ErrIncompleteSession, turn.ID)
		}
	}

	sections := aggregateSections(s, r)
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no evaluated turns", ErrIncompleteSession)
	}

	overall := overallScore(sections, r)
	recommendation := recommend(overall, r)
	for _, section := range sections {
		if section.BelowMinimum {
			recommendation = recommendation.Demote()
			break
		}
	}

	strengths, risks := findings(sections)

	return &FinalReport{
		SessionID:         s.ID,
		Role:              s.Role,
		Candidate:         s.Candidate,
		TerminationReason: s.TerminationReason,
		Sections:          sections,
		Overall:           overall,
		Recommendation:    recommendation,
		Strengths:         strengths,
		Risks:             risks,
		CalibrationNotes:  calibrationNotes(s, r),
		GeneratedAt:       time.Now().UTC(),
	}, nil
}

// aggregateSections computes per-section weighted rating means and coverage
// means, in section declaration order.
func aggregateSections(s *interview.Session, r *rubric.Rubric) []SectionScore {
	order := make([]string, 0)
	grouped := make(map[string][]*interview.Turn)

	for _, turn := range s.Turns {
		if !turn.Answered {
			continue
		}
		if _, seen := grouped[turn.Section]; !seen {
			order = append(order, turn.Section)
		}
		grouped[turn.Section] = append(grouped[turn.Section], turn)
	}

	sections := make([]SectionScore, 0, len(order))
	for _, name := range order {
		turns := grouped[name]

		var ratingSum, weightSum, coverageSum float64
		for _, turn := range turns {
			weight := turn.Weight
			if weight <= 0 {
				weight = 1
			}
			ratingSum += weight * turn.Rating.Overall
			weightSum += weight
			coverageSum += turn.Coverage.Score
		}

		score := SectionScore{
			Name:         name,
			Questions:    len(turns),
			MeanRating:   ratingSum / weightSum,
			MeanCoverage: coverageSum / float64(len(turns)),
		}
		score.BelowMinimum = score.MeanRating < r.MinimumFor(name)

		sections = append(sections, score)
	}

	return sections
}

func overallScore(sections []SectionScore, r *rubric.Rubric) float64 {
	var overall, weightSum float64
	for _, section := range sections {
		w := r.SectionWeight(section.Name, len(sections))
		overall += w * section.MeanRating
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return overall / weightSum
}

// recommend maps the overall score onto the monotonic threshold ladder.
func recommend(overall float64, r *rubric.Rubric) Recommendation {
	switch {
	case overall >= r.MaxScore-0.5:
		return StrongHire
	case overall >= r.PassThreshold+0.5:
		return Hire
	case overall >= r.PassThreshold:
		return LeanHire
	default:
		return NoHire
	}
}

// findings ranks sections by their distance from the cross-section mean.
// Above-mean sections become strengths, below-mean ones risks; ties keep
// declaration order (the sort is stable).
func findings(sections []SectionScore) (strengths, risks []Finding) {
	var mean float64
	for _, section := range sections {
		mean += section.MeanRating
	}
	mean /= float64(len(sections))

	ranked := make([]SectionScore, len(sections))
	copy(ranked, sections)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].MeanRating-mean) > math.Abs(ranked[j].MeanRating-mean)
	})

	for _, section := range ranked {
		delta := section.MeanRating - mean
		evidence := fmt.Sprintf("section %q mean rating %.2f vs interview mean %.2f over %d question(s)",
			section.Name, section.MeanRating, mean, section.Questions)

		switch {
		case delta > 0:
			strengths = append(strengths, Finding{Topic: section.Name, Evidence: evidence})
		case delta < 0:
			risks = append(risks, Finding{Topic: section.Name, Evidence: evidence})
		}
	}

	return strengths, risks
}

// calibrationNotes flags turns where the two evaluators disagree sharply,
// for human review. No automatic resolution is attempted.
func calibrationNotes(s *interview.Session, r *rubric.Rubric) []string {
	var notes []string
	for _, turn := range s.Turns {
		if !turn.Answered {
			continue
		}

		divergence := math.Abs(turn.Coverage.Score - r.Normalize(turn.Rating.Overall))
		if divergence <= r.DivergenceThreshold {
			continue
		}

		notes = append(notes, fmt.Sprintf(
			"turn %s (%s): coverage %.2f and rating %.2f diverge by %.2f; evaluators disagree",
			turn.ID, turn.Section, turn.Coverage.Score, turn.Rating.Overall, divergence,
		))
	}
	return notes
}
