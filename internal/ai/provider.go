package ai

import (
	"context"
	"errors"
)

var (
	// ErrProvider marks non-transient reasoning provider failures, such as
	// malformed output. Callers must not retry it.
	ErrProvider = errors.New("reasoning provider error")

	// ErrProviderTimeout marks a timed out provider call. Callers may retry
	// it a bounded number of times.
	ErrProviderTimeout = errors.New("reasoning provider timeout")
)

// Profile is a structured candidate profile supplied with the interview plan.
// It is forwarded to question generation only.
type Profile struct {
	Skills    []string `json:"skills,omitempty" mapstructure:"skills"`
	Summary   string   `json:"summary,omitempty" mapstructure:"summary"`
	Seniority string   `json:"seniority,omitempty" mapstructure:"seniority"`
}

// Exchange is one already completed question/answer pair, passed as history
// so the provider does not repeat itself.
type Exchange struct {
	Question string
	Answer   string
}

type QuestionRequest struct {
	Role       string
	Section    string
	Difficulty string
	// ProbeFacet, when set, asks for a follow-up probing this facet.
	ProbeFacet string
	History    []Exchange
	Profile    *Profile
}

type GeneratedQuestion struct {
	Text string
	// RequiredFacets are the conceptual points an excellent answer covers.
	RequiredFacets []string
}

type ScoreRequest struct {
	Role       string
	Section    string
	Difficulty string
	Question   string
	Answer     string
	// PriorCoverage is the coverage score already computed for the answer.
	PriorCoverage float64
	// Dimensions lists the rubric dimensions the scorer must report.
	Dimensions []string
}

type ScoredAnswer struct {
	Scores map[string]float64
	Notes  string
}

// Provider is the reasoning capability injected into the interview core.
// Implementations may be remote (gemini) or deterministic (rulebased).
type Provider interface {
	GenerateQuestion(ctx context.Context, req *QuestionRequest) (*GeneratedQuestion, error)
	DetectFacet(ctx context.Context, text, facet string) (bool, error)
}

// AnswerScorer produces raw dimension scores for an answer. The rating
// evaluator recomputes the weighted overall itself and never trusts one
// reported by the scorer.
type AnswerScorer interface {
	ScoreAnswer(ctx context.Context, req *ScoreRequest) (*ScoredAnswer, error)
}
