// Package rulebased is a deterministic reasoning provider used for offline
// interviews and tests. Questions come from fixed per-difficulty templates,
// facet detection is keyword matching, and scoring is a crude length and
// coverage heuristic. Identical input always yields identical output.
package rulebased

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/interview-conductor/internal/ai"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

var questionTemplates = map[string]string{
	"easy":   "Explain the fundamentals of %s as they apply to the %s role.",
	"medium": "Describe a concrete situation where you applied %s in practice. What did you do and why?",
	"hard":   "Discuss the trade-offs and failure modes you have seen around %s. How would you design around them?",
}

func (p *Provider) GenerateQuestion(_ context.Context, req *ai.QuestionRequest) (*ai.GeneratedQuestion, error) {
	if req == nil {
		return nil, fmt.Errorf("question request is required")
	}

	if req.ProbeFacet != "" {
		return &ai.GeneratedQuestion{
			Text:           fmt.Sprintf("Earlier you did not touch on %s. Can you elaborate on it?", humanize(req.ProbeFacet)),
			RequiredFacets: []string{req.ProbeFacet},
		}, nil
	}

	template, ok := questionTemplates[req.Difficulty]
	if !ok {
		template = questionTemplates["medium"]
	}

	topic := humanize(req.Section)
	return &ai.GeneratedQuestion{
		Text:           fmt.Sprintf(template, topic, req.Role),
		RequiredFacets: []string{req.Section + "_fundamentals", req.Section + "_experience"},
	}, nil
}

// DetectFacet matches the facet label (underscores treated as spaces) as a
// keyword group: the answer addresses the facet when it contains every word
// of the label.
func (p *Provider) DetectFacet(_ context.Context, text, facet string) (bool, error) {
	haystack := strings.ToLower(text)
	for _, word := range strings.Fields(humanize(facet)) {
		if !strings.Contains(haystack, word) {
			return false, nil
		}
	}
	return true, nil
}

func (p *Provider) ScoreAnswer(_ context.Context, req *ai.ScoreRequest) (*ai.ScoredAnswer, error) {
	if req == nil {
		return nil, fmt.Errorf("score request is required")
	}

	words := len(strings.Fields(req.Answer))

	base := 3.0
	switch {
	case words < 15:
		base = 2.0
	case words > 80:
		base = 4.0
	}

	// Coverage nudges the heuristic: a full answer that also addressed the
	// facets reads stronger, a hollow one weaker.
	switch {
	case req.PriorCoverage >= 0.9:
		base += 0.5
	case req.PriorCoverage < 0.5:
		base -= 0.5
	}

	scores := make(map[string]float64, len(req.Dimensions))
	for _, dim := range req.Dimensions {
		scores[dim] = base
	}

	return &ai.ScoredAnswer{
		Scores: scores,
		Notes:  fmt.Sprintf("heuristic score from %d words and %.2f facet coverage", words, req.PriorCoverage),
	}, nil
}

func humanize(label string) string {
	return strings.ToLower(strings.ReplaceAll(label, "_", " "))
}
