package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/rubric"
)

type stubProvider struct {
	requests    []*ai.QuestionRequest
	questions   []*ai.GeneratedQuestion
	genErr      error
	genCalls    int
	detectCalls int
	detectErr   error
	scoreFor    func(answer string) float64
}

func (s *stubProvider) GenerateQuestion(_ context.Context, req *ai.QuestionRequest) (*ai.GeneratedQuestion, error) {
	s.genCalls++
	s.requests = append(s.requests, req)

	if s.genErr != nil {
		return nil, s.genErr
	}

	if len(s.questions) > 0 {
		next := s.questions[0]
		s.questions = s.questions[1:]
		return next, nil
	}

	return &ai.GeneratedQuestion{
		Text:           fmt.Sprintf("question %d about %s", s.genCalls, req.Section),
		RequiredFacets: []string{"observability"},
	}, nil
}

func (s *stubProvider) DetectFacet(_ context.Context, text, facet string) (bool, error) {
	s.detectCalls++
	if s.detectErr != nil {
		return false, s.detectErr
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(facet)), nil
}

func (s *stubProvider) ScoreAnswer(_ context.Context, req *ai.ScoreRequest) (*ai.ScoredAnswer, error) {
	score := 3.0
	if s.scoreFor != nil {
		score = s.scoreFor(req.Answer)
	}

	scores := make(map[string]float64, len(req.Dimensions))
	for _, dim := range req.Dimensions {
		scores[dim] = score
	}

	return &ai.ScoredAnswer{Scores: scores, Notes: "stubbed"}, nil
}

func testPlan() *Plan {
	return &Plan{
		Role: "Platform Engineer",
		Sections: []Section{{
			Name:              "system_design",
			QuestionCount:     2,
			InitialDifficulty: Medium,
			FacetSlots:        [][]string{{"caching", "sharding", "replication"}},
		}},
	}
}

func newTestOrchestrator(t *testing.T, plan *Plan, stub *stubProvider) *Orchestrator {
	t.Helper()

	orch, err := New(plan, rubric.Default(), Deps{
		Provider: stub,
		Scorer:   stub,
		Logger:   zap.NewNop(),
	}, &Options{RetryBackoff: time.Millisecond, MaxRetries: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return orch
}

func TestAdaptiveSessionEndToEnd(t *testing.T) {
	stub := &stubProvider{
		scoreFor: func(answer string) float64 {
			if strings.Contains(answer, "observability") {
				return 5
			}
			return 2
		},
	}

	orch := newTestOrchestrator(t, testPlan(), stub)
	ctx := context.Background()

	first, err := orch.Start(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Difficulty != Medium {
		t.Fatalf("expected the initial difficulty, got %s", first.Difficulty)
	}
	if len(first.RequiredFacets) != 3 {
		t.Fatalf("expected the pinned facet slot, got %v", first.RequiredFacets)
	}

	// First answer covers nothing and scores below threshold.
	outcome, err := orch.SubmitAnswer(ctx, first.ID, "I would just restart the servers.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Coverage.Score != 0 {
		t.Fatalf("expected zero coverage, got %v", outcome.Coverage.Score)
	}
	if outcome.Rating.Overall != 2 {
		t.Fatalf("expected overall 2, got %v", outcome.Rating.Overall)
	}
	if outcome.Done {
		t.Fatal("session concluded too early")
	}

	second := outcome.Next
	if second.Difficulty != Easy {
		t.Fatalf("expected the difficulty to drop to easy, got %s", second.Difficulty)
	}

	probe := stub.requests[len(stub.requests)-1].ProbeFacet
	if probe != "caching" {
		t.Fatalf("expected a follow-up probing the first missing facet, got %q", probe)
	}

	// Resubmitting the already answered turn must not change anything.
	if _, err := orch.SubmitAnswer(ctx, first.ID, "again"); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("expected ErrStaleTurn, got %v", err)
	}

	outcome, err = orch.SubmitAnswer(ctx, second.ID, "Full observability with metrics, traces and logs.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Done {
		t.Fatal("expected the session to conclude after the section target")
	}
	if outcome.Coverage.Score != 1 {
		t.Fatalf("expected full coverage, got %v", outcome.Coverage.Score)
	}

	session := orch.Session()
	if !session.Concluded() {
		t.Fatalf("expected concluded phase, got %s", session.Phase)
	}
	if session.TerminationReason != ReasonCompleted {
		t.Fatalf("unexpected termination reason: %s", session.TerminationReason)
	}
	if len(session.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(session.Turns))
	}

	for _, turn := range session.Turns {
		if turn.Coverage == nil || turn.Rating == nil {
			t.Fatalf("turn %s is missing evaluation results", turn.ID)
		}
	}

	if len(session.Audit) == 0 {
		t.Fatal("expected audit records for the transitions")
	}
}

func TestSubmitAnswerStaleTurnLeavesStateUntouched(t *testing.T) {
	stub := &stubProvider{}
	orch := newTestOrchestrator(t, testPlan(), stub)
	ctx := context.Background()

	turn, err := orch.Start(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	auditLen := len(orch.Session().Audit)

	if _, err := orch.SubmitAnswer(ctx, "not-the-open-turn", "hello"); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("expected ErrStaleTurn, got %v", err)
	}

	session := orch.Session()
	if session.Phase != PhaseAwaitingAnswer {
		t.Fatalf("expected awaiting_answer, got %s", session.Phase)
	}
	if session.OpenTurn() == nil || session.OpenTurn().ID != turn.ID {
		t.Fatal("expected the original turn to stay open")
	}
	if len(session.Audit) != auditLen {
		t.Fatal("expected no new audit records")
	}
}

func TestSubmitAnswerRejectsEmptyAnswer(t *testing.T) {
	stub := &stubProvider{}
	orch := newTestOrchestrator(t, testPlan(), stub)
	ctx := context.Background()

	turn, err := orch.Start(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := orch.SubmitAnswer(ctx, turn.ID, ""); err == nil {
		t.Fatal("expected error for empty answer")
	}

	if orch.Session().Phase != PhaseAwaitingAnswer {
		t.Fatalf("expected awaiting_answer, got %s", orch.Session().Phase)
	}
}

func TestNewRejectsInvalidPlan(t *testing.T) {
	plan := &Plan{
		Role:     "Engineer",
		Sections: []Section{{Name: "coding", QuestionCount: 0, InitialDifficulty: Easy}},
	}

	_, err := New(plan, rubric.Default(), Deps{Provider: &stubProvider{}, Scorer: &stubProvider{}}, nil)
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestAbortConcludesWithReason(t *testing.T) {
	stub := &stubProvider{}
	orch := newTestOrchestrator(t, testPlan(), stub)

	if _, err := orch.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := orch.Abort("candidate_withdrew"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session := orch.Session()
	if !session.Concluded() {
		t.Fatalf("expected concluded, got %s", session.Phase)
	}
	if session.TerminationReason != "candidate_withdrew" {
		t.Fatalf("unexpected reason: %s", session.TerminationReason)
	}

	if err := orch.Abort("again"); err == nil {
		t.Fatal("expected error when aborting a concluded session")
	}
}

func TestProviderTimeoutRetriesThenConcludes(t *testing.T) {
	stub := &stubProvider{
		genErr: fmt.Errorf("deadline: %w", ai.ErrProviderTimeout),
	}
	orch := newTestOrchestrator(t, testPlan(), stub)

	_, err := orch.Start(context.Background())
	if !errors.Is(err, ai.ErrProviderTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}

	if stub.genCalls != 2 {
		t.Fatalf("expected 2 attempts, got %d", stub.genCalls)
	}

	session := orch.Session()
	if !session.Concluded() {
		t.Fatalf("expected concluded, got %s", session.Phase)
	}
	if session.TerminationReason != ReasonProviderUnavailable {
		t.Fatalf("unexpected reason: %s", session.TerminationReason)
	}
}

func TestMalformedProviderOutputIsNotRetried(t *testing.T) {
	stub := &stubProvider{
		detectErr: fmt.Errorf("garbled json: %w", ai.ErrProvider),
	}
	orch := newTestOrchestrator(t, testPlan(), stub)
	ctx := context.Background()

	turn, err := orch.Start(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = orch.SubmitAnswer(ctx, turn.ID, "an actual answer")
	if !errors.Is(err, ai.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	if stub.detectCalls != 1 {
		t.Fatalf("expected a single detection attempt, got %d", stub.detectCalls)
	}

	session := orch.Session()
	if !session.Concluded() {
		t.Fatalf("expected concluded, got %s", session.Phase)
	}
	if session.TerminationReason != ReasonProviderError {
		t.Fatalf("unexpected reason: %s", session.TerminationReason)
	}
}

func TestStartTwiceFails(t *testing.T) {
	stub := &stubProvider{}
	orch := newTestOrchestrator(t, testPlan(), stub)

	if _, err := orch.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := orch.Start(context.Background()); err == nil {
		t.Fatal("expected error on double start")
	}
}
