package interview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/evaluate"
	"github.com/spigell/interview-conductor/internal/rubric"
	"github.com/spigell/interview-conductor/internal/utils"
)

const (
	defaultProviderTimeout = 60 * time.Second
	defaultMaxRetries      = 3
	retryBackoff           = 2 * time.Second

	// ReasonProviderUnavailable is recorded when provider retries are exhausted.
	ReasonProviderUnavailable = "provider_unavailable"
	// ReasonProviderError is recorded on non-transient provider failures.
	ReasonProviderError = "provider_error"
	// ReasonCompleted is recorded when the plan runs to its natural end.
	ReasonCompleted = "completed"
)

// Deps aggregates the collaborators injected into the orchestrator.
type Deps struct {
	Provider ai.Provider
	Scorer   ai.AnswerScorer
	Logger   *zap.Logger
}

// Options tunes provider call handling.
type Options struct {
	// ProviderTimeout bounds every single reasoning provider call.
	ProviderTimeout time.Duration
	// MaxRetries bounds retries of timed out provider calls.
	MaxRetries int
	// RetryBackoff is the pause between retry attempts.
	RetryBackoff time.Duration
}

// Outcome is what one processed answer produced: the evaluation of the
// answered turn and either the next question or a concluded session.
type Outcome struct {
	Evaluated *Turn
	Coverage  *evaluate.CoverageResult
	Rating    *evaluate.RatingResult
	// Next is the freshly opened turn, nil when the session concluded.
	Next *Turn
	Done bool
}

// Orchestrator drives one interview session through its state machine. It is
// not safe for concurrent use; independent sessions get independent
// orchestrators sharing only the read-only rubric.
type Orchestrator struct {
	plan    *Plan
	rubric  *rubric.Rubric
	session *Session

	provider     ai.Provider
	completeness *evaluate.Completeness
	rater        *evaluate.Rater
	logger       *zap.Logger

	timeout    time.Duration
	maxRetries int
	backoff    time.Duration

	sectionIdx int
	asked      int
	difficulty Difficulty
	probeFacet string
}

// New validates the plan and prepares a session in the planning phase.
func New(plan *Plan, r *rubric.Rubric, deps Deps, opts *Options) (*Orchestrator, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("reasoning provider is required")
	}
	if deps.Scorer == nil {
		return nil, fmt.Errorf("answer scorer is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		plan:         plan,
		rubric:       r,
		session:      newSession(plan),
		provider:     deps.Provider,
		completeness: evaluate.NewCompleteness(deps.Provider, logger),
		rater:        evaluate.NewRater(deps.Scorer, r, logger),
		logger:       logger,
		timeout:      defaultProviderTimeout,
		maxRetries:   defaultMaxRetries,
		backoff:      retryBackoff,
		difficulty:   plan.Sections[0].InitialDifficulty,
	}

	if opts != nil {
		if opts.ProviderTimeout > 0 {
			o.timeout = opts.ProviderTimeout
		}
		if opts.MaxRetries > 0 {
			o.maxRetries = opts.MaxRetries
		}
		if opts.RetryBackoff > 0 {
			o.backoff = opts.RetryBackoff
		}
	}

	return o, nil
}

// Session exposes the session state. Treat it as read-only.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Start asks the first question of the plan and moves to awaiting_answer.
func (o *Orchestrator) Start(ctx context.Context) (*Turn, error) {
	if o.session.Phase != PhasePlanning {
		return nil, fmt.Errorf("session %s is already started", o.session.ID)
	}

	return o.askNext(ctx)
}

// SubmitAnswer records the answer for the open turn, evaluates it, applies
// the adaptive policy and either asks the next question or concludes the
// session. A turn id not matching the open turn fails with ErrStaleTurn and
// changes nothing.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, turnID, answer string) (*Outcome, error) {
	if o.session.Phase != PhaseAwaitingAnswer {
		return nil, fmt.Errorf("%w: session is %s", ErrStaleTurn, o.session.Phase)
	}

	if err := o.session.recordAnswer(turnID, answer); err != nil {
		return nil, err
	}

	turn := o.session.Turns[len(o.session.Turns)-1]
	o.session.transition(PhaseEvaluating, "answer_recorded: "+turnID)

	coverage, rating, err := o.evaluateTurn(ctx, turn)
	if err != nil {
		return nil, err
	}

	if err := o.session.attachResults(turn.ID, coverage, rating); err != nil {
		return nil, err
	}

	o.session.transition(PhaseDeciding, "turn_evaluated: "+turnID)

	threshold := o.rubric.MinimumFor(turn.Section)
	next := NextDifficulty(coverage.Score, rating.Overall, threshold, o.rubric.PromotionMargin, o.difficulty)

	o.probeFacet = ""
	if ShouldProbe(coverage.Score, rating.Overall, threshold) && len(coverage.Missing) > 0 {
		o.probeFacet = coverage.Missing[0]
	}

	o.logger.Info("adaptive decision",
		zap.String("session_id", o.session.ID),
		zap.String("turn_id", turn.ID),
		zap.Float64("coverage_score", coverage.Score),
		zap.Float64("overall_rating", rating.Overall),
		zap.String("difficulty", o.difficulty.String()),
		zap.String("next_difficulty", next.String()),
		zap.String("probe_facet", o.probeFacet),
	)

	o.difficulty = next
	outcome := &Outcome{Evaluated: turn, Coverage: coverage, Rating: rating}

	if o.asked >= o.currentSection().QuestionCount {
		o.session.audit("section_complete: " + o.currentSection().Name)
		o.sectionIdx++
		o.asked = 0
		o.probeFacet = ""

		if o.sectionIdx >= len(o.plan.Sections) {
			o.session.conclude(ReasonCompleted)
			outcome.Done = true
			return outcome, nil
		}

		o.difficulty = o.currentSection().InitialDifficulty
	}

	nextTurn, err := o.askNext(ctx)
	if err != nil {
		return nil, err
	}

	outcome.Next = nextTurn
	return outcome, nil
}

// Abort concludes the session immediately with the given reason. It is a
// no-op error on an already concluded session.
func (o *Orchestrator) Abort(reason string) error {
	if o.session.Concluded() {
		return fmt.Errorf("session %s is already concluded", o.session.ID)
	}

	o.logger.Info("aborting session",
		zap.String("session_id", o.session.ID),
		zap.String("reason", reason),
	)

	o.session.conclude(reason)
	return nil
}

func (o *Orchestrator) currentSection() *Section {
	return &o.plan.Sections[o.sectionIdx]
}

func (o *Orchestrator) askNext(ctx context.Context) (*Turn, error) {
	section := o.currentSection()

	req := &ai.QuestionRequest{
		Role:       o.plan.Role,
		Section:    section.Name,
		Difficulty: o.difficulty.String(),
		ProbeFacet: o.probeFacet,
		Profile:    o.plan.Profile,
		History:    o.history(),
	}

	var generated *ai.GeneratedQuestion
	err := o.withRetries(ctx, "generate_question", func(callCtx context.Context) error {
		var genErr error
		generated, genErr = o.provider.GenerateQuestion(callCtx, req)
		return genErr
	})
	if err != nil {
		return nil, err
	}

	facets := section.FacetsFor(o.asked)
	if facets == nil {
		facets = generated.RequiredFacets
	}

	turn := &Turn{
		ID:             uuid.NewString(),
		Section:        section.Name,
		Difficulty:     o.difficulty,
		Question:       generated.Text,
		RequiredFacets: facets,
		Weight:         section.WeightFor(o.asked),
		AskedAt:        time.Now().UTC(),
	}

	o.session.appendTurn(turn)
	o.asked++
	o.session.transition(PhaseAwaitingAnswer, "question_asked: "+turn.ID)

	o.logger.Info("question asked",
		zap.String("session_id", o.session.ID),
		zap.String("turn_id", turn.ID),
		zap.String("section", turn.Section),
		zap.String("difficulty", turn.Difficulty.String()),
		zap.Int("required_facets", len(turn.RequiredFacets)),
	)

	return turn, nil
}

func (o *Orchestrator) evaluateTurn(ctx context.Context, turn *Turn) (*evaluate.CoverageResult, *evaluate.RatingResult, error) {
	var coverage *evaluate.CoverageResult
	err := o.withRetries(ctx, "completeness", func(callCtx context.Context) error {
		var evalErr error
		coverage, evalErr = o.completeness.Evaluate(callCtx, turn.ID, turn.Answer, turn.RequiredFacets)
		return evalErr
	})
	if err != nil {
		return nil, nil, err
	}

	rctx := &evaluate.RatingContext{
		Role:       o.plan.Role,
		Section:    turn.Section,
		Difficulty: turn.Difficulty.String(),
		Question:   turn.Question,
		Coverage:   coverage,
	}

	var rating *evaluate.RatingResult
	err = o.withRetries(ctx, "rating", func(callCtx context.Context) error {
		var evalErr error
		rating, evalErr = o.rater.Evaluate(callCtx, turn.ID, turn.Answer, rctx)
		return evalErr
	})
	if err != nil {
		return nil, nil, err
	}

	return coverage, rating, nil
}

// withRetries runs a provider-backed call under the configured timeout,
// retrying timeouts up to the bounded count. A fatal provider failure always
// concludes the session with a recorded reason before the error propagates.
func (o *Orchestrator) withRetries(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		err := call(callCtx)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = err

		if !errors.Is(err, ai.ErrProviderTimeout) {
			// Malformed output and other non-transient failures are not retried.
			if errors.Is(err, ai.ErrProvider) {
				o.session.conclude(ReasonProviderError)
			}
			return err
		}

		o.logger.Warn("provider call timed out",
			zap.String("session_id", o.session.ID),
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", o.maxRetries),
			zap.Error(err),
		)

		if attempt < o.maxRetries {
			if waitErr := utils.WaitFor(ctx, o.backoff); waitErr != nil {
				break
			}
		}
	}

	o.session.conclude(ReasonProviderUnavailable)
	return fmt.Errorf("%s: retries exhausted: %w", op, lastErr)
}

func (o *Orchestrator) history() []ai.Exchange {
	history := make([]ai.Exchange, 0, len(o.session.Turns))
	for _, turn := range o.session.Turns {
		if !turn.Answered {
			continue
		}
		history = append(history, ai.Exchange{Question: turn.Question, Answer: turn.Answer})
	}
	return history
}
