package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/interview-conductor/internal/evaluate"
)

// ErrStaleTurn is returned when a submitted answer does not reference the
// currently open turn. It guards against duplicate and out-of-order
// submissions and never changes session state.
var ErrStaleTurn = errors.New("turn is not the currently open one")

// Phase is the orchestrator state the session is currently in.
type Phase int

const (
	PhasePlanning Phase = iota
	PhaseAwaitingAnswer
	PhaseEvaluating
	PhaseDeciding
	PhaseConcluded
)

func (p Phase) String() string {
	switch p {
	case PhasePlanning:
		return "planning"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseDeciding:
		return "deciding"
	case PhaseConcluded:
		return "concluded"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for _, known := range []Phase{PhasePlanning, PhaseAwaitingAnswer, PhaseEvaluating, PhaseDeciding, PhaseConcluded} {
		if known.String() == s {
			*p = known
			return nil
		}
	}

	return fmt.Errorf("unknown phase: %q", s)
}

// Turn is one question/answer exchange. The answer is set at most once and is
// immutable afterwards, as are the evaluation results attached to it.
type Turn struct {
	ID             string                   `json:"id"`
	Section        string                   `json:"section"`
	Difficulty     Difficulty               `json:"difficulty"`
	Question       string                   `json:"question"`
	RequiredFacets []string                 `json:"required_facets"`
	Weight         float64                  `json:"weight"`
	AskedAt        time.Time                `json:"asked_at"`
	Answer         string                   `json:"answer,omitempty"`
	Answered       bool                     `json:"answered"`
	AnsweredAt     time.Time                `json:"answered_at,omitzero"`
	Coverage       *evaluate.CoverageResult `json:"coverage,omitempty"`
	Rating         *evaluate.RatingResult   `json:"rating,omitempty"`
}

// AuditRecord is one entry of the append-only transition ledger. Together the
// records reconstruct why every question was asked.
type AuditRecord struct {
	Phase     Phase     `json:"phase"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the full state of one interview. It is owned by the orchestrator
// until it concludes, then handed read-only to the aggregator.
type Session struct {
	ID                string        `json:"id"`
	Role              string        `json:"role"`
	Candidate         string        `json:"candidate,omitempty"`
	Turns             []*Turn       `json:"turns"`
	Phase             Phase         `json:"phase"`
	TerminationReason string        `json:"termination_reason,omitempty"`
	Audit             []AuditRecord `json:"audit"`
}

func newSession(plan *Plan) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Role:      plan.Role,
		Candidate: plan.Candidate,
		Phase:     PhasePlanning,
	}
	s.audit("session_created")
	return s
}

// Concluded reports whether the session reached its terminal phase.
func (s *Session) Concluded() bool {
	return s.Phase == PhaseConcluded
}

// OpenTurn returns the turn awaiting an answer, or nil.
func (s *Session) OpenTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	last := s.Turns[len(s.Turns)-1]
	if last.Answered {
		return nil
	}
	return last
}

func (s *Session) appendTurn(t *Turn) {
	s.Turns = append(s.Turns, t)
}

// recordAnswer sets the answer on the open turn. Submissions referencing any
// other turn fail with ErrStaleTurn and leave the session untouched.
func (s *Session) recordAnswer(turnID, answer string) error {
	open := s.OpenTurn()
	if open == nil || open.ID != turnID {
		return fmt.Errorf("%w: %s", ErrStaleTurn, turnID)
	}

	if answer == "" {
		return fmt.Errorf("answer text must not be empty")
	}

	open.Answer = answer
	open.Answered = true
	open.AnsweredAt = time.Now().UTC()
	return nil
}

func (s *Session) attachResults(turnID string, coverage *evaluate.CoverageResult, rating *evaluate.RatingResult) error {
	for _, turn := range s.Turns {
		if turn.ID != turnID {
			continue
		}
		if !turn.Answered {
			return fmt.Errorf("turn %s has no answer to evaluate", turnID)
		}
		if turn.Coverage != nil || turn.Rating != nil {
			return fmt.Errorf("turn %s is already evaluated", turnID)
		}
		turn.Coverage = coverage
		turn.Rating = rating
		return nil
	}
	return fmt.Errorf("unknown turn: %s", turnID)
}

func (s *Session) transition(to Phase, event string) {
	s.Phase = to
	s.audit(event)
}

func (s *Session) conclude(reason string) {
	s.TerminationReason = reason
	s.transition(PhaseConcluded, "concluded: "+reason)
}

func (s *Session) audit(event string) {
	s.Audit = append(s.Audit, AuditRecord{
		Phase:     s.Phase,
		Event:     event,
		Timestamp: time.Now().UTC(),
	})
}
