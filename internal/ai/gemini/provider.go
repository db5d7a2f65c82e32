package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/logger"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

//go:embed prompts/question.md
var questionTemplate string

//go:embed prompts/facet.md
var facetTemplate string

//go:embed prompts/rating.md
var ratingTemplate string

const defaultMaxLogLength = 200

// Provider implements the reasoning capabilities (question generation, facet
// detection, answer scoring) on top of Gemini.
type Provider struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewProvider(generator contentGenerator, log *zap.Logger, maxLogLength int) *Provider {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Provider{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

type questionPayload struct {
	Question string   `mapstructure:"question"`
	Facets   []string `mapstructure:"facets"`
}

func (p *Provider) GenerateQuestion(ctx context.Context, req *ai.QuestionRequest) (*ai.GeneratedQuestion, error) {
	if req == nil {
		return nil, fmt.Errorf("question request is required")
	}

	profileJSON := "null"
	if req.Profile != nil {
		data, err := json.Marshal(req.Profile)
		if err != nil {
			return nil, fmt.Errorf("marshal profile: %w", err)
		}
		profileJSON = string(data)
	}

	historyJSON := "[]"
	if len(req.History) > 0 {
		questions := make([]string, 0, len(req.History))
		for _, exchange := range req.History {
			questions = append(questions, exchange.Question)
		}
		data, err := json.Marshal(questions)
		if err != nil {
			return nil, fmt.Errorf("marshal history: %w", err)
		}
		historyJSON = string(data)
	}

	probe := req.ProbeFacet
	if probe == "" {
		probe = "none"
	}

	prompt := fill(questionTemplate, map[string]string{
		"{{ROLE}}":         req.Role,
		"{{SECTION}}":      req.Section,
		"{{DIFFICULTY}}":   req.Difficulty,
		"{{PROBE_FACET}}":  probe,
		"{{PROFILE_JSON}}": profileJSON,
		"{{HISTORY_JSON}}": historyJSON,
	})

	raw, err := p.generate(ctx, "generate_question", prompt)
	if err != nil {
		return nil, err
	}

	var payload questionPayload
	if err := decodeResponse(raw, &payload); err != nil {
		return nil, err
	}

	if strings.TrimSpace(payload.Question) == "" {
		return nil, fmt.Errorf("%w: response has no question text", ai.ErrProvider)
	}

	return &ai.GeneratedQuestion{
		Text:           strings.TrimSpace(payload.Question),
		RequiredFacets: payload.Facets,
	}, nil
}

type facetPayload struct {
	Addressed bool   `mapstructure:"addressed"`
	Reason    string `mapstructure:"reason"`
}

func (p *Provider) DetectFacet(ctx context.Context, text, facet string) (bool, error) {
	prompt := fill(facetTemplate, map[string]string{
		"{{FACET}}":  facet,
		"{{ANSWER}}": text,
	})

	raw, err := p.generate(ctx, "detect_facet", prompt)
	if err != nil {
		return false, err
	}

	var payload facetPayload
	if err := decodeResponse(raw, &payload); err != nil {
		return false, err
	}

	return payload.Addressed, nil
}

type scorePayload struct {
	Scores map[string]float64 `mapstructure:"scores"`
	Notes  string             `mapstructure:"notes"`
}

func (p *Provider) ScoreAnswer(ctx context.Context, req *ai.ScoreRequest) (*ai.ScoredAnswer, error) {
	if req == nil {
		return nil, fmt.Errorf("score request is required")
	}

	prompt := fill(ratingTemplate, map[string]string{
		"{{MIN_SCORE}}":      "1",
		"{{MAX_SCORE}}":      "5",
		"{{ROLE}}":           req.Role,
		"{{SECTION}}":        req.Section,
		"{{DIFFICULTY}}":     req.Difficulty,
		"{{QUESTION}}":       req.Question,
		"{{PRIOR_COVERAGE}}": fmt.Sprintf("%.2f", req.PriorCoverage),
		"{{ANSWER}}":         req.Answer,
		"{{DIMENSIONS}}":     "- " + strings.Join(req.Dimensions, "\n- "),
	})

	raw, err := p.generate(ctx, "score_answer", prompt)
	if err != nil {
		return nil, err
	}

	var payload scorePayload
	if err := decodeResponse(raw, &payload); err != nil {
		return nil, err
	}

	for _, dim := range req.Dimensions {
		if _, ok := payload.Scores[dim]; !ok {
			return nil, fmt.Errorf("%w: response misses dimension %q", ai.ErrProvider, dim)
		}
	}

	return &ai.ScoredAnswer{Scores: payload.Scores, Notes: payload.Notes}, nil
}

func (p *Provider) generate(ctx context.Context, op, prompt string) (string, error) {
	p.logger.Debug("gemini request",
		zap.String("operation", op),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, p.maxLogLen)),
	)

	raw, err := p.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", classify(op, err)
	}

	p.logger.Debug("gemini response",
		zap.String("operation", op),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, p.maxLogLen)),
	)

	return raw, nil
}

// classify maps transport failures onto the error taxonomy: deadline and
// throttling/server errors are retryable timeouts, anything else is a
// non-transient provider error.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ai.ErrProviderTimeout, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return fmt.Errorf("%s: %w: %v", op, ai.ErrProviderTimeout, err)
		}
	}

	return fmt.Errorf("%s: %w: %v", op, ai.ErrProvider, err)
}

// decodeResponse parses the model output tolerating markdown fences and
// loosely typed values, then decodes the generic map into the target payload.
func decodeResponse(raw string, target any) error {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return fmt.Errorf("%w: parse response: %v", ai.ErrProvider, err)
	}

	cfg := &mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("%w: decode response: %v", ai.ErrProvider, err)
	}

	return nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func fill(template string, replacements map[string]string) string {
	prompt := template
	for placeholder, value := range replacements {
		prompt = strings.ReplaceAll(prompt, placeholder, value)
	}
	return prompt
}
