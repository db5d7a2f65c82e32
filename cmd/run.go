package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/ai"
	"github.com/spigell/interview-conductor/internal/ai/gemini"
	"github.com/spigell/interview-conductor/internal/ai/rulebased"
	"github.com/spigell/interview-conductor/internal/interview"
	"github.com/spigell/interview-conductor/internal/logger"
	"github.com/spigell/interview-conductor/internal/report"
	"github.com/spigell/interview-conductor/internal/rubric"
	"github.com/spigell/interview-conductor/internal/secrets"
	"github.com/spigell/interview-conductor/internal/transcript"
)

const (
	defaultTranscriptFile = "interview_session.json"

	reasonCandidateWithdrew = "candidate_withdrew"
)

// provider joins the two capabilities every concrete provider implements.
type provider interface {
	ai.Provider
	ai.AnswerScorer
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Conduct an interview session from a plan file",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("plan", "p", "", "interview plan file. Overrides the config value.")
	runCmd.Flags().String("provider", "", "reasoning provider: gemini or rulebased. Overrides the config value.")

	viper.BindPFlag("plan", runCmd.Flags().Lookup("plan"))
	viper.BindPFlag("ai.provider", runCmd.Flags().Lookup("provider"))
}

// run is the main command for the cli.
func run(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the interview-conductor", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Plan == "" {
		logger.Fatal("interview plan file is required under the 'plan' key or --plan flag")
	}

	plan, err := interview.PlanFromFile(config.Plan)
	if err != nil {
		logger.Fatal("loading interview plan", zap.Error(err), zap.String("path", config.Plan))
	}

	rb, err := resolveRubric(config)
	if err != nil {
		logger.Fatal("loading rubric", zap.Error(err))
	}

	prov, err := newProvider(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building reasoning provider", zap.Error(err))
	}

	orch, err := interview.New(plan, rb, interview.Deps{
		Provider: prov,
		Scorer:   prov,
		Logger:   logger,
	}, orchestratorOptions(config.AI))
	if err != nil {
		logger.Fatal("preparing the session", zap.Error(err))
	}

	logger.Info("starting the interview",
		zap.String("session_id", orch.Session().ID),
		zap.String("role", plan.Role),
		zap.Int("sections", len(plan.Sections)),
	)

	if err := conduct(ctx, orch, logger); err != nil {
		logger.Error("interview stopped", zap.Error(err))
	}

	finish(config, orch.Session(), rb, logger)
}

// conduct drives the question/answer loop until the session concludes.
func conduct(ctx context.Context, orch *interview.Orchestrator, logger *zap.Logger) error {
	turn, err := orch.Start(ctx)
	if err != nil {
		return fmt.Errorf("asking the first question: %w", err)
	}

	for {
		fmt.Printf("\n[%s / %s]\n%s\n\n", turn.Section, turn.Difficulty, turn.Question)

		answer, err := readAnswer()
		if err != nil {
			// ^C or closed stdin means the candidate walked away.
			if abortErr := orch.Abort(reasonCandidateWithdrew); abortErr != nil {
				return abortErr
			}
			return nil
		}

		outcome, err := orch.SubmitAnswer(ctx, turn.ID, answer)
		if err != nil {
			return fmt.Errorf("processing the answer: %w", err)
		}

		logger.Debug("turn evaluated",
			zap.String("turn_id", outcome.Evaluated.ID),
			zap.Float64("coverage", outcome.Coverage.Score),
			zap.Float64("rating", outcome.Rating.Overall),
		)

		if outcome.Done {
			return nil
		}

		turn = outcome.Next
	}
}

func readAnswer() (string, error) {
	prompt := promptui.Prompt{
		Label: "Your answer",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("answer must not be empty")
			}
			return nil
		},
	}

	answer, err := prompt.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(answer), nil
}

// finish persists the transcript and, when the session concluded, prints the
// final report.
func finish(config *Config, session *interview.Session, rb *rubric.Rubric, logger *zap.Logger) {
	path := config.Transcript
	if path == "" {
		path = defaultTranscriptFile
	}

	if err := transcript.Save(path, session); err != nil {
		logger.Error("saving transcript", zap.Error(err), zap.String("path", path))
	} else {
		logger.Info("transcript saved", zap.String("path", path))
	}

	if !session.Concluded() {
		return
	}

	final, err := report.Aggregate(session, rb)
	if err != nil {
		logger.Error("aggregating the session", zap.Error(err))
		return
	}

	fmt.Println()
	fmt.Print(final.Narrative())

	if config.Report != "" {
		if err := final.ToFile(config.Report); err != nil {
			logger.Error("saving report", zap.Error(err), zap.String("path", config.Report))
			return
		}
		logger.Info("report saved", zap.String("path", config.Report))
	}
}

func resolveRubric(config *Config) (*rubric.Rubric, error) {
	if config.Rubric == "" {
		return rubric.Default(), nil
	}
	return rubric.FromFile(config.Rubric)
}

func orchestratorOptions(cfg *AIConfig) *interview.Options {
	opts := &interview.Options{}
	if cfg != nil && cfg.Gemini != nil {
		opts.MaxRetries = cfg.Gemini.MaxRetries
		if cfg.Gemini.TimeoutSeconds > 0 {
			opts.ProviderTimeout = time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second
		}
	}
	return opts
}

func newProvider(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (provider, error) {
	name := ""
	if cfg != nil {
		name = strings.TrimSpace(strings.ToLower(cfg.Provider))
	}

	switch name {
	case "", "rulebased":
		return rulebased.New(), nil
	case "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("gemini configuration is required when the gemini provider is selected")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: cfg.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}

		return gemini.NewProvider(generator, logger, cfg.Gemini.MaxLogLength), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
