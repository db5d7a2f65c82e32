package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-conductor/internal/logger"
	"github.com/spigell/interview-conductor/internal/report"
	"github.com/spigell/interview-conductor/internal/rubric"
	"github.com/spigell/interview-conductor/internal/transcript"
)

var reportCmd = &cobra.Command{
	Use:   "report <transcript-file>",
	Short: "Aggregate a concluded interview transcript into a final report",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runReport(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("rubric", "", "rubric file. Defaults to the built-in rubric.")
	reportCmd.Flags().Bool("json-report", false, "print the report as JSON instead of the narrative")
	reportCmd.Flags().StringP("out", "o", "", "also write the report JSON to this file")
}

func runReport(cmd *cobra.Command, path string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	session, err := transcript.Load(path)
	if err != nil {
		logger.Fatal("loading transcript", zap.Error(err), zap.String("path", path))
	}

	rb := rubric.Default()
	if rubricPath, _ := cmd.Flags().GetString("rubric"); rubricPath != "" {
		if rb, err = rubric.FromFile(rubricPath); err != nil {
			logger.Fatal("loading rubric", zap.Error(err), zap.String("path", rubricPath))
		}
	}

	final, err := report.Aggregate(session, rb)
	if err != nil {
		logger.Fatal("aggregating the session", zap.Error(err), zap.String("session_id", session.ID))
	}

	if asJSON, _ := cmd.Flags().GetBool("json-report"); asJSON {
		pretty, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			logger.Fatal("encoding report", zap.Error(err))
		}
		fmt.Println(string(pretty))
	} else {
		fmt.Print(final.Narrative())
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := final.ToFile(out); err != nil {
			logger.Fatal("saving report", zap.Error(err), zap.String("path", out))
		}
		logger.Info("report saved", zap.String("path", out))
	}
}
