package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ToFile writes the report as an indented JSON document.
func (r *FinalReport) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Narrative renders a short human-readable summary of the report.
func (r *FinalReport) Narrative() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Interview report for session %s", r.SessionID)
	if r.Role != "" {
		fmt.Fprintf(&b, " (%s)", r.Role)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Recommendation: %s (overall %.2f)\n", r.Recommendation, r.Overall)
	if r.TerminationReason != "" && r.TerminationReason != "completed" {
		fmt.Fprintf(&b, "Terminated early: %s\n", r.TerminationReason)
	}

	b.WriteString("\nSections:\n")
	for _, section := range r.Sections {
		flag := ""
		if section.BelowMinimum {
			flag = " [below minimum]"
		}
		fmt.Fprintf(&b, "  - %s: rating %.2f, coverage %.2f over %d question(s)%s\n",
			section.Name, section.MeanRating, section.MeanCoverage, section.Questions, flag)
	}

	if len(r.Strengths) > 0 {
		b.WriteString("\nStrengths:\n")
		for _, finding := range r.Strengths {
			fmt.Fprintf(&b, "  - %s: %s\n", finding.Topic, finding.Evidence)
		}
	}

	if len(r.Risks) > 0 {
		b.WriteString("\nRisks:\n")
		for _, finding := range r.Risks {
			fmt.Fprintf(&b, "  - %s: %s\n", finding.Topic, finding.Evidence)
		}
	}

	if len(r.CalibrationNotes) > 0 {
		b.WriteString("\nCalibration notes (review recommended):\n")
		for _, note := range r.CalibrationNotes {
			fmt.Fprintf(&b, "  - %s\n", note)
		}
	}

	return b.String()
}
