package interview

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func validPlan() *Plan {
	return &Plan{
		Role: "Backend Engineer",
		Sections: []Section{
			{Name: "coding", QuestionCount: 2, InitialDifficulty: Medium},
			{Name: "behavioral", QuestionCount: 1, InitialDifficulty: Easy},
		},
	}
}

func TestPlanValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Plan)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(*Plan) {},
		},
		{
			name:    "no sections",
			mutate:  func(p *Plan) { p.Sections = nil },
			wantErr: true,
		},
		{
			name:    "unnamed section",
			mutate:  func(p *Plan) { p.Sections[0].Name = "" },
			wantErr: true,
		},
		{
			name:    "zero questions",
			mutate:  func(p *Plan) { p.Sections[1].QuestionCount = 0 },
			wantErr: true,
		},
		{
			name:    "difficulty out of range",
			mutate:  func(p *Plan) { p.Sections[0].InitialDifficulty = Difficulty(42) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := validPlan()
			tt.mutate(plan)

			err := plan.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPlan) {
					t.Fatalf("expected ErrInvalidPlan, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPlanFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "interview_plan.json")
	content := `{
  "role": "SRE",
  "candidate": "Alex",
  "profile": {"summary": "5 years of on-call experience"},
  "sections": [
    {
      "name": "incident_response",
      "question_count": 2,
      "initial_difficulty": "hard",
      "facet_slots": [["triage", "postmortem"]],
      "question_weights": [2, 1]
    }
  ]
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, err := PlanFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.Role != "SRE" || plan.Candidate != "Alex" {
		t.Fatalf("unexpected header fields: %+v", plan)
	}
	if plan.Profile == nil {
		t.Fatal("expected the profile to be carried")
	}

	section := plan.Sections[0]
	if section.InitialDifficulty != Hard {
		t.Fatalf("expected hard difficulty, got %s", section.InitialDifficulty)
	}
	if facets := section.FacetsFor(0); len(facets) != 2 || facets[0] != "triage" {
		t.Fatalf("unexpected facet slot: %v", facets)
	}
	if section.FacetsFor(1) != nil {
		t.Fatal("slot without pinned facets must return nil")
	}
	if section.WeightFor(0) != 2 || section.WeightFor(1) != 1 || section.WeightFor(5) != 1 {
		t.Fatal("unexpected question weights")
	}
}

func TestPlanFromFileRejectsInvalidPlan(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "interview_plan.json")
	if err := os.WriteFile(path, []byte(`{"role": "SRE", "sections": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := PlanFromFile(path); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}
