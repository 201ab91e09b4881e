package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adaptive-meal-planner/internal/config"
	"adaptive-meal-planner/internal/database"
	"adaptive-meal-planner/internal/llm"
	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/shared"
)

// scriptedGenerator answers the nutritionist with a fixed week and the
// coach with a revision naming the logged day.
type scriptedGenerator struct {
	failCoach bool
}

func (g *scriptedGenerator) GenerateContent(ctx context.Context, req llm.Request) (llm.ContentResponse, error) {
	usage := shared.TokenUsage{PromptTokens: 200, CompletionTokens: 300, TotalTokens: 500, Model: "scripted"}
	if !strings.Contains(req.Prompt, "# Coach Agent Prompt") {
		days := make([]string, 7)
		for i, label := range []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"} {
			days[i] = fmt.Sprintf(`{"dayLabel":%q,"breakfast":[{"name":"Toast","portion":"2 slices"}],"lunch":[],"dinner":[],"snacks":[],"summary":"original %d"}`, label, i)
		}
		return llm.ContentResponse{
			Content: `{"days":[` + strings.Join(days, ",") + `],"weeklyAdvice":"Sleep well"}`,
			Usage:   usage,
		}, nil
	}
	if g.failCoach {
		return llm.ContentResponse{}, errors.New("upstream unavailable")
	}
	return llm.ContentResponse{
		Content: `{"analysis":"noted","suggestions":"walk more","revisedNextDay":{"breakfast":[],"lunch":[{"name":"Soup","portion":"1 bowl"}],"dinner":[],"snacks":[],"summary":"revised"}}`,
		Usage:   usage,
	}, nil
}

func newTestApp(t *testing.T, gen llm.TextGenerator) *App {
	t.Helper()
	cfg := &config.Config{DatabasePath: filepath.Join(t.TempDir(), "meal-coach.db")}
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	a := newApp(cfg, gen, db)
	t.Cleanup(func() { a.Close() })
	return a
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

const profileJSON = `{"height":175,"weight":80,"age":45,"gender":"male","mealsPerDay":3,"diningStyle":"home","dietaryGoal":"lower cholesterol"}`

func TestGeneratePlan(t *testing.T) {
	a := newTestApp(t, &scriptedGenerator{})
	var out bytes.Buffer

	if err := a.GeneratePlan(context.Background(), writeFile(t, "profile.json", profileJSON), &out); err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}

	var plan planner.WeeklyPlan
	if err := json.Unmarshal(out.Bytes(), &plan); err != nil {
		t.Fatalf("output is not a plan: %v", err)
	}
	if len(plan.Days) != 7 || plan.WeeklyAdvice != "Sleep well" {
		t.Errorf("unexpected plan: %+v", plan)
	}

	var metricsOut bytes.Buffer
	if err := a.PrintMetrics(context.Background(), 7, &metricsOut); err != nil {
		t.Fatalf("PrintMetrics failed: %v", err)
	}
	if !strings.Contains(metricsOut.String(), "Nutritionist") {
		t.Errorf("expected Nutritionist usage in report, got:\n%s", metricsOut.String())
	}
}

func TestGeneratePlan_Unavailable(t *testing.T) {
	a := newTestApp(t, nil)
	err := a.GeneratePlan(context.Background(), writeFile(t, "profile.json", profileJSON), &bytes.Buffer{})
	if !errors.Is(err, planner.ErrGenerationUnavailable) {
		t.Errorf("expected ErrGenerationUnavailable, got %v", err)
	}
}

func TestSimulate(t *testing.T) {
	ctx := context.Background()

	t.Run("AppliesRevisionsInOrder", func(t *testing.T) {
		a := newTestApp(t, &scriptedGenerator{})
		logs := writeFile(t, "logs.json", `[{"dayIndex":0,"notes":"a"},{"dayIndex":6,"notes":"b"}]`)
		var out bytes.Buffer

		if err := a.Simulate(ctx, writeFile(t, "profile.json", profileJSON), logs, &out); err != nil {
			t.Fatalf("Simulate failed: %v", err)
		}

		var report SimulationReport
		if err := json.Unmarshal(out.Bytes(), &report); err != nil {
			t.Fatalf("output is not a report: %v", err)
		}
		if len(report.Steps) != 2 || report.Steps[0].Adjustment == nil {
			t.Fatalf("unexpected steps: %+v", report.Steps)
		}
		if got := report.FinalPlan.Days[1]; got.DayLabel != "Tuesday" || got.Summary != "revised" {
			t.Errorf("expected revised Tuesday, got %+v", got)
		}
		for i, d := range report.FinalPlan.Days {
			if i != 1 && d.Summary != fmt.Sprintf("original %d", i) {
				t.Errorf("day %d unexpectedly changed: %q", i, d.Summary)
			}
		}
	})

	t.Run("ContinuesAfterFailedAnalysis", func(t *testing.T) {
		a := newTestApp(t, &scriptedGenerator{failCoach: true})
		logs := writeFile(t, "logs.json", `[{"dayIndex":0},{"dayIndex":1}]`)
		var out bytes.Buffer

		if err := a.Simulate(ctx, writeFile(t, "profile.json", profileJSON), logs, &out); err != nil {
			t.Fatalf("Simulate failed: %v", err)
		}
		var report SimulationReport
		if err := json.Unmarshal(out.Bytes(), &report); err != nil {
			t.Fatalf("output is not a report: %v", err)
		}
		for _, step := range report.Steps {
			if step.Error == "" || step.Adjustment != nil {
				t.Errorf("expected failed step, got %+v", step)
			}
		}
		if report.FinalPlan.Days[1].Summary != "original 1" {
			t.Error("expected plan untouched after failed analyses")
		}
	})
}

func TestCleanupMetrics(t *testing.T) {
	a := newTestApp(t, &scriptedGenerator{})
	if err := a.GeneratePlan(context.Background(), writeFile(t, "profile.json", profileJSON), &bytes.Buffer{}); err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	removed, err := a.CleanupMetrics(context.Background(), 30)
	if err != nil {
		t.Fatalf("CleanupMetrics failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected fresh records to be kept, removed %d", removed)
	}
}
