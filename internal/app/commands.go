package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"
)

// SimulationStep is the outcome of replaying one log.
type SimulationStep struct {
	DayIndex   int                       `json:"dayIndex"`
	Adjustment *planner.AdjustmentResult `json:"adjustment,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// SimulationReport is what Simulate prints.
type SimulationReport struct {
	InitialPlan planner.WeeklyPlan `json:"initialPlan"`
	Steps       []SimulationStep   `json:"steps"`
	FinalPlan   planner.WeeklyPlan `json:"finalPlan"`
}

// GeneratePlan reads a profile from profilePath and writes the generated
// weekly plan to out as JSON.
func (a *App) GeneratePlan(ctx context.Context, profilePath string, out io.Writer) error {
	var p profile.Profile
	if err := readJSON(profilePath, &p); err != nil {
		return err
	}

	ctx, cancel := a.generationContext(ctx)
	defer cancel()

	plan, err := a.newSession().SubmitProfile(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to generate plan: %w", err)
	}
	return writeJSON(out, plan)
}

// Simulate generates a plan for the profile at profilePath, then submits the
// logs at logsPath in order, as a user would over the week. A failed
// analysis is reported and the replay continues.
func (a *App) Simulate(ctx context.Context, profilePath, logsPath string, out io.Writer) error {
	var p profile.Profile
	if err := readJSON(profilePath, &p); err != nil {
		return err
	}
	var logs []planner.DailyLog
	if err := readJSON(logsPath, &logs); err != nil {
		return err
	}

	sess := a.newSession()
	genCtx, cancel := a.generationContext(ctx)
	initial, err := sess.SubmitProfile(genCtx, p)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to generate plan: %w", err)
	}

	report := SimulationReport{InitialPlan: initial, Steps: make([]SimulationStep, 0, len(logs))}
	for _, dayLog := range logs {
		step := SimulationStep{DayIndex: dayLog.DayIndex}
		logCtx, cancel := a.generationContext(ctx)
		adj, err := sess.SubmitLog(logCtx, dayLog)
		cancel()
		if err != nil {
			step.Error = err.Error()
		} else {
			step.Adjustment = &adj
		}
		report.Steps = append(report.Steps, step)
	}

	eng, err := sess.Engine()
	if err != nil {
		return err
	}
	report.FinalPlan, _ = eng.Plan()
	return writeJSON(out, report)
}

// PrintMetrics writes a usage report for the last days days.
func (a *App) PrintMetrics(ctx context.Context, days int, out io.Writer) error {
	usage, err := a.metricsStore.GetDailyUsage(ctx, days)
	if err != nil {
		return err
	}
	agents, err := a.metricsStore.GetAgentUsage(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Usage for the last %d days:\n", days)
	if len(usage) == 0 {
		fmt.Fprintln(out, "  no data yet")
	}
	for _, d := range usage {
		fmt.Fprintf(out, "  %s  prompt=%d completion=%d execs=%d avg_latency=%dms\n",
			d.Date, d.TotalPrompt, d.TotalCompletion, d.TotalExecution, d.AvgLatencyMS)
	}
	fmt.Fprintln(out, "By agent:")
	for _, u := range agents {
		fmt.Fprintf(out, "  %-12s tokens=%d execs=%d\n", u.AgentName, u.TotalTokens, u.Executions)
	}
	return nil
}

// CleanupMetrics deletes records older than days days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metricsStore.Cleanup(ctx, days)
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
