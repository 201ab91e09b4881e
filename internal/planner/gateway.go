package planner

import (
	"adaptive-meal-planner/internal/llm"
	"adaptive-meal-planner/internal/profile"
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// Gateway is the only path from the domain to the generation backend.
// Both requests go out once; retries are left to the caller.
type Gateway struct {
	textGen llm.TextGenerator
}

// NewGateway wraps textGen. A nil textGen yields a gateway whose every
// request fails with ErrGenerationUnavailable.
func NewGateway(textGen llm.TextGenerator) *Gateway {
	return &Gateway{textGen: textGen}
}

// Available reports whether a backend is configured.
func (g *Gateway) Available() bool {
	return g != nil && g.textGen != nil
}

// RequestWeeklyPlan asks the nutritionist for a seven-day plan.
func (g *Gateway) RequestWeeklyPlan(ctx context.Context, p profile.Profile) (NutritionistResult, error) {
	if !g.Available() {
		return NutritionistResult{}, ErrGenerationUnavailable
	}
	if err := p.Validate(); err != nil {
		return NutritionistResult{}, err
	}
	return g.runNutritionist(ctx, p)
}

// RequestDayAdjustment asks the coach to analyze log against the plan entry
// that was in effect for that day.
func (g *Gateway) RequestDayAdjustment(
	ctx context.Context,
	p profile.Profile,
	plannedDay DailyPlan,
	log DailyLog,
) (CoachResult, error) {
	if !g.Available() {
		return CoachResult{}, ErrGenerationUnavailable
	}
	return g.runCoach(ctx, p, plannedDay, log)
}

// renderPrompt executes the "system" and "prompt" templates defined in src.
func renderPrompt(name, src string, data any) (system, prompt string, err error) {
	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err = tmpl.ExecuteTemplate(&buf, "system", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s system prompt: %w", name, err)
	}
	system = buf.String()

	buf.Reset()
	if err = tmpl.ExecuteTemplate(&buf, "prompt", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return system, buf.String(), nil
}
