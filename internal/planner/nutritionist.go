package planner

import (
	"adaptive-meal-planner/internal/llm"
	"adaptive-meal-planner/internal/profile"
	"adaptive-meal-planner/internal/shared"
	"context"
	_ "embed"
	"encoding/json"
	"time"
)

//go:embed nutritionist_prompt.md
var nutritionistPrompt string

const nutritionistAgent = "Nutritionist"

type NutritionistResult struct {
	Plan *WeeklyPlan
	Meta shared.AgentMeta
}

type nutritionistPromptData struct {
	Location    string
	Budget      string
	DiningStyle string
	Goal        string
	MealsPerDay int
	ProfileJSON string
}

func (g *Gateway) runNutritionist(ctx context.Context, p profile.Profile) (NutritionistResult, error) {
	start := time.Now()
	system, prompt, err := buildNutritionistPrompt(p)
	if err != nil {
		return NutritionistResult{}, err
	}

	resp, err := g.textGen.GenerateContent(ctx, llm.Request{
		SystemInstruction: system,
		Prompt:            prompt,
		Schema:            weeklyPlanSchema,
		Temperature:       llm.Temperature(0.5),
	})
	// A failed call may still report billed usage.
	meta := shared.AgentMeta{
		AgentName: nutritionistAgent,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
	}
	if err != nil {
		return NutritionistResult{Meta: meta}, &BackendError{Agent: nutritionistAgent, Err: err}
	}

	plan, err := shapeDecoder{agent: nutritionistAgent}.decodeWeeklyPlan(resp.Content)
	if err != nil {
		return NutritionistResult{Meta: meta}, err
	}
	return NutritionistResult{Plan: &plan, Meta: meta}, nil
}

func buildNutritionistPrompt(p profile.Profile) (string, string, error) {
	profileJSON, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", "", err
	}
	return renderPrompt(nutritionistAgent, nutritionistPrompt, nutritionistPromptData{
		Location:    orUnspecified(p.Location),
		Budget:      orUnspecified(p.Budget),
		DiningStyle: p.DiningStyle,
		Goal:        p.DietaryGoal,
		MealsPerDay: p.MealsPerDay,
		ProfileJSON: string(profileJSON),
	})
}

func orUnspecified(s string) string {
	if s == "" {
		return "not specified"
	}
	return s
}
