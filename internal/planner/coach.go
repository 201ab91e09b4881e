package planner

import (
	"adaptive-meal-planner/internal/llm"
	"adaptive-meal-planner/internal/profile"
	"adaptive-meal-planner/internal/shared"
	"context"
	_ "embed"
	"encoding/json"
	"strconv"
	"time"
)

//go:embed coach_prompt.md
var coachPrompt string

const coachAgent = "Coach"

type CoachResult struct {
	Adjustment *AdjustmentResult
	Meta       shared.AgentMeta
}

type coachPromptData struct {
	Goal        string
	Location    string
	Budget      string
	DiningStyle string

	DayNumber      int
	NextDayNumber  int
	HasNextDay     bool
	PlannedDayJSON string

	BreakfastJSON     string
	LunchJSON         string
	DinnerJSON        string
	SnacksJSON        string
	WaterIntakeML     string
	SleepHours        string
	SleepQuality      string
	ExerciseActivity  string
	ExerciseDuration  string
	ExerciseIntensity string
	Notes             string
}

func (g *Gateway) runCoach(
	ctx context.Context,
	p profile.Profile,
	plannedDay DailyPlan,
	log DailyLog,
) (CoachResult, error) {
	start := time.Now()
	system, prompt, err := buildCoachPrompt(p, plannedDay, log)
	if err != nil {
		return CoachResult{}, err
	}

	resp, err := g.textGen.GenerateContent(ctx, llm.Request{
		SystemInstruction: system,
		Prompt:            prompt,
		Schema:            adjustmentSchema,
	})
	// A failed call may still report billed usage.
	meta := shared.AgentMeta{
		AgentName: coachAgent,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
	}
	if err != nil {
		return CoachResult{Meta: meta}, &BackendError{Agent: coachAgent, Err: err}
	}

	adj, err := shapeDecoder{agent: coachAgent}.decodeAdjustment(resp.Content)
	if err != nil {
		return CoachResult{Meta: meta}, err
	}
	return CoachResult{Adjustment: &adj, Meta: meta}, nil
}

func buildCoachPrompt(p profile.Profile, plannedDay DailyPlan, log DailyLog) (string, string, error) {
	planned, err := json.MarshalIndent(plannedDay, "", "  ")
	if err != nil {
		return "", "", err
	}

	data := coachPromptData{
		Goal:              p.DietaryGoal,
		Location:          orUnspecified(p.Location),
		Budget:            orUnspecified(p.Budget),
		DiningStyle:       p.DiningStyle,
		DayNumber:         log.DayIndex + 1,
		NextDayNumber:     log.DayIndex + 2,
		HasNextDay:        log.DayIndex+1 < DaysPerWeek,
		PlannedDayJSON:    string(planned),
		WaterIntakeML:     formatNumber(log.WaterIntakeML),
		SleepHours:        "not logged",
		SleepQuality:      orNotLogged(log.SleepQuality),
		ExerciseActivity:  orNotLogged(log.ExerciseActivity),
		ExerciseDuration:  "duration not logged",
		ExerciseIntensity: orNotLogged(log.ExerciseIntensity),
		Notes:             orNotLogged(log.Notes),
	}
	if log.SleepHours != nil {
		data.SleepHours = formatNumber(*log.SleepHours) + " hours"
	}
	if log.ExerciseDurationMin != nil {
		data.ExerciseDuration = formatNumber(*log.ExerciseDurationMin) + " min"
	}

	for _, slot := range []struct {
		items []LoggedMealItem
		dest  *string
	}{
		{log.ActualBreakfast, &data.BreakfastJSON},
		{log.ActualLunch, &data.LunchJSON},
		{log.ActualDinner, &data.DinnerJSON},
		{log.ActualSnacks, &data.SnacksJSON},
	} {
		items := slot.items
		if items == nil {
			items = []LoggedMealItem{}
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return "", "", err
		}
		*slot.dest = string(raw)
	}

	return renderPrompt(coachAgent, coachPrompt, data)
}

func orNotLogged(s string) string {
	if s == "" {
		return "not logged"
	}
	return s
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
