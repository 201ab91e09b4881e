package planner

import (
	"fmt"
	"slices"
)

// DaysPerWeek is the number of entries in every generated plan.
const DaysPerWeek = 7

// MealItem is one dish in a meal slot. Nutrition values come from the
// backend as-is and are never computed locally.
type MealItem struct {
	Name         string   `json:"name"`
	Portion      string   `json:"portion"`
	Calories     *float64 `json:"calories,omitempty"`
	MacroSummary string   `json:"macroSummary,omitempty"`
}

// DayContent is the replaceable part of a day: its four meal slots,
// summary and tip. A revision swaps the whole of it at once.
type DayContent struct {
	Breakfast []MealItem `json:"breakfast"`
	Lunch     []MealItem `json:"lunch"`
	Dinner    []MealItem `json:"dinner"`
	Snacks    []MealItem `json:"snacks"`
	Summary   string     `json:"summary"`
	Tip       string     `json:"tip,omitempty"`
}

// DailyPlan represents the plan for a single day.
// DayLabel is the day's display identity and survives every revision.
type DailyPlan struct {
	DayLabel string `json:"dayLabel"`
	DayContent
}

// WeeklyPlan represents a full seven-day meal plan.
// Index i is calendar offset i from the plan's start for the plan's lifetime.
type WeeklyPlan struct {
	Days         []DailyPlan `json:"days"`
	WeeklyAdvice string      `json:"weeklyAdvice"`
}

// Clone returns a deep copy of the content.
func (c DayContent) Clone() DayContent {
	return DayContent{
		Breakfast: cloneMeals(c.Breakfast),
		Lunch:     cloneMeals(c.Lunch),
		Dinner:    cloneMeals(c.Dinner),
		Snacks:    cloneMeals(c.Snacks),
		Summary:   c.Summary,
		Tip:       c.Tip,
	}
}

// Clone returns a deep copy of the day.
func (d DailyPlan) Clone() DailyPlan {
	return DailyPlan{DayLabel: d.DayLabel, DayContent: d.DayContent.Clone()}
}

// Clone returns a deep copy of the plan.
func (p WeeklyPlan) Clone() WeeklyPlan {
	days := make([]DailyPlan, len(p.Days))
	for i, d := range p.Days {
		days[i] = d.Clone()
	}
	return WeeklyPlan{Days: days, WeeklyAdvice: p.WeeklyAdvice}
}

// WithRevisedDay returns a copy of p whose day at index carries content in
// place of whatever it held before. The label at index and every other day
// are carried over untouched.
func (p WeeklyPlan) WithRevisedDay(index int, content DayContent) (WeeklyPlan, error) {
	if index < 0 || index >= len(p.Days) {
		return WeeklyPlan{}, fmt.Errorf("day index %d out of range [0, %d)", index, len(p.Days))
	}
	out := p.Clone()
	out.Days[index] = DailyPlan{
		DayLabel:   p.Days[index].DayLabel,
		DayContent: content.Clone(),
	}
	return out, nil
}

// Meals returns the four slots in display order, keyed by slot name.
func (c DayContent) Meals() []MealSlot {
	return []MealSlot{
		{Name: "Breakfast", Items: c.Breakfast},
		{Name: "Lunch", Items: c.Lunch},
		{Name: "Dinner", Items: c.Dinner},
		{Name: "Snacks", Items: c.Snacks},
	}
}

// MealSlot pairs a slot name with its items, for rendering.
type MealSlot struct {
	Name  string
	Items []MealItem
}

func cloneMeals(items []MealItem) []MealItem {
	if items == nil {
		return nil
	}
	out := slices.Clone(items)
	for i := range out {
		if items[i].Calories != nil {
			c := *items[i].Calories
			out[i].Calories = &c
		}
	}
	return out
}
