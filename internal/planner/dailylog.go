package planner

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidLog is wrapped by every daily log validation failure.
var ErrInvalidLog = errors.New("invalid daily log")

// LoggedMealItem is something the user actually ate. Quantity has no
// enforced unit system.
type LoggedMealItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// DailyLog is a snapshot of one day's actual intake and activity.
// A newer log for the same DayIndex replaces the older one entirely.
type DailyLog struct {
	DayIndex int `json:"dayIndex"`

	ActualBreakfast []LoggedMealItem `json:"actualBreakfast"`
	ActualLunch     []LoggedMealItem `json:"actualLunch"`
	ActualDinner    []LoggedMealItem `json:"actualDinner"`
	ActualSnacks    []LoggedMealItem `json:"actualSnacks"`

	WaterIntakeML float64 `json:"waterIntake"`

	ExerciseActivity    string   `json:"exerciseActivity,omitempty"`
	ExerciseDurationMin *float64 `json:"exerciseDuration,omitempty"`
	ExerciseIntensity   string   `json:"exerciseIntensity,omitempty"`

	SleepHours   *float64 `json:"sleepHours,omitempty"`
	SleepQuality string   `json:"sleepQuality,omitempty"`

	Notes string `json:"notes"`
}

// Validate checks the log against a plan of dayCount days.
func (l DailyLog) Validate(dayCount int) error {
	if l.DayIndex < 0 || l.DayIndex >= dayCount {
		return fmt.Errorf("%w: dayIndex %d out of range [0, %d)", ErrInvalidLog, l.DayIndex, dayCount)
	}
	if l.WaterIntakeML < 0 {
		return fmt.Errorf("%w: waterIntake must not be negative", ErrInvalidLog)
	}
	if l.ExerciseDurationMin != nil && *l.ExerciseDurationMin < 0 {
		return fmt.Errorf("%w: exerciseDuration must not be negative", ErrInvalidLog)
	}
	if l.SleepHours != nil && *l.SleepHours < 0 {
		return fmt.Errorf("%w: sleepHours must not be negative", ErrInvalidLog)
	}
	for _, slot := range l.Meals() {
		for i, item := range slot.Items {
			if item.Quantity < 0 {
				return fmt.Errorf("%w: %s[%d] quantity must not be negative", ErrInvalidLog, slot.Name, i)
			}
		}
	}
	return nil
}

// LoggedSlot pairs a slot name with the items logged for it.
type LoggedSlot struct {
	Name  string
	Items []LoggedMealItem
}

// Meals returns the four logged slots in display order.
func (l DailyLog) Meals() []LoggedSlot {
	return []LoggedSlot{
		{Name: "actualBreakfast", Items: l.ActualBreakfast},
		{Name: "actualLunch", Items: l.ActualLunch},
		{Name: "actualDinner", Items: l.ActualDinner},
		{Name: "actualSnacks", Items: l.ActualSnacks},
	}
}

// Clone returns a copy that shares no slices or pointers with l.
func (l DailyLog) Clone() DailyLog {
	c := l
	c.ActualBreakfast = slices.Clone(l.ActualBreakfast)
	c.ActualLunch = slices.Clone(l.ActualLunch)
	c.ActualDinner = slices.Clone(l.ActualDinner)
	c.ActualSnacks = slices.Clone(l.ActualSnacks)
	if l.ExerciseDurationMin != nil {
		d := *l.ExerciseDurationMin
		c.ExerciseDurationMin = &d
	}
	if l.SleepHours != nil {
		h := *l.SleepHours
		c.SleepHours = &h
	}
	return c
}
