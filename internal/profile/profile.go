// Package profile describes the user a meal plan is generated for.
package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrIncompleteProfile is wrapped by every profile validation failure.
var ErrIncompleteProfile = errors.New("profile is incomplete")

// Gender of the user.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ActivityLevel is the user's habitual activity level.
type ActivityLevel string

const (
	ActivitySedentary        ActivityLevel = "sedentary"
	ActivityLightlyActive    ActivityLevel = "lightly_active"
	ActivityModeratelyActive ActivityLevel = "moderately_active"
	ActivityVeryActive       ActivityLevel = "very_active"
	ActivityExtraActive      ActivityLevel = "extra_active"
)

// Profile is everything the nutritionist needs to know about a user.
// Optional measurements are pointers so "not provided" differs from zero.
type Profile struct {
	// Anthropometrics
	HeightCM             float64  `json:"height"`
	WeightKG             float64  `json:"weight"`
	WaistCM              *float64 `json:"waistCircumference,omitempty"`
	HipCM                *float64 `json:"hipCircumference,omitempty"`
	WeightChange1MonthKG *float64 `json:"weightChange1Month,omitempty"`
	WeightChange3MonthKG *float64 `json:"weightChange3Month,omitempty"`
	WeightChange6MonthKG *float64 `json:"weightChange6Month,omitempty"`
	BodyFatPercentage    *float64 `json:"bodyFatPercentage,omitempty"`
	BasalMetabolicRate   *float64 `json:"basalMetabolicRate,omitempty"`

	// Demographics
	Age            int    `json:"age"`
	Gender         Gender `json:"gender"`
	Occupation     string `json:"occupation,omitempty"`
	Location       string `json:"location,omitempty"`
	Budget         string `json:"budget,omitempty"`
	MenstrualCycle string `json:"menstrualCycle,omitempty"`

	// Dietary habits
	MealsPerDay         int      `json:"mealsPerDay"`
	DiningStyle         string   `json:"diningStyle"`
	SnackFrequency      string   `json:"snackFrequency,omitempty"`
	AlcoholFrequency    string   `json:"alcoholFrequency,omitempty"`
	CookingPreferences  []string `json:"cookingPreferences,omitempty"`
	TastePreferences    []string `json:"tastePreferences,omitempty"`
	FoodAllergies       []string `json:"foodAllergies,omitempty"`
	DislikedFoods       []string `json:"dislikedFoods,omitempty"`
	LikedFoods          []string `json:"likedFoods,omitempty"`
	DietaryRestrictions string   `json:"dietaryRestrictions,omitempty"`

	// Lifestyle
	SleepHours     float64       `json:"sleepHours,omitempty"`
	SleepQuality   string        `json:"sleepQuality,omitempty"`
	StressLevel    string        `json:"stressLevel,omitempty"`
	ExerciseHabits string        `json:"exerciseHabits,omitempty"`
	ActivityLevel  ActivityLevel `json:"activityLevel,omitempty"`

	// Goal
	DietaryGoal string `json:"dietaryGoal"`
}

// FieldError names one failing field.
type FieldError struct {
	Field   string
	Problem string
}

// ValidationError lists every field that keeps a profile from being submitted.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Problem
	}
	return fmt.Sprintf("%s: %s", ErrIncompleteProfile, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrIncompleteProfile }

// Validate checks the fields a generation request cannot do without.
func (p Profile) Validate() error {
	var fields []FieldError
	fail := func(field, problem string) {
		fields = append(fields, FieldError{Field: field, Problem: problem})
	}

	if p.HeightCM <= 0 {
		fail("height", "must be positive")
	}
	if p.WeightKG <= 0 {
		fail("weight", "must be positive")
	}
	if p.Age <= 0 {
		fail("age", "must be positive")
	}
	switch p.Gender {
	case GenderMale, GenderFemale, GenderOther:
	case "":
		fail("gender", "is required")
	default:
		fail("gender", fmt.Sprintf("has unknown value %q", p.Gender))
	}
	if p.MealsPerDay <= 0 {
		fail("mealsPerDay", "must be positive")
	}
	if strings.TrimSpace(p.DiningStyle) == "" {
		fail("diningStyle", "is required")
	}
	if strings.TrimSpace(p.DietaryGoal) == "" {
		fail("dietaryGoal", "is required")
	}
	if p.SleepHours < 0 {
		fail("sleepHours", "must not be negative")
	}

	for name, v := range map[string]*float64{
		"waistCircumference": p.WaistCM,
		"hipCircumference":   p.HipCM,
		"bodyFatPercentage":  p.BodyFatPercentage,
		"basalMetabolicRate": p.BasalMetabolicRate,
	} {
		if v != nil && *v < 0 {
			fail(name, "must not be negative")
		}
	}

	switch p.ActivityLevel {
	case "", ActivitySedentary, ActivityLightlyActive, ActivityModeratelyActive, ActivityVeryActive, ActivityExtraActive:
	default:
		fail("activityLevel", fmt.Sprintf("has unknown value %q", p.ActivityLevel))
	}

	if len(fields) == 0 {
		return nil
	}
	slices.SortFunc(fields, func(a, b FieldError) int { return strings.Compare(a.Field, b.Field) })
	return &ValidationError{Fields: fields}
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Profile) Clone() Profile {
	c := p
	c.WaistCM = cloneFloat(p.WaistCM)
	c.HipCM = cloneFloat(p.HipCM)
	c.WeightChange1MonthKG = cloneFloat(p.WeightChange1MonthKG)
	c.WeightChange3MonthKG = cloneFloat(p.WeightChange3MonthKG)
	c.WeightChange6MonthKG = cloneFloat(p.WeightChange6MonthKG)
	c.BodyFatPercentage = cloneFloat(p.BodyFatPercentage)
	c.BasalMetabolicRate = cloneFloat(p.BasalMetabolicRate)
	c.CookingPreferences = slices.Clone(p.CookingPreferences)
	c.TastePreferences = slices.Clone(p.TastePreferences)
	c.FoodAllergies = slices.Clone(p.FoodAllergies)
	c.DislikedFoods = slices.Clone(p.DislikedFoods)
	c.LikedFoods = slices.Clone(p.LikedFoods)
	return c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
