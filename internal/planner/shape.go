package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// shapeDecoder turns backend JSON into domain values, checking field presence
// and JSON types along the way. Nothing reaches the domain model unchecked.
type shapeDecoder struct {
	agent string
}

func (d shapeDecoder) fail(path, format string, args ...any) error {
	return &ShapeError{Agent: d.agent, Path: path, Problem: fmt.Sprintf(format, args...)}
}

// decodeWeeklyPlan accepts seven or more days and keeps the first seven.
func (d shapeDecoder) decodeWeeklyPlan(content string) (WeeklyPlan, error) {
	obj, err := d.root(content)
	if err != nil {
		return WeeklyPlan{}, err
	}

	rawDays, err := d.requiredArray(obj, "days", "$")
	if err != nil {
		return WeeklyPlan{}, err
	}
	if len(rawDays) < DaysPerWeek {
		return WeeklyPlan{}, d.fail("$.days", "expected at least %d days, got %d", DaysPerWeek, len(rawDays))
	}
	advice, err := d.requiredString(obj, "weeklyAdvice", "$")
	if err != nil {
		return WeeklyPlan{}, err
	}

	plan := WeeklyPlan{Days: make([]DailyPlan, DaysPerWeek), WeeklyAdvice: advice}
	for i := 0; i < DaysPerWeek; i++ {
		path := fmt.Sprintf("$.days[%d]", i)
		dayObj, err := d.object(rawDays[i], path)
		if err != nil {
			return WeeklyPlan{}, err
		}
		label, err := d.requiredString(dayObj, "dayLabel", path)
		if err != nil {
			return WeeklyPlan{}, err
		}
		if strings.TrimSpace(label) == "" {
			return WeeklyPlan{}, d.fail(path+".dayLabel", "must not be empty")
		}
		content, err := d.dayContent(dayObj, path)
		if err != nil {
			return WeeklyPlan{}, err
		}
		plan.Days[i] = DailyPlan{DayLabel: label, DayContent: content}
	}
	return plan, nil
}

// decodeAdjustment reads analysis, suggestions and the optional revision.
// A dayLabel inside the revision is ignored; the caller owns day identity.
func (d shapeDecoder) decodeAdjustment(content string) (AdjustmentResult, error) {
	obj, err := d.root(content)
	if err != nil {
		return AdjustmentResult{}, err
	}

	analysis, err := d.requiredString(obj, "analysis", "$")
	if err != nil {
		return AdjustmentResult{}, err
	}
	suggestions, err := d.requiredString(obj, "suggestions", "$")
	if err != nil {
		return AdjustmentResult{}, err
	}

	result := AdjustmentResult{Analysis: analysis, Suggestions: suggestions}
	if raw, ok := present(obj, "revisedNextDay"); ok {
		revObj, err := d.object(raw, "$.revisedNextDay")
		if err != nil {
			return AdjustmentResult{}, err
		}
		rev, err := d.dayContent(revObj, "$.revisedNextDay")
		if err != nil {
			return AdjustmentResult{}, err
		}
		result.RevisedNextDay = &rev
	}
	return result, nil
}

func (d shapeDecoder) dayContent(obj map[string]json.RawMessage, path string) (DayContent, error) {
	var c DayContent
	slots := []struct {
		key  string
		dest *[]MealItem
	}{
		{"breakfast", &c.Breakfast},
		{"lunch", &c.Lunch},
		{"dinner", &c.Dinner},
		{"snacks", &c.Snacks},
	}
	for _, slot := range slots {
		raws, err := d.requiredArray(obj, slot.key, path)
		if err != nil {
			return DayContent{}, err
		}
		items := make([]MealItem, 0, len(raws))
		for i, raw := range raws {
			item, err := d.mealItem(raw, fmt.Sprintf("%s.%s[%d]", path, slot.key, i))
			if err != nil {
				return DayContent{}, err
			}
			items = append(items, item)
		}
		*slot.dest = items
	}

	summary, err := d.requiredString(obj, "summary", path)
	if err != nil {
		return DayContent{}, err
	}
	if strings.TrimSpace(summary) == "" {
		return DayContent{}, d.fail(path+".summary", "must not be empty")
	}
	c.Summary = summary

	tip, err := d.optionalString(obj, "tip", path)
	if err != nil {
		return DayContent{}, err
	}
	c.Tip = tip
	return c, nil
}

func (d shapeDecoder) mealItem(raw json.RawMessage, path string) (MealItem, error) {
	obj, err := d.object(raw, path)
	if err != nil {
		return MealItem{}, err
	}
	name, err := d.requiredString(obj, "name", path)
	if err != nil {
		return MealItem{}, err
	}
	portion, err := d.requiredString(obj, "portion", path)
	if err != nil {
		return MealItem{}, err
	}
	macros, err := d.optionalString(obj, "macroSummary", path)
	if err != nil {
		return MealItem{}, err
	}
	item := MealItem{Name: name, Portion: portion, MacroSummary: macros}

	if rawCal, ok := present(obj, "calories"); ok {
		if kind(rawCal) != 'n' {
			return MealItem{}, d.fail(path+".calories", "expected number, got %s", kindName(rawCal))
		}
		var cal float64
		if err := json.Unmarshal(rawCal, &cal); err != nil {
			return MealItem{}, d.fail(path+".calories", "invalid number: %v", err)
		}
		item.Calories = &cal
	}
	return item, nil
}

func (d shapeDecoder) root(content string) (map[string]json.RawMessage, error) {
	raw := json.RawMessage(strings.TrimSpace(content))
	if !json.Valid(raw) {
		return nil, d.fail("$", "invalid JSON")
	}
	return d.object(raw, "$")
}

func (d shapeDecoder) object(raw json.RawMessage, path string) (map[string]json.RawMessage, error) {
	if kind(raw) != '{' {
		return nil, d.fail(path, "expected object, got %s", kindName(raw))
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, d.fail(path, "invalid object: %v", err)
	}
	return obj, nil
}

func (d shapeDecoder) requiredArray(obj map[string]json.RawMessage, key, path string) ([]json.RawMessage, error) {
	raw, ok := present(obj, key)
	if !ok {
		return nil, d.fail(path+"."+key, "is required")
	}
	if kind(raw) != '[' {
		return nil, d.fail(path+"."+key, "expected array, got %s", kindName(raw))
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, d.fail(path+"."+key, "invalid array: %v", err)
	}
	return out, nil
}

func (d shapeDecoder) requiredString(obj map[string]json.RawMessage, key, path string) (string, error) {
	if _, ok := present(obj, key); !ok {
		return "", d.fail(path+"."+key, "is required")
	}
	return d.optionalString(obj, key, path)
}

func (d shapeDecoder) optionalString(obj map[string]json.RawMessage, key, path string) (string, error) {
	raw, ok := present(obj, key)
	if !ok {
		return "", nil
	}
	if kind(raw) != '"' {
		return "", d.fail(path+"."+key, "expected string, got %s", kindName(raw))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", d.fail(path+"."+key, "invalid string: %v", err)
	}
	return s, nil
}

// present reports whether key exists with a non-null value.
func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || kind(raw) == 0 {
		return nil, false
	}
	return raw, true
}

// kind classifies a raw JSON value by its first byte: '{', '[', '"', 'n'
// (number), 'b' (boolean) or 0 for null/empty.
func kind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	switch c := trimmed[0]; {
	case c == '{' || c == '[' || c == '"':
		return c
	case c == 't' || c == 'f':
		return 'b'
	case c == 'n':
		return 0
	default:
		return 'n'
	}
}

func kindName(raw json.RawMessage) string {
	switch kind(raw) {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 'b':
		return "boolean"
	case 'n':
		return "number"
	default:
		return "null"
	}
}
