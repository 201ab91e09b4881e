package planner

import "adaptive-meal-planner/internal/llm"

// Response schemas sent to the backend. They mirror what shapeDecoder
// enforces on the way back.

var mealItemSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"name":         {Type: llm.TypeString, Description: "Name of the dish or food item"},
		"portion":      {Type: llm.TypeString, Description: "Portion size, e.g. 200g or 1 bowl"},
		"calories":     {Type: llm.TypeInteger, Description: "Approximate calories"},
		"macroSummary": {Type: llm.TypeString, Description: "Short macro summary, e.g. 30g P / 40g C / 10g F"},
	},
	Required: []string{"name", "portion"},
}

func mealListSchema() *llm.Schema {
	return &llm.Schema{Type: llm.TypeArray, Items: mealItemSchema}
}

func dayContentProperties() map[string]*llm.Schema {
	return map[string]*llm.Schema{
		"breakfast": mealListSchema(),
		"lunch":     mealListSchema(),
		"dinner":    mealListSchema(),
		"snacks":    mealListSchema(),
		"summary":   {Type: llm.TypeString, Description: "Brief summary of the day's nutritional totals"},
		"tip":       {Type: llm.TypeString, Description: "Specific cooking or prep tip for the day"},
	}
}

var dayContentRequired = []string{"breakfast", "lunch", "dinner", "snacks", "summary"}

func dailyPlanSchema() *llm.Schema {
	props := dayContentProperties()
	props["dayLabel"] = &llm.Schema{Type: llm.TypeString, Description: "Day of the week, e.g. Monday"}
	return &llm.Schema{
		Type:       llm.TypeObject,
		Properties: props,
		Required:   append([]string{"dayLabel"}, dayContentRequired...),
	}
}

var weeklyPlanSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"days":         {Type: llm.TypeArray, Items: dailyPlanSchema(), Description: "Exactly seven days, Monday to Sunday"},
		"weeklyAdvice": {Type: llm.TypeString, Description: "Overall advice for the week based on the profile"},
	},
	Required: []string{"days", "weeklyAdvice"},
}

var adjustmentSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"analysis":    {Type: llm.TypeString, Description: "Analysis of actual intake and activity against the plan"},
		"suggestions": {Type: llm.TypeString, Description: "Actionable advice for tomorrow"},
		"revisedNextDay": {
			Type:        llm.TypeObject,
			Description: "Complete revised plan for the following day",
			Properties:  dayContentProperties(),
			Required:    dayContentRequired,
			Nullable:    true,
		},
	},
	Required: []string{"analysis", "suggestions"},
}
