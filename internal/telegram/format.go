package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"adaptive-meal-planner/internal/metrics"
	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `🥗 *Adaptive Meal Coach*

/profile {...} - submit your profile as JSON and get a 7-day plan
/plan - show the plan overview
/day <1-7> - show one day in detail
/log <1-7> {...} - log what you actually ate that day
/analysis - show the latest analysis
/dismiss - dismiss the latest analysis
/edit - edit your profile
/regenerate - build a fresh plan from your profile`

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatPlanOverview(plan planner.WeeklyPlan) string {
	var sb strings.Builder
	sb.WriteString("📅 *Weekly Meal Plan*\n\n")
	for i, d := range plan.Days {
		fmt.Fprintf(&sb, "*%d. %s*: %s\n", i+1, esc(d.DayLabel), esc(d.Summary))
	}
	if plan.WeeklyAdvice != "" {
		fmt.Fprintf(&sb, "\n💡 _%s_\n", esc(plan.WeeklyAdvice))
	}
	sb.WriteString("\nUse /day <n> for details.")
	return sb.String()
}

func formatDay(index int, day planner.DailyPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 *Day %d: %s*\n", index+1, esc(day.DayLabel))
	writeDayContent(&sb, day.DayContent)
	return sb.String()
}

func writeDayContent(sb *strings.Builder, c planner.DayContent) {
	for _, slot := range c.Meals() {
		fmt.Fprintf(sb, "\n*%s*\n", slot.Name)
		if len(slot.Items) == 0 {
			sb.WriteString("_nothing planned_\n")
			continue
		}
		for _, item := range slot.Items {
			fmt.Fprintf(sb, "• %s (%s)", esc(item.Name), esc(item.Portion))
			if item.Calories != nil {
				fmt.Fprintf(sb, " ~%s kcal", strconv.FormatFloat(*item.Calories, 'f', -1, 64))
			}
			if item.MacroSummary != "" {
				fmt.Fprintf(sb, " | %s", esc(item.MacroSummary))
			}
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(sb, "\n📊 %s\n", esc(c.Summary))
	if c.Tip != "" {
		fmt.Fprintf(sb, "💡 _%s_\n", esc(c.Tip))
	}
}

func formatAnalysis(dayIndex int, adj planner.AdjustmentResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 *Day %d Analysis*\n\n%s\n\n", dayIndex+1, esc(adj.Analysis))
	fmt.Fprintf(&sb, "✅ *Suggestions*\n%s\n", esc(adj.Suggestions))

	rev, ok := adj.Revision()
	switch {
	case ok && dayIndex+1 < planner.DaysPerWeek:
		fmt.Fprintf(&sb, "\n🔄 *Day %d has been updated.*\n", dayIndex+2)
		writeDayContent(&sb, rev)
	case dayIndex+1 >= planner.DaysPerWeek:
		sb.WriteString("\n🏁 That was the last day of your plan.\n")
	}
	return sb.String()
}

func formatPendingAnalysis(adj planner.AdjustmentResult) string {
	return fmt.Sprintf("🔍 *Latest Analysis*\n\n%s\n\n✅ *Suggestions*\n%s", esc(adj.Analysis), esc(adj.Suggestions))
}

func formatProfileForEdit(p profile.Profile) string {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "❌ Could not render your profile."
	}
	safe := strings.ReplaceAll(string(raw), "`", "'")
	return fmt.Sprintf("✏️ *Current profile*\n```\n%s\n```\nSend `/profile {...}` with your changes to build a new plan.", safe)
}

func formatError(action string, err error) string {
	safeErr := strings.ReplaceAll(userMessage(err), "`", "'")
	return fmt.Sprintf("❌ *Error %s:*\n```\n%s\n```", action, safeErr)
}

func formatMetrics(usage []metrics.DailyUsage, agents []metrics.AgentUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs, avg %dms)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.AvgLatencyMS)
	}

	if len(agents) > 0 {
		sb.WriteString("\n🤖 *By Agent*\n")
		for _, a := range agents {
			fmt.Fprintf(&sb, "• %s: %d tokens (%d execs)\n", esc(a.AgentName), a.TotalTokens, a.Executions)
		}
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Live sessions: %d\n", health.LiveSessions)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	return sb.String()
}
