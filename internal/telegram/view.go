package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"wellness-meal-planner/internal/capture"
	"wellness-meal-planner/internal/metrics"
	"wellness-meal-planner/internal/planner"
	"wellness-meal-planner/internal/profile"
)

const genericFailure = "Something went wrong. Please try again."

// Callback data is "<kind>:<value>" and must stay under 64 bytes.
const (
	callbackDiet  = "diet"
	callbackGoal  = "goal"
	callbackField = "field"
	callbackNav   = "nav"

	navBack = "back"
	navNext = "next"
)

var fieldStates = map[string]string{
	"allergies": StateAwaitAllergies,
	"favorites": StateAwaitFavorites,
	"dislikes":  StateAwaitDislikes,
}

var fieldPrompts = map[string]string{
	StateAwaitAllergies: "Send your allergies, e.g. _peanuts, shellfish_.",
	StateAwaitFavorites: "Send a few foods you love.",
	StateAwaitDislikes:  "Send the foods you would rather avoid.",
}

// renderStep returns the message text and keyboard for the wizard's
// current step. state selects the free-text prompt on step 3.
func renderStep(w *capture.Wizard, state string) (string, *tgbotapi.InlineKeyboardMarkup) {
	prefs := w.Preferences()
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Step %d of %d* (%d%%)\n\n", w.Step(), capture.TotalSteps, w.Progress())

	var rows [][]tgbotapi.InlineKeyboardButton
	switch w.Step() {
	case capture.StepName:
		sb.WriteString("👋 What should we call you? Send your name.")
		if prefs.Name != "" {
			fmt.Fprintf(&sb, "\n\nCurrent: *%s*", escape(prefs.Name))
		}
	case capture.StepDiet:
		sb.WriteString("🥗 Pick one or more diet types.")
		rows = toggleRows(callbackDiet, profile.DietTypes, prefs.DietType, profile.DietLabel)
	case capture.StepFoods:
		sb.WriteString("🍽 Tell us about allergies, favorite foods and dislikes. All optional.\n\n")
		fmt.Fprintf(&sb, "• Allergies: %s\n", orDash(prefs.Allergies))
		fmt.Fprintf(&sb, "• Favorite foods: %s\n", orDash(prefs.FavoriteFoods))
		fmt.Fprintf(&sb, "• Dislikes: %s", orDash(prefs.Dislikes))
		if prompt, ok := fieldPrompts[state]; ok {
			sb.WriteString("\n\n" + prompt)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Allergies", callbackField+":allergies"),
			tgbotapi.NewInlineKeyboardButtonData("Favorites", callbackField+":favorites"),
			tgbotapi.NewInlineKeyboardButtonData("Dislikes", callbackField+":dislikes"),
		))
	case capture.StepGoals:
		sb.WriteString("🎯 Pick your wellness goals. You can also send a daily calorie target.")
		if prefs.CalorieTarget != "" {
			fmt.Fprintf(&sb, "\n\nCalorie target: *%s*", escape(prefs.CalorieTarget))
		}
		rows = toggleRows(callbackGoal, profile.Goals, prefs.Goals, func(s string) string { return s })
	}

	if nav := navRow(w); len(nav) > 0 {
		rows = append(rows, nav)
	}
	if len(rows) == 0 {
		return sb.String(), nil
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return sb.String(), &keyboard
}

func navRow(w *capture.Wizard) []tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton
	if w.Step() > capture.StepName {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", callbackNav+":"+navBack))
	}
	switch {
	case w.Step() == capture.StepGoals:
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✅ Finish", callbackNav+":"+navNext))
	case w.Step() != capture.StepName || w.CanProceed():
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", callbackNav+":"+navNext))
	}
	return row
}

// toggleRows lays options out two per row, ticking the selected ones.
func toggleRows(kind string, options, selected []string, label func(string) string) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, opt := range options {
		text := label(opt)
		for _, s := range selected {
			if s == opt {
				text = "✅ " + text
				break
			}
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(text, kind+":"+opt))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// formatPlanMarkdown renders the week in weekday order with a daily total.
func formatPlanMarkdown(plan planner.MealPlan, prefs profile.Preferences) string {
	var sb strings.Builder
	if name := strings.TrimSpace(prefs.Name); name != "" {
		fmt.Fprintf(&sb, "📅 *Weekly Meal Plan for %s*\n", escape(name))
	} else {
		sb.WriteString("📅 *Your Weekly Meal Plan*\n")
	}
	if len(prefs.Goals) > 0 {
		fmt.Fprintf(&sb, "🎯 %s\n", escape(strings.Join(prefs.Goals, ", ")))
	}
	if target := profile.ParseCalorieTarget(prefs.CalorieTarget); target != nil {
		fmt.Fprintf(&sb, "🔥 Daily target: %d kcal\n", *target)
	}

	for _, day := range planner.Weekdays {
		meals, ok := plan.WeeklyPlan[day]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n*%s* (%d kcal)\n", day, meals.Total())
		writeMeal(&sb, "🍳", meals.Breakfast)
		writeMeal(&sb, "🥗", meals.Lunch)
		writeMeal(&sb, "🍲", meals.Dinner)
	}
	return sb.String()
}

func writeMeal(sb *strings.Builder, icon string, m planner.Meal) {
	fmt.Fprintf(sb, "%s %s: %d kcal, %s, ⭐ %.1f\n", icon, escape(m.Name), m.Calories, escape(m.PrepTime), m.Rating)
}

func formatMetricsReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Generations*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d plans, %d fallbacks)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.Generations, d.Fallbacks)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	fmt.Fprintf(&sb, "• Uptime: %s\n", health.Uptime)
	return sb.String()
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return escape(s)
}
