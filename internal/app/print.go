package app

import (
	"fmt"
	"io"

	"wellness-meal-planner/internal/planner"
)

// PrintMealPlan writes a plain text rendering of res for terminals.
func PrintMealPlan(w io.Writer, res planner.Result) {
	fmt.Fprintln(w, "=== WEEKLY MEAL PLAN ===")
	if res.Source == planner.SourceFallback {
		fmt.Fprintf(w, "(fallback plan: %v)\n", res.Err)
	}
	for _, day := range planner.Weekdays {
		meals, ok := res.Plan.WeeklyPlan[day]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d kcal)\n", day, meals.Total())
		printMeal(w, "Breakfast", meals.Breakfast)
		printMeal(w, "Lunch", meals.Lunch)
		printMeal(w, "Dinner", meals.Dinner)
	}
}

func printMeal(w io.Writer, slot string, m planner.Meal) {
	fmt.Fprintf(w, "  %-10s %s - %d kcal, %s, %.1f/5\n", slot+":", m.Name, m.Calories, m.PrepTime, m.Rating)
}
