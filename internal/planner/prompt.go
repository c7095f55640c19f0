package planner

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"wellness-meal-planner/internal/profile"
)

//go:embed prompt.md
var mealPlanPrompt string

var promptTmpl = template.Must(template.New("MealPlan").Parse(mealPlanPrompt))

type promptData struct {
	Name          string
	DietType      string
	Goals         string
	Allergies     string
	FavoriteFoods string
	Dislikes      string
	CalorieTarget string
}

// BuildPrompt renders the generation prompt. Empty optional fields are
// spelled out so the model does not have to guess.
func BuildPrompt(prefs profile.Preferences) (string, error) {
	data := promptData{
		Name:          prefs.Name,
		DietType:      orDefault(strings.Join(prefs.DietType, ", "), "No restrictions"),
		Goals:         orDefault(strings.Join(prefs.Goals, ", "), "General health"),
		Allergies:     orDefault(prefs.Allergies, "None"),
		FavoriteFoods: orDefault(prefs.FavoriteFoods, "No specific preferences"),
		Dislikes:      orDefault(prefs.Dislikes, "None"),
		CalorieTarget: orDefault(prefs.CalorieTarget, "Not specified"),
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
