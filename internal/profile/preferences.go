package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Diet tags accepted by the capture wizard.
const (
	DietVegetarian  = "vegetarian"
	DietVegan       = "vegan"
	DietPescatarian = "pescatarian"
	DietKeto        = "keto"
	DietPaleo       = "paleo"
	DietGlutenFree  = "gluten-free"
	DietNone        = "none"
)

// DietTypes is the fixed diet vocabulary, in display order.
var DietTypes = []string{
	DietVegetarian,
	DietVegan,
	DietPescatarian,
	DietKeto,
	DietPaleo,
	DietGlutenFree,
	DietNone,
}

// dietLabels are the human readable names shown next to each tag.
var dietLabels = map[string]string{
	DietVegetarian:  "Vegetarian",
	DietVegan:       "Vegan",
	DietPescatarian: "Pescatarian",
	DietKeto:        "Keto",
	DietPaleo:       "Paleo",
	DietGlutenFree:  "Gluten-Free",
	DietNone:        "No Restrictions",
}

// Goals is the fixed wellness goal vocabulary, in display order.
var Goals = []string{
	"Weight Loss",
	"Muscle Gain",
	"Balanced Nutrition",
	"Energy Boost",
	"Better Digestion",
	"Heart Health",
}

// ErrIncomplete is returned by Preferences.Complete.
var ErrIncomplete = errors.New("preferences incomplete")

// Preferences are the not-yet-persisted selections made in the capture wizard.
type Preferences struct {
	Name          string   `json:"name"`
	DietType      []string `json:"dietType"`
	Allergies     string   `json:"allergies"`
	FavoriteFoods string   `json:"favoritefoods"`
	Dislikes      string   `json:"dislikes"`
	Goals         []string `json:"goals"`
	CalorieTarget string   `json:"calorieTarget"`
}

// Complete reports whether the fields the wizard gates on are present.
func (p Preferences) Complete() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrIncomplete)
	case len(p.DietType) == 0:
		return fmt.Errorf("%w: at least one diet type is required", ErrIncomplete)
	case len(p.Goals) == 0:
		return fmt.Errorf("%w: at least one goal is required", ErrIncomplete)
	}
	return nil
}

// IsDietType reports whether tag belongs to the diet vocabulary.
func IsDietType(tag string) bool {
	return slices.Contains(DietTypes, tag)
}

// IsGoal reports whether label belongs to the goal vocabulary.
func IsGoal(label string) bool {
	return slices.Contains(Goals, label)
}

// DietLabel returns the display name of a diet tag, or the tag itself.
func DietLabel(tag string) string {
	if l, ok := dietLabels[tag]; ok {
		return l
	}
	return tag
}
