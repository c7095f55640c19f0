package planner

import (
	"errors"
	"fmt"
	"strings"
)

// Weekdays lists the plan's keys in display order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

const (
	MinRating = 1.0
	MaxRating = 5.0
)

// Meal is a single dish suggestion.
type Meal struct {
	Name     string  `json:"name"`
	Calories int     `json:"calories"`
	PrepTime string  `json:"prepTime"`
	Rating   float64 `json:"rating"`
}

// DayMeals holds the three meals of one day.
type DayMeals struct {
	Breakfast Meal `json:"breakfast"`
	Lunch     Meal `json:"lunch"`
	Dinner    Meal `json:"dinner"`
}

// Total is the day's calorie sum.
func (d DayMeals) Total() int {
	return d.Breakfast.Calories + d.Lunch.Calories + d.Dinner.Calories
}

// WeeklyMealPlan maps weekday names to that day's meals.
type WeeklyMealPlan map[string]DayMeals

// MealPlan is the document exchanged with clients: {"weeklyPlan": {...}}.
type MealPlan struct {
	WeeklyPlan WeeklyMealPlan `json:"weeklyPlan"`
}

var errInvalidPlan = errors.New("invalid meal plan")

// Validate checks the structure renderers rely on: all seven weekdays and
// nothing else, three named meals per day, positive calories and ratings
// within bounds.
func (p WeeklyMealPlan) Validate() error {
	if len(p) != len(Weekdays) {
		return fmt.Errorf("%w: expected %d days, got %d", errInvalidPlan, len(Weekdays), len(p))
	}
	for _, day := range Weekdays {
		meals, ok := p[day]
		if !ok {
			return fmt.Errorf("%w: missing %s", errInvalidPlan, day)
		}
		if err := meals.Breakfast.validate(); err != nil {
			return fmt.Errorf("%w: %s breakfast: %v", errInvalidPlan, day, err)
		}
		if err := meals.Lunch.validate(); err != nil {
			return fmt.Errorf("%w: %s lunch: %v", errInvalidPlan, day, err)
		}
		if err := meals.Dinner.validate(); err != nil {
			return fmt.Errorf("%w: %s dinner: %v", errInvalidPlan, day, err)
		}
	}
	return nil
}

func (m Meal) validate() error {
	switch {
	case strings.TrimSpace(m.Name) == "":
		return errors.New("name is empty")
	case m.Calories <= 0:
		return fmt.Errorf("calories must be positive, got %d", m.Calories)
	case m.Rating < MinRating || m.Rating > MaxRating:
		return fmt.Errorf("rating %.1f out of range", m.Rating)
	}
	return nil
}

// Fallback is the fixed plan served whenever remote generation fails.
// It does not depend on the user's preferences.
func Fallback() MealPlan {
	plan := make(WeeklyMealPlan, len(Weekdays))
	for _, day := range Weekdays {
		plan[day] = DayMeals{
			Breakfast: Meal{Name: "Healthy " + day + " Breakfast", Calories: 350, PrepTime: "15 min", Rating: 4.5},
			Lunch:     Meal{Name: "Nutritious " + day + " Lunch", Calories: 500, PrepTime: "25 min", Rating: 4.3},
			Dinner:    Meal{Name: "Delicious " + day + " Dinner", Calories: 650, PrepTime: "35 min", Rating: 4.7},
		}
	}
	return MealPlan{WeeklyPlan: plan}
}
