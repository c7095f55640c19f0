package planner

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxResponseBytes caps how much generated text is scanned for a plan.
const MaxResponseBytes = 1 << 20

// ErrParse covers every way generated text can fail to yield a plan.
var ErrParse = errors.New("failed to parse meal plan")

var errNoJSON = errors.New("no JSON object found in response")

// ExtractJSONObject returns the first balanced {...} span in text. Braces
// inside JSON strings are ignored. Input beyond MaxResponseBytes is not
// scanned.
func ExtractJSONObject(text string) (string, error) {
	if len(text) > MaxResponseBytes {
		text = text[:MaxResponseBytes]
	}

	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errNoJSON
}

// ParsePlan pulls a meal plan out of generated text. The object must have
// a top level "weeklyPlan" key and pass Validate.
func ParsePlan(text string) (MealPlan, error) {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return MealPlan{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return MealPlan{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	raw, ok := doc["weeklyPlan"]
	if !ok {
		return MealPlan{}, fmt.Errorf("%w: missing weeklyPlan", ErrParse)
	}

	var plan WeeklyMealPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return MealPlan{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := plan.Validate(); err != nil {
		return MealPlan{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return MealPlan{WeeklyPlan: plan}, nil
}
