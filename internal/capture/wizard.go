// Package capture implements the four step preference wizard. It holds
// in-progress selections only and never touches storage or the network.
package capture

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"wellness-meal-planner/internal/profile"
)

// Step is a wizard page, 1 through 4.
type Step int

const (
	stepFinished Step = 0
	StepName     Step = 1 // name
	StepDiet     Step = 2 // diet types
	StepFoods    Step = 3 // allergies, favorites, dislikes
	StepGoals    Step = 4 // goals and calorie target
)

const TotalSteps = 4

var (
	ErrFinished      = errors.New("wizard already finished")
	ErrCannotProceed = errors.New("current step is incomplete")
	ErrUnknownOption = errors.New("unknown option")
	ErrFirstStep     = errors.New("already on the first step")
)

// Wizard accumulates Preferences across the four steps.
type Wizard struct {
	step  Step
	prefs profile.Preferences
}

// New returns a wizard on step 1 with empty preferences.
func New() *Wizard {
	return &Wizard{step: StepName, prefs: emptyPreferences()}
}

// Resume starts a wizard pre-filled from an existing profile, e.g. when a
// user chooses to edit their preferences.
func Resume(prefs profile.Preferences) *Wizard {
	w := New()
	w.prefs = clonePreferences(prefs)
	return w
}

func (w *Wizard) Step() Step { return w.step }

func (w *Wizard) Finished() bool { return w.step == stepFinished }

// Preferences returns a copy of the current selections.
func (w *Wizard) Preferences() profile.Preferences {
	return clonePreferences(w.prefs)
}

// CanProceed reports whether the current step's guard holds.
func (w *Wizard) CanProceed() bool {
	switch w.step {
	case StepName:
		return strings.TrimSpace(w.prefs.Name) != ""
	case StepDiet:
		return len(w.prefs.DietType) > 0
	case StepFoods:
		return true
	case StepGoals:
		return len(w.prefs.Goals) > 0
	}
	return false
}

// Next advances one step. On the last step it returns the collected
// preferences and finishes the wizard; done is false otherwise.
func (w *Wizard) Next() (prefs profile.Preferences, done bool, err error) {
	if w.Finished() {
		return profile.Preferences{}, false, ErrFinished
	}
	if !w.CanProceed() {
		return profile.Preferences{}, false, fmt.Errorf("%w: step %d", ErrCannotProceed, w.step)
	}
	if w.step < StepGoals {
		w.step++
		return profile.Preferences{}, false, nil
	}

	out := clonePreferences(w.prefs)
	w.prefs = emptyPreferences()
	w.step = stepFinished
	return out, true, nil
}

// Back returns to the previous step. Selections are kept.
func (w *Wizard) Back() error {
	if w.Finished() {
		return ErrFinished
	}
	if w.step <= StepName {
		return ErrFirstStep
	}
	w.step--
	return nil
}

// Progress is the completion percentage shown above the form.
func (w *Wizard) Progress() int {
	if w.Finished() {
		return 100
	}
	return int(w.step) * 100 / TotalSteps
}

func (w *Wizard) SetName(name string) error {
	if w.Finished() {
		return ErrFinished
	}
	w.prefs.Name = name
	return nil
}

// ToggleDiet adds tag when absent and removes it when present.
func (w *Wizard) ToggleDiet(tag string) error {
	if w.Finished() {
		return ErrFinished
	}
	if !profile.IsDietType(tag) {
		return fmt.Errorf("%w: diet type %q", ErrUnknownOption, tag)
	}
	w.prefs.DietType = toggle(w.prefs.DietType, tag)
	return nil
}

// ToggleGoal adds label when absent and removes it when present.
func (w *Wizard) ToggleGoal(label string) error {
	if w.Finished() {
		return ErrFinished
	}
	if !profile.IsGoal(label) {
		return fmt.Errorf("%w: goal %q", ErrUnknownOption, label)
	}
	w.prefs.Goals = toggle(w.prefs.Goals, label)
	return nil
}

func (w *Wizard) SetAllergies(s string) error {
	return w.setText(&w.prefs.Allergies, s)
}

func (w *Wizard) SetFavoriteFoods(s string) error {
	return w.setText(&w.prefs.FavoriteFoods, s)
}

func (w *Wizard) SetDislikes(s string) error {
	return w.setText(&w.prefs.Dislikes, s)
}

func (w *Wizard) SetCalorieTarget(s string) error {
	return w.setText(&w.prefs.CalorieTarget, s)
}

func (w *Wizard) setText(field *string, s string) error {
	if w.Finished() {
		return ErrFinished
	}
	*field = s
	return nil
}

func toggle(list []string, v string) []string {
	if i := slices.Index(list, v); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return append(list, v)
}

func emptyPreferences() profile.Preferences {
	return profile.Preferences{DietType: []string{}, Goals: []string{}}
}

func clonePreferences(p profile.Preferences) profile.Preferences {
	p.DietType = append([]string{}, p.DietType...)
	p.Goals = append([]string{}, p.Goals...)
	return p
}
