package capture

import (
	"encoding/json"
	"fmt"

	"wellness-meal-planner/internal/profile"
)

// Snapshot is the serializable state of an unfinished wizard.
type Snapshot struct {
	Step        Step                `json:"step"`
	Preferences profile.Preferences `json:"preferences"`
}

// Snapshot captures the wizard so a transport can resume it later.
func (w *Wizard) Snapshot() Snapshot {
	return Snapshot{Step: w.step, Preferences: clonePreferences(w.prefs)}
}

// Restore rebuilds a wizard from a snapshot.
func Restore(s Snapshot) (*Wizard, error) {
	if s.Step < StepName || s.Step > StepGoals {
		return nil, fmt.Errorf("invalid wizard step %d", s.Step)
	}
	return &Wizard{step: s.Step, prefs: clonePreferences(s.Preferences)}, nil
}

// MarshalSnapshot encodes the wizard state as JSON.
func MarshalSnapshot(w *Wizard) (string, error) {
	b, err := json.Marshal(w.Snapshot())
	if err != nil {
		return "", fmt.Errorf("failed to encode wizard state: %w", err)
	}
	return string(b), nil
}

// UnmarshalSnapshot is the inverse of MarshalSnapshot.
func UnmarshalSnapshot(data string) (*Wizard, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode wizard state: %w", err)
	}
	return Restore(s)
}
