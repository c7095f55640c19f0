package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/metrics"
	"wellness-meal-planner/internal/planner"
	"wellness-meal-planner/internal/profile"
	"wellness-meal-planner/internal/session"
)

var (
	// ErrSubmissionInFlight rejects a second submission for a user whose
	// first one has not finished.
	ErrSubmissionInFlight = errors.New("a preference submission is already in progress")
	// ErrNoProfile means the user has not completed capture yet.
	ErrNoProfile = errors.New("no stored preferences")
)

// MealPlanGenerator produces a plan and never fails.
type MealPlanGenerator interface {
	Generate(ctx context.Context, prefs profile.Preferences) planner.Result
}

// App holds the application's dependencies.
type App struct {
	store     profile.Store
	generator MealPlanGenerator
	log       *logger.Logger

	mu     sync.Mutex
	guards map[string]*semaphore.Weighted
}

// NewApp creates and initializes a new App instance.
func NewApp(store profile.Store, generator MealPlanGenerator, log *logger.Logger) *App {
	return &App{
		store:     store,
		generator: generator,
		log:       log,
		guards:    make(map[string]*semaphore.Weighted),
	}
}

// LoadProfile returns the signed in user's profile through the session
// cache. Anonymous sessions and users without a row get nil.
func (a *App) LoadProfile(ctx context.Context, sess *session.Session) (*profile.Profile, error) {
	userID := sess.UserID()
	if userID == "" {
		return nil, nil
	}
	cache := sess.Cache()
	if p, ok := cache.Get(userID); ok {
		return p, nil
	}

	gen := cache.Begin(userID)
	p, err := a.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cache.PutIf(userID, gen, p)
	return p, nil
}

// ViewState resolves which screen the session belongs on.
func (a *App) ViewState(ctx context.Context, sess *session.Session) (profile.ViewState, error) {
	if !sess.Authenticated() {
		return profile.ViewWelcome, nil
	}
	p, err := a.LoadProfile(ctx, sess)
	if err != nil {
		return "", err
	}
	return profile.ResolveViewState(true, p), nil
}

// SubmitPreferences persists wizard output for the signed in user,
// replacing every stored preference field, and returns the stored row
// with the view state that follows from it. On failure nothing changes.
func (a *App) SubmitPreferences(ctx context.Context, sess *session.Session, prefs profile.Preferences) (*profile.Profile, profile.ViewState, error) {
	userID := sess.UserID()
	if userID == "" {
		metrics.ObserveSubmission("error")
		return nil, profile.ViewWelcome, &profile.PersistenceError{Op: "submit preferences", Err: errors.New("not authenticated")}
	}

	if !a.acquire(userID) {
		metrics.ObserveSubmission("in_flight")
		a.log.Warn("preference submission already in flight", "user_id", userID)
		return nil, "", ErrSubmissionInFlight
	}
	defer a.release(userID)

	stored, err := a.store.Upsert(ctx, profile.FromPreferences(userID, prefs))
	if err != nil {
		metrics.ObserveSubmission("error")
		a.log.Error("failed to persist preferences", "user_id", userID, "error", err)
		return nil, "", fmt.Errorf("failed to save preferences: %w", err)
	}
	metrics.ObserveSubmission("ok")

	sess.Cache().Invalidate(userID)
	current, err := a.LoadProfile(ctx, sess)
	if err != nil {
		// The write went through; resolve from what the store returned.
		a.log.Warn("failed to refetch profile after save", "user_id", userID, "error", err)
		current = stored
	}

	a.log.Info("preferences saved", "user_id", userID, "diet_types", len(stored.DietTypes), "goals", len(stored.Goals))
	return current, profile.ResolveViewState(true, current), nil
}

// GenerateMealPlan runs the generator for prefs.
func (a *App) GenerateMealPlan(ctx context.Context, prefs profile.Preferences) planner.Result {
	return a.generator.Generate(ctx, prefs)
}

// GenerateForUser generates from the signed in user's stored profile.
func (a *App) GenerateForUser(ctx context.Context, sess *session.Session) (planner.Result, profile.Preferences, error) {
	p, err := a.LoadProfile(ctx, sess)
	if err != nil {
		return planner.Result{}, profile.Preferences{}, err
	}
	if p == nil {
		return planner.Result{}, profile.Preferences{}, ErrNoProfile
	}
	prefs := profile.ToPreferences(p)
	return a.generator.Generate(ctx, prefs), prefs, nil
}

// acquire takes the user's submission slot without waiting. Guards only
// live while a submission holds them.
func (a *App) acquire(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.guards[userID]
	if !ok {
		g = semaphore.NewWeighted(1)
		a.guards[userID] = g
	}
	return g.TryAcquire(1)
}

// release frees the slot and drops the guard. Nobody can be queued on it
// since acquire never blocks.
func (a *App) release(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if g, ok := a.guards[userID]; ok {
		g.Release(1)
		delete(a.guards, userID)
	}
}
