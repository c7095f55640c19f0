package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"wellness-meal-planner/internal/auth"
	"wellness-meal-planner/internal/logger"
	"wellness-meal-planner/internal/planner"
	"wellness-meal-planner/internal/profile"
	"wellness-meal-planner/internal/session"
)

type mockStore struct {
	mu        sync.Mutex
	rows      map[string]*profile.Profile
	gets      int
	upsertErr error
	// block, when set, holds Upsert until closed.
	block   chan struct{}
	entered chan struct{}
	// afterGet runs outside the lock once Get has read its row.
	afterGet func(call int)
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]*profile.Profile)}
}

func (m *mockStore) Get(_ context.Context, userID string) (*profile.Profile, error) {
	m.mu.Lock()
	m.gets++
	call, row, hook := m.gets, m.rows[userID], m.afterGet
	m.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return row, nil
}

func (m *mockStore) Upsert(_ context.Context, p *profile.Profile) (*profile.Profile, error) {
	if m.entered != nil {
		close(m.entered)
	}
	if m.block != nil {
		<-m.block
	}
	if m.upsertErr != nil {
		return nil, &profile.PersistenceError{Op: "upsert profile", Err: m.upsertErr}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.ID = "row-" + p.UserID
	m.rows[p.UserID] = &cp
	return &cp, nil
}

type mockGenerator struct {
	prefs []profile.Preferences
}

func (m *mockGenerator) Generate(_ context.Context, prefs profile.Preferences) planner.Result {
	m.prefs = append(m.prefs, prefs)
	return planner.Result{Plan: planner.Fallback(), Source: planner.SourceRemote}
}

var completePrefs = profile.Preferences{
	Name:     "Ana",
	DietType: []string{profile.DietVegan},
	Goals:    []string{"Weight Loss"},
}

func signedIn(userID string) *session.Session {
	return session.New(&auth.Identity{UserID: userID}, session.NewCache())
}

func TestViewStateTransitions(t *testing.T) {
	ctx := context.Background()
	a := NewApp(newMockStore(), &mockGenerator{}, logger.NewNop())

	anon := session.New(nil, session.NewCache())
	if v, _ := a.ViewState(ctx, anon); v != profile.ViewWelcome {
		t.Errorf("anonymous view = %s", v)
	}

	sess := signedIn("u1")
	if v, _ := a.ViewState(ctx, sess); v != profile.ViewCapture {
		t.Errorf("new user view = %s", v)
	}

	stored, view, err := a.SubmitPreferences(ctx, sess, completePrefs)
	if err != nil {
		t.Fatalf("SubmitPreferences() error = %v", err)
	}
	if view != profile.ViewDashboard || stored.UserID != "u1" {
		t.Errorf("after submit: view %s, stored %+v", view, stored)
	}
	if v, _ := a.ViewState(ctx, sess); v != profile.ViewDashboard {
		t.Errorf("view after submit = %s", v)
	}
}

func TestLoadProfileUsesCache(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	a := NewApp(store, &mockGenerator{}, logger.NewNop())
	sess := signedIn("u1")

	a.LoadProfile(ctx, sess)
	a.LoadProfile(ctx, sess)
	if store.gets != 1 {
		t.Errorf("store hit %d times, want 1", store.gets)
	}

	// A submission invalidates the cached "no profile" entry.
	if _, _, err := a.SubmitPreferences(ctx, sess, completePrefs); err != nil {
		t.Fatal(err)
	}
	p, err := a.LoadProfile(ctx, sess)
	if err != nil || p == nil {
		t.Fatalf("LoadProfile() = %v, %v", p, err)
	}
}

func TestSlowReadDoesNotOverwriteSubmit(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	read := make(chan struct{})
	resume := make(chan struct{})
	store.afterGet = func(call int) {
		if call == 1 {
			close(read)
			<-resume
		}
	}
	a := NewApp(store, &mockGenerator{}, logger.NewNop())
	sess := signedIn("u1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.LoadProfile(ctx, sess)
	}()
	<-read

	if _, view, err := a.SubmitPreferences(ctx, sess, completePrefs); err != nil || view != profile.ViewDashboard {
		t.Fatalf("SubmitPreferences() = %s, %v", view, err)
	}
	close(resume)
	<-done

	if v, err := a.ViewState(ctx, sess); err != nil || v != profile.ViewDashboard {
		t.Errorf("view after completed submit = %s, %v", v, err)
	}
}

func TestSubmitPreferencesErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Unauthenticated", func(t *testing.T) {
		a := NewApp(newMockStore(), &mockGenerator{}, logger.NewNop())
		_, _, err := a.SubmitPreferences(ctx, session.New(nil, nil), completePrefs)
		if !errors.Is(err, profile.ErrPersistence) {
			t.Errorf("err = %v, want ErrPersistence", err)
		}
	})

	t.Run("StoreRejects", func(t *testing.T) {
		store := newMockStore()
		store.upsertErr = errors.New("constraint violated")
		a := NewApp(store, &mockGenerator{}, logger.NewNop())
		sess := signedIn("u1")

		_, _, err := a.SubmitPreferences(ctx, sess, completePrefs)
		if !errors.Is(err, profile.ErrPersistence) {
			t.Errorf("err = %v, want ErrPersistence", err)
		}
		if v, _ := a.ViewState(ctx, sess); v != profile.ViewCapture {
			t.Errorf("view changed to %s after failed submit", v)
		}
	})
}

func TestSubmitPreferencesInFlight(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.block = make(chan struct{})
	store.entered = make(chan struct{})
	a := NewApp(store, &mockGenerator{}, logger.NewNop())
	sess := signedIn("u1")

	done := make(chan error, 1)
	go func() {
		_, _, err := a.SubmitPreferences(ctx, sess, completePrefs)
		done <- err
	}()
	<-store.entered

	if _, _, err := a.SubmitPreferences(ctx, sess, completePrefs); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("second submit err = %v, want ErrSubmissionInFlight", err)
	}
	store.entered = nil
	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit err = %v", err)
	}

	store.block = nil
	if _, _, err := a.SubmitPreferences(ctx, sess, completePrefs); err != nil {
		t.Errorf("submit after release err = %v", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.guards); n != 0 {
		t.Errorf("guards left after submissions finished: %d", n)
	}
}

func TestGenerateForUser(t *testing.T) {
	ctx := context.Background()
	gen := &mockGenerator{}
	a := NewApp(newMockStore(), gen, logger.NewNop())
	sess := signedIn("u1")

	if _, _, err := a.GenerateForUser(ctx, sess); !errors.Is(err, ErrNoProfile) {
		t.Fatalf("err = %v, want ErrNoProfile", err)
	}

	prefs := completePrefs
	prefs.CalorieTarget = "1900"
	if _, _, err := a.SubmitPreferences(ctx, sess, prefs); err != nil {
		t.Fatal(err)
	}
	res, used, err := a.GenerateForUser(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != planner.SourceRemote || used.CalorieTarget != "1900" || len(gen.prefs) != 1 {
		t.Errorf("unexpected result %s, prefs %+v", res.Source, used)
	}
}

func TestPrintMealPlan(t *testing.T) {
	var buf bytes.Buffer
	PrintMealPlan(&buf, planner.Result{Plan: planner.Fallback(), Source: planner.SourceFallback, Err: errors.New("boom")})

	out := buf.String()
	for _, want := range []string{"=== WEEKLY MEAL PLAN ===", "fallback plan: boom", "Monday (1500 kcal)", "Healthy Monday Breakfast - 350 kcal, 15 min, 4.5/5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Monday") > strings.Index(out, "Sunday") {
		t.Error("days out of order")
	}
}
