package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"wellness-meal-planner/internal/database"
	"wellness-meal-planner/internal/logger"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "profiles.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db.SQL)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p != nil {
		t.Errorf("Get() = %+v, want nil", p)
	}
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	prefs := Preferences{
		Name:          "Ana",
		DietType:      []string{DietVegetarian, DietGlutenFree},
		Allergies:     "peanuts",
		Goals:         []string{"Weight Loss"},
		CalorieTarget: "1800",
	}
	stored, err := s.Upsert(ctx, FromPreferences("user-1", prefs))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if stored.ID == "" {
		t.Error("expected generated id")
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Error("expected timestamps")
	}

	got, err := s.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	back := ToPreferences(got)
	if !reflect.DeepEqual(back, prefs) {
		t.Errorf("round trip = %+v, want %+v", back, prefs)
	}
	if got.FavoriteFoods != nil {
		t.Errorf("FavoriteFoods should stay NULL")
	}
}

func TestSQLiteStore_UpsertReplacesEveryField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, FromPreferences("user-1", Preferences{
		Name:          "Ana",
		DietType:      []string{DietKeto},
		Allergies:     "shellfish",
		Goals:         []string{"Weight Loss", "Heart Health"},
		CalorieTarget: "1600",
	}))
	if err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	second, err := s.Upsert(ctx, FromPreferences("user-1", Preferences{
		Name:     "Ana",
		DietType: []string{DietPaleo},
		Goals:    []string{"Muscle Gain"},
	}))
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("row id changed: %s -> %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on update")
	}
	if !reflect.DeepEqual(second.Goals, []string{"Muscle Gain"}) {
		t.Errorf("Goals = %v, want only the second submission", second.Goals)
	}
	if !reflect.DeepEqual(second.DietTypes, []string{DietPaleo}) {
		t.Errorf("DietTypes = %v", second.DietTypes)
	}
	if second.Allergies != nil || second.CalorieTarget != nil {
		t.Errorf("cleared fields should be NULL, got allergies=%v calories=%v", second.Allergies, second.CalorieTarget)
	}

	var rows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE user_id = ?`, "user-1").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("expected one row per user, got %d", rows)
	}
}

func TestSQLiteStore_Errors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Upsert(context.Background(), &Profile{})
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("Upsert without user id = %v, want ErrPersistence", err)
	}

	s.db.Close()
	_, err = s.Get(context.Background(), "user-1")
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "select profile" {
		t.Errorf("Get on closed db = %v, want PersistenceError", err)
	}
}

func TestPostgresStore_Integration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := OpenPostgresStore(ctx, url)
	if err != nil {
		t.Fatalf("OpenPostgresStore() error = %v", err)
	}
	defer s.Close()

	userID := "00000000-0000-0000-0000-000000000042"
	if _, err := s.Upsert(ctx, FromPreferences(userID, Preferences{Name: "A", DietType: []string{DietVegan}, Goals: []string{"Weight Loss"}})); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, err := s.Upsert(ctx, FromPreferences(userID, Preferences{Name: "A", DietType: []string{DietVegan}, Goals: []string{"Heart Health"}}))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !reflect.DeepEqual(got.Goals, []string{"Heart Health"}) {
		t.Errorf("Goals = %v", got.Goals)
	}
	t.Run("TelegramUser", func(t *testing.T) {
		tgUser := "telegram:42"
		stored, err := s.Upsert(ctx, FromPreferences(tgUser, Preferences{Name: "Tg", DietType: []string{DietKeto}, Goals: []string{"Energy Boost"}}))
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if stored.UserID != tgUser {
			t.Errorf("stored UserID = %q, want %q", stored.UserID, tgUser)
		}
		got, err := s.Get(ctx, tgUser)
		if err != nil || got == nil {
			t.Fatalf("Get() = %v, %v", got, err)
		}
		if got.UserID != tgUser || !reflect.DeepEqual(got.DietTypes, []string{DietKeto}) {
			t.Errorf("Get() = %+v", got)
		}
	})
}

func TestPgUserKey(t *testing.T) {
	const plain = "00000000-0000-0000-0000-000000000042"
	if got := pgUserKey(plain).String(); got != plain {
		t.Errorf("pgUserKey(%q) = %s, want it unchanged", plain, got)
	}

	a, again, other := pgUserKey("telegram:42"), pgUserKey("telegram:42"), pgUserKey("telegram:43")
	if a != again {
		t.Errorf("telegram key not stable: %s vs %s", a, again)
	}
	if a == other {
		t.Errorf("distinct telegram users share key %s", a)
	}
	if a.Version() != 5 {
		t.Errorf("telegram key version = %d, want 5", a.Version())
	}
}
