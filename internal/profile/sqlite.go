package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const upsertProfileSQL = `
INSERT INTO profiles (id, user_id, name, diet_types, allergies, favorite_foods, dislikes, goals, calorie_target, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	name = excluded.name,
	diet_types = excluded.diet_types,
	allergies = excluded.allergies,
	favorite_foods = excluded.favorite_foods,
	dislikes = excluded.dislikes,
	goals = excluded.goals,
	calorie_target = excluded.calorie_target,
	updated_at = excluded.updated_at`

const selectProfileSQL = `
SELECT id, user_id, name, diet_types, allergies, favorite_foods, dislikes, goals, calorie_target, created_at, updated_at
FROM profiles WHERE user_id = ?`

// SQLiteStore keeps profiles in the embedded database. Tag lists are
// stored as JSON arrays.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(d *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:  d,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get retrieves the profile of userID, or nil if the user has none yet.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Profile, error) {
	var (
		p                              Profile
		name, allergies, fav, dislikes sql.NullString
		dietJSON, goalsJSON            string
		calories                       sql.NullInt64
		createdAt, updatedAt           string
	)
	err := s.db.QueryRowContext(ctx, selectProfileSQL, userID).Scan(
		&p.ID, &p.UserID, &name, &dietJSON, &allergies, &fav, &dislikes, &goalsJSON, &calories, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, persistenceErr("select profile", err)
	}

	if err := json.Unmarshal([]byte(dietJSON), &p.DietTypes); err != nil {
		return nil, persistenceErr("decode diet_types", err)
	}
	if err := json.Unmarshal([]byte(goalsJSON), &p.Goals); err != nil {
		return nil, persistenceErr("decode goals", err)
	}
	p.Name = fromNullString(name)
	p.Allergies = fromNullString(allergies)
	p.FavoriteFoods = fromNullString(fav)
	p.Dislikes = fromNullString(dislikes)
	if calories.Valid {
		c := int(calories.Int64)
		p.CalorieTarget = &c
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, persistenceErr("decode created_at", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, persistenceErr("decode updated_at", err)
	}
	return &p, nil
}

// Upsert writes p keyed on user_id and reads the row back.
func (s *SQLiteStore) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	if p == nil || p.UserID == "" {
		return nil, persistenceErr("upsert profile", fmt.Errorf("missing user id"))
	}

	dietJSON, err := json.Marshal(cloneOrEmpty(p.DietTypes))
	if err != nil {
		return nil, persistenceErr("encode diet_types", err)
	}
	goalsJSON, err := json.Marshal(cloneOrEmpty(p.Goals))
	if err != nil {
		return nil, persistenceErr("encode goals", err)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := s.now().Format(time.RFC3339Nano)

	var calories sql.NullInt64
	if p.CalorieTarget != nil {
		calories = sql.NullInt64{Int64: int64(*p.CalorieTarget), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, upsertProfileSQL,
		id, p.UserID, toNullString(p.Name), string(dietJSON),
		toNullString(p.Allergies), toNullString(p.FavoriteFoods), toNullString(p.Dislikes),
		string(goalsJSON), calories, ts, ts,
	)
	if err != nil {
		return nil, persistenceErr("upsert profile", err)
	}

	stored, err := s.Get(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, persistenceErr("upsert profile", fmt.Errorf("row for user %s missing after write", p.UserID))
	}
	return stored, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
