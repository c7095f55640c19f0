package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUpsertProfileSQL = `
INSERT INTO profiles (id, user_id, name, diet_types, allergies, favorite_foods, dislikes, goals, calorie_target, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
ON CONFLICT (user_id) DO UPDATE SET
	name = EXCLUDED.name,
	diet_types = EXCLUDED.diet_types,
	allergies = EXCLUDED.allergies,
	favorite_foods = EXCLUDED.favorite_foods,
	dislikes = EXCLUDED.dislikes,
	goals = EXCLUDED.goals,
	calorie_target = EXCLUDED.calorie_target,
	updated_at = now()
RETURNING id, user_id, name, diet_types, allergies, favorite_foods, dislikes, goals, calorie_target, created_at, updated_at`

const pgSelectProfileSQL = `
SELECT id, user_id, name, diet_types, allergies, favorite_foods, dislikes, goals, calorie_target, created_at, updated_at
FROM profiles WHERE user_id = $1`

// externalUserNamespace derives row keys for user ids that are not
// UUIDs, such as "telegram:<id>".
var externalUserNamespace = uuid.MustParse("6f1c2b9e-4d1a-5c3e-9b7f-2a8d0e4c6b51")

// pgUserKey maps a user id onto the uuid user_id column. UUIDs pass
// through; anything else gets a stable name-based UUID.
func pgUserKey(userID string) uuid.UUID {
	if id, err := uuid.Parse(userID); err == nil {
		return id
	}
	return uuid.NewSHA1(externalUserNamespace, []byte(userID))
}

// PostgresStore reads and writes the managed "profiles" table, whose
// schema (text[] tag columns, uuid keys) is owned outside this service.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgresStore connects to databaseURL and verifies the connection.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, pgSelectProfileSQL, pgUserKey(userID)), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistenceErr("select profile", err)
	}
	return p, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	if p == nil || p.UserID == "" {
		return nil, persistenceErr("upsert profile", fmt.Errorf("missing user id"))
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	stored, err := scanProfile(s.pool.QueryRow(ctx, pgUpsertProfileSQL,
		id, pgUserKey(p.UserID), p.Name, cloneOrEmpty(p.DietTypes), p.Allergies, p.FavoriteFoods, p.Dislikes,
		cloneOrEmpty(p.Goals), p.CalorieTarget,
	), p.UserID)
	if err != nil {
		return nil, persistenceErr("upsert profile", err)
	}
	return stored, nil
}

// scanProfile reports the row under the caller's user id, not the
// derived column key.
func scanProfile(row pgx.Row, userID string) (*Profile, error) {
	var p Profile
	var id, userKey uuid.UUID
	if err := row.Scan(
		&id, &userKey, &p.Name, &p.DietTypes, &p.Allergies, &p.FavoriteFoods, &p.Dislikes,
		&p.Goals, &p.CalorieTarget, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.ID = id.String()
	p.UserID = userID
	if p.DietTypes == nil {
		p.DietTypes = []string{}
	}
	if p.Goals == nil {
		p.Goals = []string{}
	}
	return &p, nil
}
