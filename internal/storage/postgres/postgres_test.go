package postgres_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/openvtt/tabletop/internal/testutil"
)

const migrationsPath = "../../../migrations"

// newTestPool starts a migrated postgres container for one test.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	return testutil.NewPostgresContainer(t, migrationsPath).RawPool
}

func seedUser(t *testing.T, pool *pgxpool.Pool, username string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (username) VALUES ($1) RETURNING id`, username,
	).Scan(&id)
	require.NoError(t, err, "seeding user %s", username)
	return id
}

func seedGame(t *testing.T, pool *pgxpool.Pool, name string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO games (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	require.NoError(t, err, "seeding game %s", name)
	return id
}

func seedMember(t *testing.T, pool *pgxpool.Pool, gameID, userID int64, role string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO game_members (game_id, user_id, role) VALUES ($1, $2, $3)`,
		gameID, userID, role,
	)
	require.NoError(t, err, "seeding membership")
}

func seedCharacter(t *testing.T, pool *pgxpool.Pool, gameID, userID int64, name string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO characters (game_id, user_id, name) VALUES ($1, $2, $3) RETURNING id`,
		gameID, userID, name,
	).Scan(&id)
	require.NoError(t, err, "seeding character %s", name)
	return id
}
