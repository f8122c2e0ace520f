package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvtt/tabletop/internal/protocol"
)

// ErrGameNotFound is returned when a game lookup yields no results.
var ErrGameNotFound = errors.New("game not found")

// ErrNotAMember is returned when a user has no membership in a game.
var ErrNotAMember = errors.New("not a member of game")

// GameRepository provides game membership lookups.
type GameRepository struct {
	db *pgxpool.Pool
}

// NewGameRepository creates a GameRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

// MemberRole returns the role the user holds in the game.
//
// Precondition: gameID and userID must be > 0.
// Postcondition: Returns the role, ErrGameNotFound for an unknown game, or
// ErrNotAMember when the game exists but the user does not belong to it.
func (r *GameRepository) MemberRole(ctx context.Context, gameID, userID int64) (protocol.Role, error) {
	var role string
	err := r.db.QueryRow(ctx,
		`SELECT role FROM game_members WHERE game_id = $1 AND user_id = $2`,
		gameID, userID,
	).Scan(&role)
	if err == nil {
		return protocol.Role(role), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("querying membership: %w", err)
	}

	// Distinguish an unknown game from a non-member of a real game.
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`,
		gameID,
	).Scan(&exists); err != nil {
		return "", fmt.Errorf("querying game: %w", err)
	}
	if !exists {
		return "", ErrGameNotFound
	}
	return "", ErrNotAMember
}
