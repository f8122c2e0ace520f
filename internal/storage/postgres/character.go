package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvtt/tabletop/internal/game/position"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// CharacterRepository provides character ownership and position persistence.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// Owner returns the user ID that owns the given character.
//
// Precondition: characterID must be > 0.
// Postcondition: Returns the owner's user ID or ErrCharacterNotFound.
func (r *CharacterRepository) Owner(ctx context.Context, characterID int64) (int64, error) {
	var ownerID int64
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM characters WHERE id = $1`,
		characterID,
	).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCharacterNotFound
		}
		return 0, fmt.Errorf("querying character owner: %w", err)
	}
	return ownerID, nil
}

// SavePositions writes every pending position in one transaction so a
// mid-flush crash cannot leave a partially applied batch.
//
// Precondition: batch must be non-empty; every key must be a character ID.
// Postcondition: Either every position is persisted or none is. Characters
// whose rows have been deleted since the move was queued are skipped, not
// treated as errors.
func (r *CharacterRepository) SavePositions(ctx context.Context, batch map[int64]position.Update) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning position batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for characterID, pos := range batch {
		if pos.Angle != nil {
			_, err = tx.Exec(ctx,
				`UPDATE characters SET pos_x = $2, pos_y = $3, angle = $4, updated_at = NOW()
				 WHERE id = $1`,
				characterID, pos.X, pos.Y, *pos.Angle,
			)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE characters SET pos_x = $2, pos_y = $3, updated_at = NOW()
				 WHERE id = $1`,
				characterID, pos.X, pos.Y,
			)
		}
		if err != nil {
			return fmt.Errorf("updating position for character %d: %w", characterID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing position batch: %w", err)
	}
	return nil
}
