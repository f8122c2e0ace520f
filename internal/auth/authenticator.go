package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/openvtt/tabletop/internal/protocol"
	"github.com/openvtt/tabletop/internal/storage/postgres"
)

// GameStore defines the membership lookup required by the Authenticator.
type GameStore interface {
	MemberRole(ctx context.Context, gameID, userID int64) (protocol.Role, error)
}

// Identity is the result of a successful authentication: who connected,
// to which game, with what authority.
type Identity struct {
	UserID   int64
	Username string
	GameID   int64
	Role     protocol.Role
}

// Authenticator verifies a connection's token and game membership.
type Authenticator struct {
	verifier *Verifier
	games    GameStore
}

// NewAuthenticator creates an Authenticator.
//
// Precondition: verifier and games must be non-nil.
func NewAuthenticator(verifier *Verifier, games GameStore) *Authenticator {
	return &Authenticator{verifier: verifier, games: games}
}

// Authenticate validates an auth frame end to end: token signature and
// expiry, then membership in the named game.
//
// Postcondition: Returns a complete Identity, or an error whose class maps to
// a distinct close code via CloseCode.
func (a *Authenticator) Authenticate(ctx context.Context, msg protocol.Auth) (Identity, error) {
	claims, err := a.verifier.Verify(msg.Token)
	if err != nil {
		return Identity{}, err
	}

	if msg.GameID <= 0 {
		return Identity{}, fmt.Errorf("%w: game id %d", postgres.ErrGameNotFound, msg.GameID)
	}

	role, err := a.games.MemberRole(ctx, msg.GameID, claims.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("checking membership for user %d: %w", claims.UserID, err)
	}

	return Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		GameID:   msg.GameID,
		Role:     role,
	}, nil
}

// CloseCode maps an authentication failure to its websocket close code.
//
// Postcondition: Returns one of the protocol.Close* auth codes; unknown
// errors map to CloseInvalidToken.
func CloseCode(err error) int {
	switch {
	case errors.Is(err, ErrMissingToken):
		return protocol.CloseMissingToken
	case errors.Is(err, ErrExpiredToken):
		return protocol.CloseExpiredToken
	case errors.Is(err, ErrInvalidToken):
		return protocol.CloseInvalidToken
	case errors.Is(err, postgres.ErrGameNotFound):
		return protocol.CloseInvalidGame
	case errors.Is(err, postgres.ErrNotAMember):
		return protocol.CloseNotAMember
	default:
		return protocol.CloseInvalidToken
	}
}
