// Package lobby tracks role availability and runs the two-step role claim:
// reserve an externally-issued identity, then attempt the player insert.
// Uniqueness comes from the store's write-time constraint, never from local
// locking; the coordinator only optimizes the common case and surfaces the
// race loser's conflict as retryable.
package lobby

import (
	"context"
	"time"

	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/store"
)

// RoleStatus is one entry of the role selection board.
type RoleStatus struct {
	Role        domain.Role `json:"role"`
	DisplayName string      `json:"displayName"`
	Taken       bool        `json:"taken"`
}

// Coordinator gates entry into the session via role claims.
type Coordinator struct {
	entities store.EntityStore
	issuer   store.IdentityIssuer
	now      func() time.Time
}

func NewCoordinator(entities store.EntityStore, issuer store.IdentityIssuer) *Coordinator {
	return &Coordinator{entities: entities, issuer: issuer, now: time.Now}
}

// RoleBoard recomputes the taken flag for every role from a player list.
// Callers re-invoke it on each players-changed notification.
func RoleBoard(players []domain.Player) []RoleStatus {
	claimed := make(map[domain.Role]bool, len(players))
	for _, p := range players {
		claimed[p.Role] = true
	}
	board := make([]RoleStatus, 0, len(domain.Roles))
	for _, role := range domain.Roles {
		board = append(board, RoleStatus{
			Role:        role,
			DisplayName: role.DisplayName(),
			Taken:       claimed[role],
		})
	}
	return board
}

// ClaimRole reserves an anonymous identity and creates the player record for
// the chosen role. On a lost race it returns domain.ErrRoleTaken and leaves
// nothing behind; the caller may simply retry with another role.
func (c *Coordinator) ClaimRole(ctx context.Context, role domain.Role) (domain.Player, error) {
	if !role.Valid() {
		return domain.Player{}, domain.ErrRoleTaken
	}

	// Common-case optimization only; the insert below is what decides.
	players, err := c.entities.ListPlayers(ctx)
	if err != nil {
		return domain.Player{}, err
	}
	if len(players) >= domain.MaxPlayers {
		return domain.Player{}, domain.ErrLobbyFull
	}
	for _, p := range players {
		if p.Role == role {
			return domain.Player{}, domain.ErrRoleTaken
		}
	}

	identity, err := c.issuer.SignInAnonymously(ctx)
	if err != nil {
		return domain.Player{}, err
	}

	player := domain.Player{
		ID:        identity,
		Role:      role,
		Ready:     true,
		CreatedAt: c.now(),
	}
	if err := c.entities.InsertPlayer(ctx, player); err != nil {
		return domain.Player{}, err
	}
	return player, nil
}

// Leave removes a player's profile on voluntary disconnect, freeing the role.
func (c *Coordinator) Leave(ctx context.Context, playerID string) error {
	return c.entities.DeletePlayer(ctx, playerID)
}

// CheckProfile verifies the profile still exists. domain.ErrPlayerNotFound
// means an administrative reset removed it and the surface must navigate
// back to role selection.
func (c *Coordinator) CheckProfile(ctx context.Context, playerID string) error {
	_, err := c.entities.GetPlayer(ctx, playerID)
	return err
}
