package games

import (
	"fmt"

	"wagerledger/models"
	"wagerledger/payout"
)

// Registry maps single-step game types to their strategies
type Registry struct {
	strategies map[models.GameType]Strategy
}

// NewRegistry registers every single-step game priced from edges
func NewRegistry(edges *payout.EdgeTable) *Registry {
	r := &Registry{strategies: make(map[models.GameType]Strategy)}
	r.Register(NewDice(edges))
	r.Register(NewLimbo(edges))
	r.Register(NewRoulette(edges))
	r.Register(NewPlinko(edges))
	return r
}

// Register adds or replaces a strategy
func (r *Registry) Register(s Strategy) {
	r.strategies[s.GameType()] = s
}

// Get returns the strategy for a game type
func (r *Registry) Get(gameType models.GameType) (Strategy, error) {
	s, ok := r.strategies[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported game type %q", models.ErrInvalidParameters, gameType)
	}
	return s, nil
}

// GameTypes lists the registered games
func (r *Registry) GameTypes() []models.GameType {
	types := make([]models.GameType, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	return types
}
