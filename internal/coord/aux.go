package coord

import (
	"context"
	"encoding/json"
	"time"
)

// AuxContext is the per-cycle context read from persistent storage.
type AuxContext struct {
	Agents []json.RawMessage
	News   map[string]string
	Status string
	Flow   string
}

// AuxSource loads auxiliary context once per cycle.
type AuxSource interface {
	Aux(ctx context.Context) (AuxContext, error)
}

// auxStore is the subset of *store.Store read here.
type auxStore interface {
	Agents() ([]json.RawMessage, error)
	News(gameID string) (map[string]string, time.Time, error)
}

// StoreAux reads the roster and the cached news of one game from the store.
// Status and Flow are fixed for the session.
type StoreAux struct {
	store  auxStore
	gameID string
	status string
	flow   string
}

// NewStoreAux creates a StoreAux.
func NewStoreAux(s auxStore, gameID, status, flow string) *StoreAux {
	return &StoreAux{store: s, gameID: gameID, status: status, flow: flow}
}

// Aux implements AuxSource. Missing values are empty, not errors.
func (a *StoreAux) Aux(ctx context.Context) (AuxContext, error) {
	agents, err := a.store.Agents()
	if err != nil {
		return AuxContext{}, err
	}
	news, _, err := a.store.News(a.gameID)
	if err != nil {
		return AuxContext{}, err
	}
	return AuxContext{Agents: agents, News: news, Status: a.status, Flow: a.flow}, nil
}
