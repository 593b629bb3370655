package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	agentsKey     = "agents"
	newsKeyPrefix = "news:"
)

// GetJSON decodes the value under key into v. A missing key leaves v
// untouched and returns ErrNotFound.
func (s *Store) GetJSON(key string, v any) (time.Time, error) {
	e, err := s.Get(key)
	if err != nil {
		return time.Time{}, err
	}
	if err := json.Unmarshal(e.Value, v); err != nil {
		return time.Time{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return e.Updated, nil
}

// PutJSON encodes v and stores it under key.
func (s *Store) PutJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(key, b)
}

// Agents returns the persona roster as opaque JSON records.
// No roster yet is an empty slice, not an error.
func (s *Store) Agents() ([]json.RawMessage, error) {
	var agents []json.RawMessage
	if _, err := s.GetJSON(agentsKey, &agents); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if agents == nil {
		agents = []json.RawMessage{}
	}
	return agents, nil
}

// SaveAgents replaces the persona roster.
func (s *Store) SaveAgents(agents []json.RawMessage) error {
	if agents == nil {
		agents = []json.RawMessage{}
	}
	return s.PutJSON(agentsKey, agents)
}

// News returns the cached news summary for a game and when it was stored.
// A missing cache is an empty map with a zero time.
func (s *Store) News(gameID string) (map[string]string, time.Time, error) {
	news := map[string]string{}
	updated, err := s.GetJSON(newsKeyPrefix+gameID, &news)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, time.Time{}, err
	}
	return news, updated, nil
}

// SaveNews caches a news summary for a game.
func (s *Store) SaveNews(gameID string, news map[string]string) error {
	if news == nil {
		news = map[string]string{}
	}
	return s.PutJSON(newsKeyPrefix+gameID, news)
}

// ClearNews drops every cached news summary.
func (s *Store) ClearNews() error {
	keys, err := s.Keys(newsKeyPrefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
