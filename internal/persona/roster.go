// Package persona handles the fan agent roster: opaque JSON records that the
// backend turns into chat personas. Only name, team and avatar are read here.
package persona

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Agent is the part of a roster record the client understands.
type Agent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Team       string `json:"team"`
	AvatarSeed string `json:"avatarSeed"`
	IsHome     bool   `json:"isHome"`
}

// Roster is an ordered set of agents with their original records.
type Roster struct {
	agents []Agent
	raw    []json.RawMessage
}

// ErrNoName is returned for a record without a usable name.
var ErrNoName = errors.New("agent record has no name")

// Parse builds a roster from raw records. Records without a name are
// rejected because the backend keys personas by name.
func Parse(raw []json.RawMessage) (Roster, error) {
	r := Roster{
		agents: make([]Agent, 0, len(raw)),
		raw:    make([]json.RawMessage, 0, len(raw)),
	}
	for i, rec := range raw {
		var a Agent
		if err := json.Unmarshal(rec, &a); err != nil {
			return Roster{}, fmt.Errorf("agent %d: %w", i, err)
		}
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			return Roster{}, fmt.Errorf("agent %d: %w", i, ErrNoName)
		}
		r.agents = append(r.agents, a)
		r.raw = append(r.raw, rec)
	}
	return r, nil
}

// Len returns the number of agents.
func (r Roster) Len() int {
	return len(r.agents)
}

// Agents returns a copy of the parsed agents.
func (r Roster) Agents() []Agent {
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Raw returns the records as they are sent to the backend.
func (r Roster) Raw() []json.RawMessage {
	out := make([]json.RawMessage, len(r.raw))
	copy(out, r.raw)
	return out
}

// Names lists agent names in roster order.
func (r Roster) Names() []string {
	names := make([]string, len(r.agents))
	for i, a := range r.agents {
		names[i] = a.Name
	}
	return names
}

// Find returns the agent called name.
func (r Roster) Find(name string) (Agent, bool) {
	for _, a := range r.agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// TeamOf returns the raw team label of the agent called name, or "".
func (r Roster) TeamOf(name string) string {
	if a, ok := r.Find(name); ok {
		return a.Team
	}
	return ""
}

// Avatar returns the avatar key for name, or "".
func (r Roster) Avatar(name string) string {
	if a, ok := r.Find(name); ok {
		if a.AvatarSeed != "" {
			return a.AvatarSeed
		}
		return a.ID
	}
	return ""
}

// Append adds records after validating them, skipping names already present.
func (r Roster) Append(raw []json.RawMessage) (Roster, int, error) {
	add, err := Parse(raw)
	if err != nil {
		return r, 0, err
	}
	out := Roster{raw: r.Raw(), agents: r.Agents()}
	added := 0
	for i, a := range add.agents {
		if _, dup := out.Find(a.Name); dup {
			continue
		}
		out.agents = append(out.agents, a)
		out.raw = append(out.raw, add.raw[i])
		added++
	}
	return out, added, nil
}

// LoadFile reads a roster file: either a JSON array of agent records or an
// object with an "agents" array (the browser's localStorage export).
func LoadFile(path string) ([]json.RawMessage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	b = bytes.TrimSpace(b)

	var raw []json.RawMessage
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Agents []json.RawMessage `json:"agents"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return nil, fmt.Errorf("parse agents file: %w", err)
		}
		raw = wrapped.Agents
	} else if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}

	if _, err := Parse(raw); err != nil {
		return nil, fmt.Errorf("agents file %s: %w", path, err)
	}
	return raw, nil
}
