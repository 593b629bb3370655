// Package commentary parses one NDJSON record from the orchestrate stream
// into a commentary Item.
package commentary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// UnknownSpeaker is used when a record has no speaker.
const UnknownSpeaker = "unknown"

// DefaultTeamLabel matches the backend's fallback for agents without a team.
const DefaultTeamLabel = "samsung"

var (
	// ErrMalformed means the line is not valid JSON, even after repair.
	ErrMalformed = errors.New("malformed record")

	// ErrNotRecord means the line is valid JSON but not an object.
	ErrNotRecord = errors.New("not a record")
)

// Item is one line of agent chat. Team is an untrusted label; it is only
// turned into a team ID by the pacer's resolver.
type Item struct {
	Speaker string
	Text    string
	Team    string
}

// ParseError describes a line that could not be parsed.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse commentary line %q: %v", truncate(e.Line, 80), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser decodes records. The zero value is usable: repair disabled and
// the package default team label.
type Parser struct {
	// DefaultTeam replaces a missing or empty team field.
	DefaultTeam string

	// Repair runs lines that look like objects through jsonrepair when
	// strict decoding fails, which recovers truncated model output.
	Repair bool
}

// NewParser returns a parser with repair enabled.
func NewParser(defaultTeam string) *Parser {
	if defaultTeam == "" {
		defaultTeam = DefaultTeamLabel
	}
	return &Parser{DefaultTeam: defaultTeam, Repair: true}
}

// record uses pointers so absent fields can be told apart from empty ones.
type record struct {
	Speaker *string `json:"speaker"`
	Text    *string `json:"text"`
	Team    *string `json:"team"`
}

// Parse decodes one trimmed, non-empty line.
func (p *Parser) Parse(line string) (Item, error) {
	raw := []byte(strings.TrimSpace(line))
	if len(raw) == 0 {
		return Item{}, &ParseError{Line: line, Err: ErrMalformed}
	}

	rec, err := decode(raw)
	if err != nil && p.Repair && raw[0] == '{' {
		if fixed, rerr := jsonrepair.JSONRepair(string(raw)); rerr == nil {
			if repaired, derr := decode([]byte(fixed)); derr == nil && (repaired.Speaker != nil || repaired.Text != nil) {
				// A repaired line must still carry one of the record fields;
				// otherwise repair has only invented structure around noise.
				rec, err = repaired, nil
			}
		}
	}
	if err != nil {
		return Item{}, &ParseError{Line: line, Err: err}
	}

	item := Item{
		Speaker: UnknownSpeaker,
		Team:    p.defaultTeam(),
	}
	if rec.Speaker != nil && strings.TrimSpace(*rec.Speaker) != "" {
		item.Speaker = strings.TrimSpace(*rec.Speaker)
	}
	if rec.Text != nil {
		item.Text = *rec.Text
	}
	if rec.Team != nil && strings.TrimSpace(*rec.Team) != "" {
		item.Team = strings.TrimSpace(*rec.Team)
	}
	return item, nil
}

func (p *Parser) defaultTeam() string {
	if p.DefaultTeam == "" {
		return DefaultTeamLabel
	}
	return p.DefaultTeam
}

func decode(raw []byte) (record, error) {
	var rec record
	if !json.Valid(raw) {
		return rec, ErrMalformed
	}
	if raw = bytes.TrimSpace(raw); len(raw) == 0 || raw[0] != '{' {
		return rec, ErrNotRecord
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Valid JSON object whose fields have the wrong types.
		return rec, fmt.Errorf("%w: %v", ErrNotRecord, err)
	}
	return rec, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
