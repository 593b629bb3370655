// Package team holds the static KBO team table and the fuzzy resolver that
// maps free-form team labels coming from the backend onto it.
package team

import (
	"fmt"
	"strings"
)

// DefaultID is the last-resort team when neither the label nor any fallback
// resolves. The backend uses the same default for agents without a team.
const DefaultID = "SS"

// Record is one canonical team.
type Record struct {
	ID          string
	DisplayName string
	ShortName   string
	ColorToken  string   // lipgloss colour (ANSI 256 index or hex)
	Aliases     []string // extra labels seen in agent data, e.g. Korean names
}

// KBO lists the league in the backend's TEAM_DICT order. Resolution walks
// this slice front to back, so the order is part of the matching contract.
var KBO = []Record{
	{ID: "HT", DisplayName: "Kia Tigers", ShortName: "Kia", ColorToken: "160", Aliases: []string{"기아", "타이거즈"}},
	{ID: "SK", DisplayName: "SSG Landers", ShortName: "SSG", ColorToken: "196", Aliases: []string{"랜더스"}},
	{ID: "HH", DisplayName: "Hanhwa Eagles", ShortName: "Hanhwa", ColorToken: "208", Aliases: []string{"Hanwha", "한화", "이글스"}},
	{ID: "LT", DisplayName: "Lotte Giants", ShortName: "Lotte", ColorToken: "25", Aliases: []string{"롯데", "자이언츠"}},
	{ID: "SS", DisplayName: "Samsung Lions", ShortName: "Samsung", ColorToken: "33", Aliases: []string{"삼성", "라이온즈"}},
	{ID: "NC", DisplayName: "NC Dinos", ShortName: "NC", ColorToken: "67", Aliases: []string{"다이노스"}},
	{ID: "LG", DisplayName: "LG Twins", ShortName: "LG", ColorToken: "161", Aliases: []string{"트윈스"}},
	{ID: "OB", DisplayName: "Doosan Bears", ShortName: "Doosan", ColorToken: "17", Aliases: []string{"두산", "베어스"}},
	{ID: "WO", DisplayName: "Kiwoom Heros", ShortName: "Kiwoom", ColorToken: "125", Aliases: []string{"Kiwoom Heroes", "키움", "히어로즈"}},
	{ID: "KT", DisplayName: "KT Wiz", ShortName: "KT", ColorToken: "240", Aliases: []string{"위즈"}},
}

// Lookup returns the record with the given ID.
func Lookup(id string) (Record, bool) {
	for _, r := range KBO {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Game identifies one broadcast, parsed from IDs like "250523_HTSS".
type Game struct {
	ID   string
	Date string // YYMMDD
	Home string
	Away string
}

// ParseGameID splits a backend game ID. The team pair is home first, away
// second; anything after a further underscore ("_HT_game") is ignored.
func ParseGameID(id string) (Game, error) {
	parts := strings.Split(id, "_")
	if len(parts) < 2 || len(parts[1]) < 4 {
		return Game{}, fmt.Errorf("invalid game id %q", id)
	}
	g := Game{
		ID:   parts[0] + "_" + parts[1],
		Date: parts[0],
		Home: parts[1][0:2],
		Away: parts[1][2:4],
	}
	if _, ok := Lookup(g.Home); !ok {
		return Game{}, fmt.Errorf("invalid game id %q: unknown home team %q", id, g.Home)
	}
	if _, ok := Lookup(g.Away); !ok {
		return Game{}, fmt.Errorf("invalid game id %q: unknown away team %q", id, g.Away)
	}
	return g, nil
}
