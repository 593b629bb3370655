package team

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	rec, ok := Lookup("HT")
	require.True(t, ok)
	assert.Equal(t, "Kia Tigers", rec.DisplayName)

	_, ok = Lookup("XX")
	assert.False(t, ok)

	_, ok = Lookup(DefaultID)
	assert.True(t, ok, "default team must exist")
}

func TestKBOIsComplete(t *testing.T) {
	assert.Len(t, KBO, 10)
	seen := map[string]bool{}
	for _, r := range KBO {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
		assert.NotEmpty(t, r.DisplayName)
		assert.NotEmpty(t, r.ColorToken)
	}
}

func TestParseGameID(t *testing.T) {
	g, err := ParseGameID("250523_HTSS")
	require.NoError(t, err)
	assert.Equal(t, Game{ID: "250523_HTSS", Date: "250523", Home: "HT", Away: "SS"}, g)

	g, err = ParseGameID("250601_LGOB_replay")
	require.NoError(t, err)
	assert.Equal(t, "250601_LGOB", g.ID)
	assert.Equal(t, "LG", g.Home)
	assert.Equal(t, "OB", g.Away)
}

func TestParseGameIDInvalid(t *testing.T) {
	for _, id := range []string{"", "250523", "250523_HT", "250523_XXSS", "250523_HTZZ"} {
		_, err := ParseGameID(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "kiatigers", Normalize("Kia Tigers!"))
	assert.Equal(t, "kt_wiz", Normalize(" KT_Wiz "))
	assert.Equal(t, "삼성라이온즈", Normalize("삼성 라이온즈"))
	assert.Equal(t, "", Normalize(" -- "))
}

func TestResolve(t *testing.T) {
	r := NewResolver(nil)
	tests := []struct {
		label string
		want  string
	}{
		{"HT", "HT"},
		{"kia", "HT"},
		{"Kia Tigers", "HT"},
		{"KIAS", "HT"},
		{"samsung", "SS"},
		{"Samsung Lions", "SS"},
		{"삼성", "SS"},
		{"Hanwha", "HH"},
		{"LG Twins", "LG"},
		{"doosan bears", "OB"},
		{"Kiwoom Heroes", "WO"},
		{"ssg", "SK"},
		{"kt wiz", "KT"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := r.Resolve(tt.label)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewResolver(nil)
	for _, label := range []string{"", "   ", "!!", "yankees"} {
		_, ok := r.Resolve(label)
		assert.False(t, ok, "label %q", label)
	}
}

func TestResolveFirstRecordWins(t *testing.T) {
	// "ssg" starts with Samsung's "ss" key; table order decides.
	got, ok := NewResolver(nil).Resolve("ssg")
	require.True(t, ok)
	assert.Equal(t, "SK", got)

	swapped := NewResolver([]Record{KBO[4], KBO[1]})
	got, ok = swapped.Resolve("ssg")
	require.True(t, ok)
	assert.Equal(t, "SS", got)
}

func TestResolveOr(t *testing.T) {
	r := NewResolver(nil)
	assert.Equal(t, "LT", r.ResolveOr("lotte"))
	assert.Equal(t, "OB", r.ResolveOr("???", "OB", "HT"))
	assert.Equal(t, "HT", r.ResolveOr("???", "nope", "Kia Tigers"))
	assert.Equal(t, DefaultID, r.ResolveOr("???"))
	assert.Equal(t, DefaultID, r.ResolveOr("", "", ""))
}

func TestResolverRecord(t *testing.T) {
	r := NewResolver(nil)
	rec, ok := r.Record("NC")
	require.True(t, ok)
	assert.Equal(t, "NC Dinos", rec.DisplayName)

	_, ok = r.Record("XX")
	assert.False(t, ok)
}
