package match_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mjw/volconv/match"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "match.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseRange(t *testing.T) {
	cases := []struct {
		text     string
		wantLo   *int
		wantHi   *int
	}{
		{"5", intp(5), intp(5)},
		{"2-3", intp(2), intp(3)},
		{"4-", intp(4), nil},
		{"-9", nil, intp(9)},
	}
	for _, c := range cases {
		r, err := match.ParseRange(c.text)
		require.NoError(t, err, c.text)
		require.Equal(t, c.wantLo, r.Lo, c.text)
		require.Equal(t, c.wantHi, r.Hi, c.text)
	}
}

func intp(v int) *int { return &v }

func TestFindMatchesFirstHitWins(t *testing.T) {
	path := writeConfig(t, `
[t2]
pattern=t2

[flair]
pattern=flair
`)
	m, err := match.Load(path)
	require.NoError(t, err)

	list := []match.SeriesInfo{
		{StudyNo: "1", StudyName: "a", SeriesNo: "1", Desc: "AX T2 FLAIR", StudyDate: "20240101", StudyTime: "100000"},
		{StudyNo: "1", StudyName: "a", SeriesNo: "2", Desc: "AX FLAIR", StudyDate: "20240101", StudyTime: "100100"},
	}
	require.NoError(t, m.FindMatches(list))

	alias, _, ok := m.Match("1", "a", "1")
	require.True(t, ok)
	require.Equal(t, "t2", alias) // t2 declared first, matches first

	alias, _, ok = m.Match("1", "a", "2")
	require.True(t, ok)
	require.Equal(t, "flair", alias)
}

func TestFindMatchesSeriesRange(t *testing.T) {
	path := writeConfig(t, `
[early]
series=1-2
`)
	m, err := match.Load(path)
	require.NoError(t, err)

	list := []match.SeriesInfo{
		{StudyNo: "1", StudyName: "a", SeriesNo: "1", StudyDate: "20240101", StudyTime: "100000"},
		{StudyNo: "1", StudyName: "a", SeriesNo: "5", StudyDate: "20240101", StudyTime: "100100"},
	}
	require.NoError(t, m.FindMatches(list))

	_, _, ok := m.Match("1", "a", "1")
	require.True(t, ok)
	_, _, ok = m.Match("1", "a", "5")
	require.False(t, ok)
}

func TestMatchUnmatchedSeriesReturnsFalse(t *testing.T) {
	path := writeConfig(t, `
[x]
pattern=nevermatches
`)
	m, err := match.Load(path)
	require.NoError(t, err)
	require.NoError(t, m.FindMatches([]match.SeriesInfo{
		{StudyNo: "1", StudyName: "a", SeriesNo: "1", Desc: "AX T2", StudyDate: "20240101", StudyTime: "100000"},
	}))

	_, _, ok := m.Match("1", "a", "1")
	require.False(t, ok)
}
