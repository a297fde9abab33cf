package games

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/luckyreel/rotation"
)

const fivePool = `{"gamesPool": [
  {"id": "a", "title": "3 China Pots", "image": "images/3-china-pots.jpg", "recentWin": {"amount": "$12,450", "player": "Lucky***Dragon", "comment": "Three pots opened!"}},
  {"id": "b", "title": "Fortune Dragon", "image": "images/5-fortune-dragon.jpg", "recentWin": {"amount": "$18,750", "player": "Fortune***King", "comment": "Dragon blessed me"}},
  {"id": "c", "title": "777 Coins", "image": "images/777-coins.jpg", "recentWin": {"amount": "$25,680", "player": "Triple***Seven", "comment": "Jackpot"}},
  {"id": "d", "title": "African Wildlife", "image": "images/african-wildlife.jpg", "recentWin": {"amount": "$8,920", "player": "Safari***Hunter", "comment": "Wild wins"}},
  {"id": "e", "title": "Alien Smash", "image": "images/alien-smash.jpg", "recentWin": {"amount": "$15,300", "player": "Space***Warrior", "comment": "Out of this world"}}
]}`

func writePool(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "games-data.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writePool(t, t.TempDir(), fivePool)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, path, p.Path())

	e, ok := p.Find("c")
	require.True(t, ok)
	assert.Equal(t, "777 Coins", e.Title)
	assert.Equal(t, "$25,680", e.RecentWin.Amount)

	_, ok = p.Find("zzz")
	assert.False(t, ok)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"gamesPool": [`},
		{"missing id", `{"gamesPool": [{"title": "x"}]}`},
		{"duplicate id", `{"gamesPool": [{"id": "a"}, {"id": "a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writePool(t, t.TempDir(), tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadDuplicateIsTyped(t *testing.T) {
	_, err := Load(writePool(t, t.TempDir(), `{"gamesPool": [{"id": "a"}, {"id": "a"}]}`))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestDaily(t *testing.T) {
	p, err := Load(writePool(t, t.TempDir(), fivePool))
	require.NoError(t, err)

	now := time.UnixMilli(7*rotation.DayMillis + 1000)
	sel := p.Daily(3, now)

	assert.Equal(t, int64(7), sel.DayIndex)
	assert.Equal(t, 2, sel.StartIndex)
	require.Len(t, sel.Games, 3)
	assert.Equal(t, []string{"c", "d", "e"}, []string{sel.Games[0].ID, sel.Games[1].ID, sel.Games[2].ID})
}

func TestDailyEmptyPool(t *testing.T) {
	sel := NewStatic(nil).Daily(3, time.Now())
	assert.Empty(t, sel.Games)
	assert.Equal(t, 0, sel.StartIndex)
}

func TestStatus(t *testing.T) {
	path := writePool(t, t.TempDir(), fivePool)
	p, err := Load(path)
	require.NoError(t, err)

	st := p.Status(3, time.UnixMilli(7*rotation.DayMillis))
	assert.Equal(t, 5, st.TotalGames)
	assert.Equal(t, 3, st.DailyCount)
	assert.Equal(t, int64(7), st.DayIndex)
	assert.Equal(t, 2, st.StartIndex)
	assert.Equal(t, path, st.PoolPath)
	assert.False(t, st.LoadedAt.IsZero())

	assert.Equal(t, 0, NewStatic(nil).Status(3, time.Now()).DailyCount)
}

func TestEntriesIsACopy(t *testing.T) {
	p := NewStatic([]Entry{{ID: "a"}, {ID: "b"}})
	got := p.Entries()
	got[0].ID = "changed"
	assert.Equal(t, "a", p.Entries()[0].ID)
}

func TestReloadKeepsSnapshotOnError(t *testing.T) {
	dir := t.TempDir()
	path := writePool(t, dir, fivePool)
	p, err := Load(path)
	require.NoError(t, err)

	writePool(t, dir, `not json`)
	assert.Error(t, p.Reload())
	assert.Equal(t, 5, p.Len())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writePool(t, dir, fivePool)
	p, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		// Rewrite until the watcher is registered and picks it up.
		_ = os.WriteFile(path, []byte(`{"gamesPool": [{"id": "solo", "title": "Solo"}]}`), 0o644)
		return p.Len() == 1
	}, 5*time.Second, 50*time.Millisecond)

	e, ok := p.Find("solo")
	require.True(t, ok)
	assert.Equal(t, "Solo", e.Title)
}

func TestWatchStaticPool(t *testing.T) {
	assert.Error(t, NewStatic(nil).Watch(context.Background()))
}

func TestDailyVideo(t *testing.T) {
	ids := []string{"v0", "v1", "v2"}
	assert.Equal(t, "v1", DailyVideo(ids, time.UnixMilli(4*rotation.DayMillis)))
	assert.Equal(t, "", DailyVideo(nil, time.Now()))
	assert.Equal(t, "https://www.youtube-nocookie.com/embed/E7He8psjoJ8?rel=0&modestbranding=1", EmbedURL("E7He8psjoJ8"))
}
