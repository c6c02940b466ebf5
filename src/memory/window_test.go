package memory

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/plana-bot/plana/src/llm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "plana.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func textTurn(role core.Role, text string) core.Turn {
	return core.Turn{Role: role, Parts: []core.ContentPart{core.TextPart(text)}}
}

func exchange(user, model string) []core.Turn {
	return []core.Turn{textTurn(core.RoleUser, user), textTurn(core.RoleModel, model)}
}

func turnTexts(turns []core.Turn) []string {
	out := make([]string, 0, len(turns))
	for _, turn := range turns {
		out = append(out, turn.JoinedText())
	}
	return out
}

func TestWindowKeepsNewestTurns(t *testing.T) {
	store, err := NewWindowStore(testDB(t), 2)
	require.NoError(t, err)

	var evicted []core.Turn
	store.OnEvict(func(channelID string, turns []core.Turn) {
		evicted = append(evicted, turns...)
	})

	require.NoError(t, store.Append("c1", exchange("q1", "a1")...))
	require.NoError(t, store.Append("c1", exchange("q2", "a2")...))
	assert.Empty(t, evicted)

	require.NoError(t, store.Append("c1", exchange("q3", "a3")...))

	got := store.Load("c1")
	assert.Equal(t, []string{"q2", "a2", "q3", "a3"}, turnTexts(got))
	assert.Equal(t, []string{"q1", "a1"}, turnTexts(evicted))
}

func TestWindowEvictsOldestInOneBatch(t *testing.T) {
	store, err := NewWindowStore(testDB(t), 2)
	require.NoError(t, err)

	var evicted []core.Turn
	store.OnEvict(func(channelID string, turns []core.Turn) {
		evicted = append(evicted, turns...)
	})

	var all []core.Turn
	for _, ex := range [][]string{{"q1", "a1"}, {"q2", "a2"}, {"q3", "a3"}, {"q4", "a4"}, {"q5", "a5"}} {
		all = append(all, exchange(ex[0], ex[1])...)
	}
	require.NoError(t, store.Append("c1", all...))

	got := store.Load("c1")
	assert.Equal(t, []string{"q4", "a4", "q5", "a5"}, turnTexts(got))
	assert.Equal(t, []string{"q1", "a1", "q2", "a2", "q3", "a3"}, turnTexts(evicted))
}

func TestWindowNothingLostOnTrim(t *testing.T) {
	store, err := NewWindowStore(testDB(t), 3)
	require.NoError(t, err)

	var evicted []core.Turn
	store.OnEvict(func(channelID string, turns []core.Turn) {
		evicted = append(evicted, turns...)
	})

	var want []string
	for i := 0; i < 10; i++ {
		q := "question " + string(rune('a'+i))
		a := "answer " + string(rune('a'+i))
		want = append(want, q, a)
		require.NoError(t, store.Append("c1", exchange(q, a)...))
	}

	got := append(turnTexts(evicted), turnTexts(store.Load("c1"))...)
	assert.Equal(t, want, got)
}

func TestWindowBlobRoundTrip(t *testing.T) {
	store, err := NewWindowStore(testDB(t), 2)
	require.NoError(t, err)

	img := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff}
	turn := core.Turn{Role: core.RoleUser, Parts: []core.ContentPart{
		core.TextPart("look at this"),
		core.BlobPart("image/png", img),
	}}
	require.NoError(t, store.Append("c1", turn, textTurn(core.RoleModel, "noted")))

	got := store.Load("c1")
	require.Len(t, got, 2)
	require.Len(t, got[0].Parts, 2)
	assert.Equal(t, "look at this", got[0].Parts[0].Text)
	require.True(t, got[0].Parts[1].IsBlob())
	assert.Equal(t, "image/png", got[0].Parts[1].Blob.MIMEType)
	assert.Equal(t, img, got[0].Parts[1].Blob.Data)
}

func TestWindowCorruptRecordResets(t *testing.T) {
	db := testDB(t)
	store, err := NewWindowStore(db, 2)
	require.NoError(t, err)

	require.NoError(t, db.Create(&ConversationRecord{ChannelID: "c1", Turns: "{definitely not json"}).Error)

	assert.Nil(t, store.Load("c1"))

	var rec ConversationRecord
	require.NoError(t, db.First(&rec, "channel_id = ?", "c1").Error)
	assert.Equal(t, "[]", rec.Turns)

	require.NoError(t, store.Append("c1", exchange("q1", "a1")...))
	assert.Equal(t, []string{"q1", "a1"}, turnTexts(store.Load("c1")))
}

func TestWindowDropsUnreadablePartsOnly(t *testing.T) {
	db := testDB(t)
	store, err := NewWindowStore(db, 2)
	require.NoError(t, err)

	stored := `[
		{"role":"user","parts":[{"text":"keep me"},{"inline_data":{"mime_type":"image/png","data":"%%%not-base64%%%"}}]},
		{"role":"model","parts":[{"what":"unknown shape"}]}
	]`
	require.NoError(t, db.Create(&ConversationRecord{ChannelID: "c1", Turns: stored}).Error)

	got := store.Load("c1")
	require.Len(t, got, 1)
	assert.Equal(t, core.RoleUser, got[0].Role)
	require.Len(t, got[0].Parts, 1)
	assert.Equal(t, "keep me", got[0].Parts[0].Text)
}

func TestWindowSkipsInvalidTurnsAtSave(t *testing.T) {
	store, err := NewWindowStore(testDB(t), 2)
	require.NoError(t, err)

	require.NoError(t, store.Append("c1",
		core.Turn{Role: core.RoleUser},
		core.Turn{Parts: []core.ContentPart{core.TextPart("no role")}},
		textTurn(core.RoleUser, "valid"),
	))

	assert.Equal(t, []string{"valid"}, turnTexts(store.Load("c1")))
}

func TestWindowResetIdempotent(t *testing.T) {
	store, err := NewWindowStore(testDB(t), 2)
	require.NoError(t, err)

	require.NoError(t, store.Append("c1", exchange("q1", "a1")...))
	require.NoError(t, store.Reset("c1"))
	assert.Nil(t, store.Load("c1"))

	require.NoError(t, store.Reset("c1"))
	require.NoError(t, store.Reset("never-existed"))
}

func TestWindowChannelsAreIsolated(t *testing.T) {
	store, err := NewWindowStore(testDB(t), 2)
	require.NoError(t, err)

	require.NoError(t, store.Append("c1", exchange("one", "uno")...))
	require.NoError(t, store.Append("c2", exchange("two", "dos")...))
	require.NoError(t, store.Reset("c1"))

	assert.Nil(t, store.Load("c1"))
	assert.Equal(t, []string{"two", "dos"}, turnTexts(store.Load("c2")))
}

// Concurrent exchanges may land in either order, but each exchange stays
// contiguous and nothing is dropped.
func TestWindowConcurrentAppendsStayPaired(t *testing.T) {
	store, err := NewWindowStore(testDB(t), 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, ex := range [][]string{{"q1", "a1"}, {"q2", "a2"}} {
		wg.Add(1)
		go func(q, a string) {
			defer wg.Done()
			assert.NoError(t, store.Append("c1", exchange(q, a)...))
		}(ex[0], ex[1])
	}
	wg.Wait()

	got := turnTexts(store.Load("c1"))
	require.Len(t, got, 4)
	assert.ElementsMatch(t, []string{"q1", "a1", "q2", "a2"}, got)
	for i := 0; i < len(got); i += 2 {
		q, a := got[i], got[i+1]
		assert.Equal(t, "q", q[:1])
		assert.Equal(t, "a", a[:1])
		assert.Equal(t, q[1:], a[1:])
	}
}
