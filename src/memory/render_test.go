package memory

import (
	"strings"
	"testing"

	"github.com/plana-bot/plana/src/llm/core"
	"github.com/stretchr/testify/assert"
)

func TestRenderTranscript(t *testing.T) {
	turns := []core.Turn{
		{Role: core.RoleUser, Parts: []core.ContentPart{
			core.TextPart("here is a picture"),
			core.BlobPart("image/jpeg", []byte{1, 2, 3}),
		}},
		textTurn(core.RoleModel, "A fine picture."),
		{Role: core.RoleUser},
	}

	got := RenderTranscript(turns)
	assert.Equal(t, "User: here is a picture [image/jpeg attachment]\nModel: A fine picture.", got)
}

func TestRenderTranscriptTruncatesLongEntries(t *testing.T) {
	long := strings.Repeat("あ", 600)
	got := RenderTranscript([]core.Turn{textTurn(core.RoleUser, long)})

	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "User: "+strings.Repeat("あ", 500)+"...", got)
}

func TestRenderTranscriptEmpty(t *testing.T) {
	assert.Equal(t, "", RenderTranscript(nil))
	assert.Equal(t, "", RenderTranscript([]core.Turn{{Role: core.RoleModel}}))
}
