package timers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRejectsOutOfRangeMinutes(t *testing.T) {
	// Validation runs before any store access, so no Redis is needed.
	svc := New(Config{})
	for name, minutes := range map[string]int{
		"zero":      0,
		"negative":  -5,
		"one over":  MaxMinutes + 1,
		"way over":  100000,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Schedule(context.Background(), "chan", "user", minutes, "note")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of range")
		})
	}
}

func TestFireMessageMentionsUserAndNote(t *testing.T) {
	msg := fireMessage("123", "stand-up meeting", "")
	assert.Equal(t, "<@123> Time is up.\nTimer note: 「stand-up meeting」", msg)
}

func TestFireMessageAppendsFlavor(t *testing.T) {
	msg := fireMessage("123", "tea", "…The kettle should be ready, Sensei.")
	assert.True(t, strings.HasSuffix(msg, "\n…The kettle should be ready, Sensei."))
}

func TestFireMessageTruncatesLongFlavor(t *testing.T) {
	msg := fireMessage("123", "tea", strings.Repeat("あ", maxFlavorRunes+50))
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.LessOrEqual(t, len([]rune(msg)), maxFlavorRunes+64)
}
