package constants

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActivityDefaults(t *testing.T) {
	assert.InDelta(t, 0.0, DefaultActivityDelay, 0)
	assert.Equal(t, 1, DefaultActivityRepeat)
	assert.Equal(t, 0, InfiniteRepeat)
	assert.Equal(t, "activity", DefaultActivityLabel)
}

func TestGrammarTokens(t *testing.T) {
	assert.Equal(t, "notifications.", NotificationPathPrefix)
	assert.Equal(t, ":", PathValueSeparator)
	assert.Equal(t, "normal", DefaultNotificationOnState)
}

func TestRuntimeDefaults(t *testing.T) {
	t.Run("watch max wait exceeds debounce", func(t *testing.T) {
		assert.Greater(t, DefaultWatchMaxWait, DefaultWatchDebounce)
	})

	t.Run("shutdown timeout allows flushing", func(t *testing.T) {
		assert.GreaterOrEqual(t, DefaultShutdownTimeout, time.Second)
	})

	t.Run("event buffer is positive", func(t *testing.T) {
		assert.Positive(t, SequencerEventBuffer)
	})
}
