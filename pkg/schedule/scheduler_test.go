package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateAtSchedule(t *testing.T) {
	t.Run("valid ISO 8601 timestamp", func(t *testing.T) {
		schedule := Schedule{
			Kind: KindAt,
			At:   "2026-12-25T14:00:00Z",
		}

		nextRun, err := CalculateNextRun(schedule)
		require.NoError(t, err)

		expected := time.Date(2026, 12, 25, 14, 0, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, expected, nextRun)
	})

	t.Run("invalid timestamp", func(t *testing.T) {
		schedule := Schedule{Kind: KindAt, At: "invalid"}

		_, err := CalculateNextRun(schedule)
		assert.ErrorContains(t, err, "invalid timestamp")
	})

	t.Run("missing at field", func(t *testing.T) {
		schedule := Schedule{Kind: KindAt}

		_, err := CalculateNextRun(schedule)
		assert.ErrorContains(t, err, "requires 'at' field")
	})
}

func TestCalculateEverySchedule(t *testing.T) {
	t.Run("without anchor", func(t *testing.T) {
		schedule := Schedule{Kind: KindEvery, EveryMs: 60000}

		before := time.Now().UnixMilli()
		nextRun, err := CalculateNextRun(schedule)
		require.NoError(t, err)
		after := time.Now().UnixMilli()

		assert.GreaterOrEqual(t, nextRun, before+60000)
		assert.LessOrEqual(t, nextRun, after+60000)
	})

	t.Run("with anchor in past", func(t *testing.T) {
		now := time.Now().UnixMilli()
		anchor := now - 150000

		schedule := Schedule{Kind: KindEvery, EveryMs: 60000, AnchorMs: &anchor}

		nextRun, err := CalculateNextRun(schedule)
		require.NoError(t, err)

		// Aligned to the next interval boundary after now
		assert.Equal(t, anchor+180000, nextRun)
	})

	t.Run("with anchor in future", func(t *testing.T) {
		anchor := time.Now().UnixMilli() + 60000

		schedule := Schedule{Kind: KindEvery, EveryMs: 60000, AnchorMs: &anchor}

		nextRun, err := CalculateNextRun(schedule)
		require.NoError(t, err)
		assert.Equal(t, anchor, nextRun)
	})

	t.Run("non-positive interval", func(t *testing.T) {
		for _, everyMs := range []int64{0, -1000} {
			schedule := Schedule{Kind: KindEvery, EveryMs: everyMs}

			_, err := CalculateNextRun(schedule)
			assert.ErrorContains(t, err, "positive 'everyMs'")
		}
	})
}

func TestCalculateCronSchedule(t *testing.T) {
	t.Run("every hour", func(t *testing.T) {
		schedule := Schedule{Kind: KindCron, Expr: "0 * * * *"}

		nextRun, err := CalculateNextRun(schedule)
		require.NoError(t, err)

		assert.Greater(t, nextRun, time.Now().UnixMilli())
		assert.Equal(t, 0, time.UnixMilli(nextRun).Minute())
	})

	t.Run("with timezone", func(t *testing.T) {
		schedule := Schedule{Kind: KindCron, Expr: "0 9 * * *", TZ: "America/New_York"}

		nextRun, err := CalculateNextRun(schedule)
		require.NoError(t, err)

		loc, _ := time.LoadLocation("America/New_York")
		assert.Equal(t, 9, time.UnixMilli(nextRun).In(loc).Hour())
	})

	t.Run("invalid cron expression", func(t *testing.T) {
		schedule := Schedule{Kind: KindCron, Expr: "invalid"}

		_, err := CalculateNextRun(schedule)
		assert.ErrorContains(t, err, "invalid cron expression")
	})

	t.Run("invalid timezone", func(t *testing.T) {
		schedule := Schedule{Kind: KindCron, Expr: "0 9 * * *", TZ: "Invalid/Timezone"}

		_, err := CalculateNextRun(schedule)
		assert.ErrorContains(t, err, "invalid timezone")
	})

	t.Run("missing expr field", func(t *testing.T) {
		schedule := Schedule{Kind: KindCron}

		_, err := CalculateNextRun(schedule)
		assert.ErrorContains(t, err, "requires 'expr' field")
	})
}

func TestCalculateNextRunUnknownKind(t *testing.T) {
	_, err := CalculateNextRun(Schedule{Kind: "unknown"})
	assert.ErrorContains(t, err, "unknown schedule kind")
}
