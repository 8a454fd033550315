package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHourlyAndDailyCapacity(t *testing.T) {
	assert.Equal(t, int64(120), HourlyCapacity(30))
	assert.Equal(t, int64(110), HourlyCapacity(32.5)) // 110.76 -> 110
	assert.Equal(t, int64(0), HourlyCapacity(0))
	assert.Equal(t, int64(0), HourlyCapacity(-5))

	assert.Equal(t, int64(2880), DailyCapacity(120))
}

func TestWorkDays_Ceil(t *testing.T) {
	assert.Equal(t, 4, WorkDays(10000, 2880)) // 3.47 -> 4
	assert.Equal(t, 1, WorkDays(2880, 2880))
	assert.Equal(t, 0, WorkDays(100, 0))
	assert.Equal(t, 0, WorkDays(0, 2880))
}

func TestPostponeHours_Round(t *testing.T) {
	assert.Equal(t, int64(4), PostponeHours(100, 25))
	// 银行家舍入：2.5 -> 2, 3.5 -> 4
	assert.Equal(t, int64(2), PostponeHours(5, 2))
	assert.Equal(t, int64(4), PostponeHours(7, 2))
	// 0.4 -> 0，ceil 会得到 1
	assert.Equal(t, int64(0), PostponeHours(2, 5))
	assert.Equal(t, int64(0), PostponeHours(100, 0))
}

func TestPostponeTime(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600))
	got := PostponeTime(now, 100, 25)
	assert.Equal(t, time.Date(2024, 6, 1, 4, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestScheduleStatus(t *testing.T) {
	assert.True(t, ScheduleStatusPaused.Valid())
	assert.False(t, ScheduleStatus("unknown").Valid())
	assert.True(t, ScheduleStatusDelayedFinished.Terminal())
	assert.False(t, ScheduleStatusOnGoing.Terminal())
}
