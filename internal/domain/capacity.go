package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	secondsPerHour = decimal.NewFromInt(3600)
	hoursPerDay    = decimal.NewFromInt(24)
)

// HourlyCapacity 时产能 = floor(3600 / 成型秒数)；成型秒数 <= 0 时为 0
func HourlyCapacity(moldingSecond float64) int64 {
	ms := decimal.NewFromFloat(moldingSecond)
	if !ms.IsPositive() {
		return 0
	}
	return secondsPerHour.Div(ms).Floor().IntPart()
}

// DailyCapacity 日产能 = 时产能 * 24
func DailyCapacity(hourly int64) int64 {
	return decimal.NewFromInt(hourly).Mul(hoursPerDay).Ceil().IntPart()
}

// WorkDays 需要的工作日 = ceil(数量 / 日产能)；日产能 <= 0 时为 0
func WorkDays(quantity, daily int64) int {
	if daily <= 0 || quantity <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(quantity).Div(decimal.NewFromInt(daily)).Ceil().IntPart())
}

// PostponeHours 剩余生产时数 = round(未完成数量 / 时产能)
// 与 WorkDays 不同，这里沿用 round（银行家舍入），不是 ceil
func PostponeHours(unfinished, hourly int64) int64 {
	if hourly <= 0 {
		return 0
	}
	return decimal.NewFromInt(unfinished).Div(decimal.NewFromInt(hourly)).RoundBank(0).IntPart()
}

// PostponeTime now(UTC) + PostponeHours 小时
func PostponeTime(now time.Time, unfinished, hourly int64) time.Time {
	return now.UTC().Add(time.Duration(PostponeHours(unfinished, hourly)) * time.Hour)
}
