package service

import (
	"context"
	"fmt"
	"time"

	"lys-mes/internal/domain"
)

// windowFactor 日历窗口 = 天数 * 7，保证不动点迭代有足够的日历覆盖
const windowFactor = 7

// ShiftByHoliday 计算避开假日后的完工时间
//
// 返回 d，使 (startDate, d] 内非假日天数等于 workdays。
// 日期按 startDate 所在时区的年月日比较，d 保留 startDate 的时分秒与时区。
// endDateHint 为上一次的完工时间（可为 nil），只影响日历窗口大小和迭代起点。
func ShiftByHoliday(ctx context.Context, provider CalendarProvider, startDate time.Time, workdays int, endDateHint *time.Time) (time.Time, error) {
	if workdays < 0 {
		return time.Time{}, fmt.Errorf("%w: workdays must be >= 0, got %d", ErrInvalidArgument, workdays)
	}

	hintDays := 0
	if endDateHint != nil {
		hintDays = daysBetween(startDate, *endDateHint)
		if hintDays < 0 {
			hintDays = 0
		}
	}

	deltaDays := workdays
	if hintDays > deltaDays {
		deltaDays = hintDays
	}
	window := deltaDays * windowFactor
	if window < windowFactor {
		window = windowFactor
	}

	result, err := provider.GetCalendar(ctx, startDate, window)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	}
	if result == nil || !result.Status {
		return time.Time{}, fmt.Errorf("%w: provider returned status=false", ErrCalendarUnavailable)
	}

	holidays := make(map[string]struct{}, len(result.Data))
	for _, d := range result.Data {
		if d.IsHoliday {
			holidays[d.DateKey()] = struct{}{}
		}
	}

	// prefix[n] = (start, start+n] 内的假日数，n <= window；窗口外按工作日计
	prefix := make([]int, window+1)
	for n := 1; n <= window; n++ {
		prefix[n] = prefix[n-1]
		if _, ok := holidays[startDate.AddDate(0, 0, n).Format(domain.DateLayout)]; ok {
			prefix[n]++
		}
	}
	holidaysUpTo := func(n int) int {
		if n > window {
			n = window
		}
		return prefix[n]
	}

	// 不动点迭代：end = workdays + holidays(start, end]
	// holidaysUpTo 单调，迭代序列单调且落在 [workdays, workdays+window]，步数有界
	hint := hintDays
	maxIter := workdays + window + 1
	for i := 0; i < maxIter; i++ {
		c1 := holidaysUpTo(hint)
		newEnd := workdays + c1
		c2 := holidaysUpTo(newEnd)
		if c2 == c1 {
			return startDate.AddDate(0, 0, newEnd), nil
		}
		hint = newEnd
	}

	return time.Time{}, fmt.Errorf("holiday shift did not converge after %d iterations", maxIter)
}

// daysBetween to 与 from 相差的日历天数（按 from 所在时区的年月日）
func daysBetween(from, to time.Time) int {
	to = to.In(from.Location())
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
