package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lys-mes/internal/domain"
	"lys-mes/internal/repository"
	"lys-mes/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CalendarResult 日历查询结果；Status=false 表示查询失败
type CalendarResult struct {
	Status bool                 `json:"status"`
	Data   []domain.CalendarDay `json:"data"`
}

// CalendarProvider 按 [startDate, startDate+windowDays) 提供日历
type CalendarProvider interface {
	GetCalendar(ctx context.Context, startDate time.Time, windowDays int) (*CalendarResult, error)
}

// repoCalendarProvider 直接查 calendar 表
type repoCalendarProvider struct {
	repo    repository.CalendarRepository
	timeout time.Duration
}

// NewRepoCalendarProvider 创建基于 Repository 的日历 Provider；timeout <= 0 表示不额外限时
func NewRepoCalendarProvider(repo repository.CalendarRepository, timeout time.Duration) CalendarProvider {
	return &repoCalendarProvider{repo: repo, timeout: timeout}
}

func (p *repoCalendarProvider) GetCalendar(ctx context.Context, startDate time.Time, windowDays int) (*CalendarResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	days, err := p.repo.ListCalendar(ctx, startDate, windowDays)
	if err != nil {
		return &CalendarResult{Status: false}, err
	}
	return &CalendarResult{Status: true, Data: days}, nil
}

// CalendarWindowKeyPattern 日历窗口缓存 key 的匹配模式
const CalendarWindowKeyPattern = "calendar:window:*"

func calendarWindowKey(startDate time.Time, windowDays int) string {
	return fmt.Sprintf("calendar:window:%s:%d", startDate.Format(domain.DateLayout), windowDays)
}

const defaultCalendarLoadTimeout = 10 * time.Second

// CachedCalendarProvider Redis 缓存的日历 Provider
// 同一窗口的并发未命中经 singleflight 合并为一次下游查询；缓存故障时直接查下游。
// 合并后的查询不跟随任何一个调用方的 ctx 取消，只受 loadTimeout 限制
type CachedCalendarProvider struct {
	next        CalendarProvider
	kv          store.KV
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
	logger      *zap.Logger
}

// NewCachedCalendarProvider 创建带缓存的日历 Provider；loadTimeout <= 0 时取 10s
func NewCachedCalendarProvider(next CalendarProvider, kv store.KV, ttl, loadTimeout time.Duration, logger *zap.Logger) *CachedCalendarProvider {
	if loadTimeout <= 0 {
		loadTimeout = defaultCalendarLoadTimeout
	}
	return &CachedCalendarProvider{
		next:        next,
		kv:          kv,
		ttl:         ttl,
		loadTimeout: loadTimeout,
		logger:      logger,
	}
}

var _ CalendarProvider = (*CachedCalendarProvider)(nil)

func (p *CachedCalendarProvider) GetCalendar(ctx context.Context, startDate time.Time, windowDays int) (*CalendarResult, error) {
	key := calendarWindowKey(startDate, windowDays)

	raw, err := p.kv.Get(ctx, key)
	if err == nil {
		var cached CalendarResult
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
		p.logger.Warn("Invalid cached calendar window, reloading", zap.String("key", key))
	} else if !errors.Is(err, store.ErrMiss) {
		p.logger.Warn("Calendar cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.loadTimeout)
		defer cancel()

		result, err := p.next.GetCalendar(loadCtx, startDate, windowDays)
		if err != nil || result == nil || !result.Status {
			return result, err
		}
		if b, mErr := json.Marshal(result); mErr == nil {
			if sErr := p.kv.Set(loadCtx, key, string(b), p.ttl); sErr != nil {
				p.logger.Warn("Calendar cache write failed", zap.String("key", key), zap.Error(sErr))
			}
		}
		return result, nil
	})
	if v == nil {
		return nil, err
	}
	return v.(*CalendarResult), err
}

// Invalidate 清空全部日历窗口缓存
func (p *CachedCalendarProvider) Invalidate(ctx context.Context) error {
	n, err := store.DeletePattern(ctx, p.kv, CalendarWindowKeyPattern)
	if err != nil {
		return fmt.Errorf("failed to invalidate calendar cache: %w", err)
	}
	p.logger.Debug("Calendar cache invalidated", zap.Int("keys", n))
	return nil
}
