package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	"lys-mes/internal/repository"
)

var (
	// ErrCalendarUnavailable 日历服务 I/O 失败或返回 status=false
	ErrCalendarUnavailable = errors.New("calendar unavailable")
	// ErrScheduleNotFound 排程或生产段不存在
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrMachineNotFound 机台不存在
	ErrMachineNotFound = errors.New("machine not found")
	// ErrInvalidCapacity 时产能 <= 0
	ErrInvalidCapacity = errors.New("invalid hourly capacity")
	// ErrNotifierUnavailable SmartSchedule 通知失败（只记录，不回滚）
	ErrNotifierUnavailable = errors.New("smart schedule notifier unavailable")
	// ErrRunAlreadyOpen 排程已有未结束的生产段
	ErrRunAlreadyOpen = errors.New("production schedule already running")
	// ErrRunClosed 生产段已结束
	ErrRunClosed = errors.New("run already closed")
	// ErrScheduleFinished 排程已完工
	ErrScheduleFinished = errors.New("production schedule finished")
	// ErrInvalidArgument 参数错误
	ErrInvalidArgument = errors.New("invalid argument")
)

// 错误类型，HTTP 失败响应里的 kind
const (
	KindCalendarUnavailable = "CalendarUnavailable"
	KindScheduleNotFound    = "ScheduleNotFound"
	KindMachineNotFound     = "MachineNotFound"
	KindInvalidCapacity     = "InvalidCapacity"
	KindNotifierUnavailable = "NotifierUnavailable"
	KindRunAlreadyOpen      = "RunAlreadyOpen"
	KindRunClosed           = "RunClosed"
	KindScheduleFinished    = "ScheduleFinished"
	KindInvalidArgument     = "InvalidArgument"
	KindInternal            = "Internal"
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrCalendarUnavailable, KindCalendarUnavailable},
	{ErrScheduleNotFound, KindScheduleNotFound},
	{ErrMachineNotFound, KindMachineNotFound},
	{ErrInvalidCapacity, KindInvalidCapacity},
	{ErrNotifierUnavailable, KindNotifierUnavailable},
	{ErrRunAlreadyOpen, KindRunAlreadyOpen},
	{ErrRunClosed, KindRunClosed},
	{ErrScheduleFinished, KindScheduleFinished},
	{ErrInvalidArgument, KindInvalidArgument},
}

// ErrorKind 返回错误类型；nil 返回空串，未知错误返回 Internal
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsRetryable 超时导致的失败可以重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// scheduleErr 把 repository 的错误映射为服务层错误
func scheduleErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrScheduleNotFound, err)
	case errors.Is(err, repository.ErrOpenRunExists):
		return fmt.Errorf("%w: %w", ErrRunAlreadyOpen, err)
	case errors.Is(err, repository.ErrRunClosed):
		return fmt.Errorf("%w: %w", ErrRunClosed, err)
	case errors.Is(err, repository.ErrRunOutOfOrder):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return err
}
