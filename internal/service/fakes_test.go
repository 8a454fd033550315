package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

type notifyCall struct {
	Kind         string
	ScheduleID   int64
	EndTime      time.Time
	StartTime    time.Time
	PostponeTime time.Time
}

// fakeNotifier 记录调用；fail 为 true 时返回 ErrNotifierUnavailable
type fakeNotifier struct {
	mu    sync.Mutex
	fail  bool
	calls []notifyCall
}

func (f *fakeNotifier) UpdateByEndTime(ctx context.Context, scheduleID int64, endTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{Kind: NotificationUpdateByEndTime, ScheduleID: scheduleID, EndTime: endTime})
	if f.fail {
		return errors.Join(ErrNotifierUnavailable, errors.New("connection refused"))
	}
	return nil
}

func (f *fakeNotifier) UpdateByResumption(ctx context.Context, scheduleID int64, startTime, postponeTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{Kind: NotificationUpdateByResumption, ScheduleID: scheduleID, StartTime: startTime, PostponeTime: postponeTime})
	if f.fail {
		return errors.Join(ErrNotifierUnavailable, errors.New("connection refused"))
	}
	return nil
}

func (f *fakeNotifier) Calls() []notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifyCall(nil), f.calls...)
}
