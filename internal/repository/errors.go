package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrOpenRunExists 排程已有一段未结束的生产
	ErrOpenRunExists = errors.New("production schedule already has an open run")
	// ErrRunClosed 生产段已结束，不能再次结束或重开
	ErrRunClosed = errors.New("run already closed")
	// ErrRunOutOfOrder 新段开始时间早于上一段的结束（或未结束段的开始）
	ErrRunOutOfOrder = errors.New("run starts before previous run")
)

// pq 错误码：unique_violation / foreign_key_violation
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isPQError(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

// IsNotFound 是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
