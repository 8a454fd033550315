package httpapi

// Result 统一响应格式
// - code: 2000 成功，-1 失败
// - type: 'success' | 'error'
// - message: string
// - result: any（失败时为 {"kind": ..., "retryable": ...}）
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

// ErrorDetail 失败响应的 result
type ErrorDetail struct {
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// FailKind 带错误类型的失败响应
func FailKind(message, kind string, retryable bool) Result[ErrorDetail] {
	return Result[ErrorDetail]{
		Code:    ResultError,
		Type:    "error",
		Message: message,
		Result:  ErrorDetail{Kind: kind, Retryable: retryable},
	}
}
