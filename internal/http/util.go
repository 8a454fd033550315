package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lys-mes/internal/domain"
	"lys-mes/internal/service"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError 失败统一返回 HTTP 200 + kind
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	kind := service.ErrorKind(err)
	if kind == service.KindInternal {
		logger.Error(op+" failed", zap.Error(err))
	} else {
		logger.Warn(op+" failed", zap.String("kind", kind), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, FailKind(err.Error(), kind, service.IsRetryable(err)))
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, FailKind(message, service.KindInvalidArgument, false))
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// parseTimeParam 接受 RFC 3339（带时区）或 YYYY-MM-DD（按 UTC）
func parseTimeParam(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339 or YYYY-MM-DD", s)
}

// splitPath 去掉前缀后按 / 切分，例如 "/a/b/12/start" 去掉 "/a/b/" 得到 ["12", "start"]
func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
