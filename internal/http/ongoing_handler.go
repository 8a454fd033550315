package httpapi

import (
	"net/http"

	"lys-mes/internal/service"

	"go.uber.org/zap"
)

const ongoingPrefix = "/api/v1/production-schedule-ongoing"

// OngoingHandler 生产段 Handler
type OngoingHandler struct {
	ongoingService service.OngoingService
	logger         *zap.Logger
}

// NewOngoingHandler 创建生产段 Handler
func NewOngoingHandler(ongoingService service.OngoingService, logger *zap.Logger) *OngoingHandler {
	return &OngoingHandler{
		ongoingService: ongoingService,
		logger:         logger,
	}
}

// ServeHTTP 路由分发
//
//	POST /api/v1/production-schedule-ongoing
//	PUT  /api/v1/production-schedule-ongoing/{id}           结束（body: endTime）
//	PUT  /api/v1/production-schedule-ongoing/{id}/postpone  重新计算预估完工
func (h *OngoingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, ongoingPrefix)
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.CreateRun(w, r)
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.withID(w, r, parts[0], h.CloseRun)
	case len(parts) == 2 && parts[1] == "postpone" && r.Method == http.MethodPut:
		h.withID(w, r, parts[0], h.RecomputePostpone)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *OngoingHandler) withID(w http.ResponseWriter, r *http.Request, raw string, next func(http.ResponseWriter, *http.Request, int64)) {
	id, ok := parseID(raw)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	next(w, r, id)
}

// CreateRun 新建生产段
func (h *OngoingHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRunRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	resp, err := h.ongoingService.CreateRun(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "CreateRun", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// CloseRun 结束生产段
func (h *OngoingHandler) CloseRun(w http.ResponseWriter, r *http.Request, id int64) {
	var req service.CloseRunRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	req.ID = id
	resp, err := h.ongoingService.CloseRun(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "CloseRun", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// RecomputePostpone 重新计算预估完工时间
func (h *OngoingHandler) RecomputePostpone(w http.ResponseWriter, r *http.Request, id int64) {
	var req service.RecomputePostponeRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	req.ID = id
	resp, err := h.ongoingService.RecomputePostpone(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "RecomputePostpone", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
