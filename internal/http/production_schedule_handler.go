package httpapi

import (
	"net/http"
	"strings"

	"lys-mes/internal/domain"
	"lys-mes/internal/service"

	"go.uber.org/zap"
)

const schedulesPrefix = "/api/v1/production-schedules"

// ProductionScheduleHandler 生产排程 Handler
type ProductionScheduleHandler struct {
	scheduleService service.ProductionScheduleService
	ongoingService  service.OngoingService
	logger          *zap.Logger
}

// NewProductionScheduleHandler 创建生产排程 Handler
func NewProductionScheduleHandler(scheduleService service.ProductionScheduleService, ongoingService service.OngoingService, logger *zap.Logger) *ProductionScheduleHandler {
	return &ProductionScheduleHandler{
		scheduleService: scheduleService,
		ongoingService:  ongoingService,
		logger:          logger,
	}
}

// ServeHTTP 路由分发
//
//	GET  /api/v1/production-schedules
//	POST /api/v1/production-schedules
//	GET  /api/v1/production-schedules/{id}
//	PUT  /api/v1/production-schedules/{id}/status
//	POST /api/v1/production-schedules/{id}/start|pause|finish
//	GET  /api/v1/production-schedules/{id}/ongoing
//	GET  /api/v1/production-schedules/{id}/ongoing/current
func (h *ProductionScheduleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, schedulesPrefix)
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			h.ListSchedules(w, r)
		case http.MethodPost:
			h.CreateSchedule(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	id, ok := parseID(parts[0])
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	action := strings.Join(parts[1:], "/")

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.GetSchedule(w, r, id)
	case action == "status" && r.Method == http.MethodPut:
		h.UpdateStatus(w, r, id)
	case action == "start" && r.Method == http.MethodPost:
		h.Start(w, r, id)
	case action == "pause" && r.Method == http.MethodPost:
		h.Pause(w, r, id)
	case action == "finish" && r.Method == http.MethodPost:
		h.Finish(w, r, id)
	case action == "ongoing" && r.Method == http.MethodGet:
		h.ListRuns(w, r, id)
	case action == "ongoing/current" && r.Method == http.MethodGet:
		h.GetCurrentRun(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListSchedules 排程列表
func (h *ProductionScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.scheduleService.ListSchedules(r.Context(), service.ListSchedulesRequest{
		MachineSN:   q.Get("machineSN"),
		WorkOrderSN: q.Get("workOrderSN"),
		Status:      domain.ScheduleStatus(q.Get("status")),
		Page:        parseInt(q.Get("page"), 1),
		Size:        parseInt(q.Get("size"), 20),
	})
	if err != nil {
		writeServiceError(w, h.logger, "ListSchedules", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// CreateSchedule 创建排程
func (h *ProductionScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req service.CreateScheduleRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	resp, err := h.scheduleService.CreateSchedule(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "CreateSchedule", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// GetSchedule 排程详情
func (h *ProductionScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request, id int64) {
	s, err := h.scheduleService.GetSchedule(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "GetSchedule", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

// UpdateStatus 手动更新状态
func (h *ProductionScheduleHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, id int64) {
	var payload struct {
		Status domain.ScheduleStatus `json:"status"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	s, err := h.scheduleService.UpdateStatus(r.Context(), service.UpdateStatusRequest{ID: id, Status: payload.Status})
	if err != nil {
		writeServiceError(w, h.logger, "UpdateScheduleStatus", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

// Start 上机 / 恢复生产
func (h *ProductionScheduleHandler) Start(w http.ResponseWriter, r *http.Request, id int64) {
	var req service.StartScheduleRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	req.ScheduleID = id
	resp, err := h.ongoingService.StartSchedule(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "StartSchedule", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Pause 暂停
func (h *ProductionScheduleHandler) Pause(w http.ResponseWriter, r *http.Request, id int64) {
	var req service.PauseScheduleRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	req.ScheduleID = id
	resp, err := h.ongoingService.PauseSchedule(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "PauseSchedule", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Finish 完工
func (h *ProductionScheduleHandler) Finish(w http.ResponseWriter, r *http.Request, id int64) {
	var req service.FinishScheduleRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	req.ScheduleID = id
	resp, err := h.ongoingService.FinishSchedule(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "FinishSchedule", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// ListRuns 排程的全部生产段
func (h *ProductionScheduleHandler) ListRuns(w http.ResponseWriter, r *http.Request, id int64) {
	runs, err := h.ongoingService.ListRuns(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "ListRuns", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": runs, "total": len(runs)}))
}

// GetCurrentRun 当前生产段
func (h *ProductionScheduleHandler) GetCurrentRun(w http.ResponseWriter, r *http.Request, id int64) {
	run, err := h.ongoingService.GetCurrentRun(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "GetCurrentRun", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(run))
}
