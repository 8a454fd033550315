package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterCalendarRoutes 日历
func (r *Router) RegisterCalendarRoutes(h *CalendarHandler) {
	r.HandleHandler("/api/v1/calendar", h)
	r.HandleHandler("/api/v1/calendar/", h)
}

// RegisterProductionScheduleRoutes 生产排程及排程级状态切换
func (r *Router) RegisterProductionScheduleRoutes(h *ProductionScheduleHandler) {
	r.HandleHandler("/api/v1/production-schedules", h)
	r.HandleHandler("/api/v1/production-schedules/", h)
}

// RegisterOngoingRoutes 生产段
func (r *Router) RegisterOngoingRoutes(h *OngoingHandler) {
	r.HandleHandler("/api/v1/production-schedule-ongoing", h)
	r.HandleHandler("/api/v1/production-schedule-ongoing/", h)
}

// RegisterMachineRoutes 机台
func (r *Router) RegisterMachineRoutes(h *MachineHandler) {
	r.HandleHandler("/api/v1/machines", h)
	r.HandleHandler("/api/v1/machines/", h)
}

// RegisterHealthRoutes 健康检查；check 为 nil 时只返回 ok
func (r *Router) RegisterHealthRoutes(check func(req *http.Request) error) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if check != nil {
			if err := check(req); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error()))
				return
			}
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}
