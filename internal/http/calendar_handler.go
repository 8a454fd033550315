package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lys-mes/internal/domain"
	"lys-mes/internal/service"

	"go.uber.org/zap"
)

const calendarPrefix = "/api/v1/calendar"

// CalendarHandler 日历 Handler
type CalendarHandler struct {
	calendarService service.CalendarService
	logger          *zap.Logger
}

// NewCalendarHandler 创建日历 Handler
func NewCalendarHandler(calendarService service.CalendarService, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{
		calendarService: calendarService,
		logger:          logger,
	}
}

func (h *CalendarHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == calendarPrefix && r.Method == http.MethodGet:
		h.ListCalendar(w, r)
	case path == calendarPrefix && r.Method == http.MethodPost:
		h.UpsertDays(w, r)
	case path == calendarPrefix+"/shift" && r.Method == http.MethodGet:
		h.Shift(w, r)
	case path == calendarPrefix+"/import" && r.Method == http.MethodPost:
		h.Import(w, r)
	case path == calendarPrefix+"/export" && r.Method == http.MethodGet:
		h.Export(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *CalendarHandler) windowFromQuery(r *http.Request) (service.ListCalendarRequest, error) {
	start, err := parseTimeParam(r.URL.Query().Get("startDate"))
	if err != nil {
		return service.ListCalendarRequest{}, err
	}
	return service.ListCalendarRequest{
		StartDate: start,
		Days:      parseInt(r.URL.Query().Get("days"), 31),
	}, nil
}

// ListCalendar GET /api/v1/calendar?startDate=2024-01-01&days=31
func (h *CalendarHandler) ListCalendar(w http.ResponseWriter, r *http.Request) {
	req, err := h.windowFromQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	resp, err := h.calendarService.ListCalendar(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "ListCalendar", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

type calendarDayPayload struct {
	Date        string `json:"date"`
	IsHoliday   bool   `json:"isHoliday"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// UpsertDays POST /api/v1/calendar  {"days": [{"date": "2024-01-01", "isHoliday": true}]}
func (h *CalendarHandler) UpsertDays(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Days []calendarDayPayload `json:"days"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}

	days := make([]domain.CalendarDay, 0, len(payload.Days))
	for _, p := range payload.Days {
		d, err := time.Parse(domain.DateLayout, p.Date)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid date %q", p.Date))
			return
		}
		days = append(days, domain.CalendarDay{
			Date:        d,
			IsHoliday:   p.IsHoliday,
			Category:    p.Category,
			Description: p.Description,
		})
	}

	resp, err := h.calendarService.UpsertDays(r.Context(), service.UpsertDaysRequest{Days: days})
	if err != nil {
		writeServiceError(w, h.logger, "UpsertCalendarDays", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Shift GET /api/v1/calendar/shift?startDate=2024-01-01T00:00:00%2B08:00&workdays=5[&endDate=...]
func (h *CalendarHandler) Shift(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseTimeParam(q.Get("startDate"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	workdays := parseInt(q.Get("workdays"), -1)
	if workdays < 0 {
		writeBadRequest(w, "workdays must be a non-negative integer")
		return
	}

	req := service.ShiftDateRequest{StartDate: start, Workdays: workdays}
	if raw := q.Get("endDate"); raw != "" {
		hint, err := parseTimeParam(raw)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		req.EndDateHint = &hint
	}

	resp, err := h.calendarService.ShiftDate(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "ShiftDate", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Import POST /api/v1/calendar/import（multipart, 字段 file）
func (h *CalendarHandler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB max
		writeBadRequest(w, "failed to parse form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "file not found in request")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeBadRequest(w, "failed to read file")
		return
	}

	resp, err := h.calendarService.ImportCalendarExcel(r.Context(), bytes.NewReader(data))
	if err != nil {
		writeServiceError(w, h.logger, "ImportCalendarExcel", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Export GET /api/v1/calendar/export?startDate=2024-01-01&days=366
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	req, err := h.windowFromQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	data, err := h.calendarService.ExportCalendarExcel(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "ExportCalendarExcel", err)
		return
	}

	filename := fmt.Sprintf("calendar_%s_%d.xlsx", req.StartDate.Format("20060102"), req.Days)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
