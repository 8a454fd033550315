package httpapi

import (
	"net/http"

	"lys-mes/internal/domain"
	"lys-mes/internal/service"

	"go.uber.org/zap"
)

const machinesPrefix = "/api/v1/machines"

// MachineHandler 机台 Handler
type MachineHandler struct {
	machineService service.MachineService
	logger         *zap.Logger
}

func NewMachineHandler(machineService service.MachineService, logger *zap.Logger) *MachineHandler {
	return &MachineHandler{machineService: machineService, logger: logger}
}

func (h *MachineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, machinesPrefix)
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		items, err := h.machineService.ListMachines(r.Context(), r.URL.Query().Get("area"))
		if err != nil {
			writeServiceError(w, h.logger, "ListMachines", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": len(items)}))
	case len(parts) == 0 && r.Method == http.MethodPost:
		var m domain.Machine
		if err := readBodyJSON(r, maxBodyBytes, &m); err != nil {
			writeBadRequest(w, "invalid body")
			return
		}
		if err := h.machineService.UpsertMachine(r.Context(), &m); err != nil {
			writeServiceError(w, h.logger, "UpsertMachine", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(m))
	case len(parts) == 1 && r.Method == http.MethodGet:
		m, err := h.machineService.GetMachine(r.Context(), parts[0])
		if err != nil {
			writeServiceError(w, h.logger, "GetMachine", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(m))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
