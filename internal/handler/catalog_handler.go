package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Message:   "PlanificaNet funcionando",
		Timestamp: h.now().UTC(),
	})
}

func (h *Handler) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.Catalog.Zones(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

func (h *Handler) listNeighborhoods(w http.ResponseWriter, r *http.Request) {
	zoneID, err := pathID(r, "id_zona")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.Catalog.Neighborhoods(r.Context(), zoneID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Catalog.Services(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
