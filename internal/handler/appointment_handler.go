package handler

import (
	"net/http"

	"planificanet/internal/service"
)

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Appointments.List(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// nextAppointment answers null when there is nothing upcoming.
func (h *Handler) nextAppointment(w http.ResponseWriter, r *http.Request) {
	v, err := h.Appointments.Next(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req service.CreateInput
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Appointments.Create(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type statusRequest struct {
	Estado string `json:"estado"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Appointments.UpdateStatus(r.Context(), caller(r), id, req.Estado); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{"Estado actualizado y notificaciones enviadas"})
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Appointments.Cancel(r.Context(), caller(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{"Turno cancelado correctamente"})
}
