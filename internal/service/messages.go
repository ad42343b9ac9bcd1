package service

import (
	"fmt"

	"planificanet/internal/model"
)

func createdNotes(a *model.Appointment, servicio string) []model.Notification {
	notes := []model.Notification{{
		UserID:  a.ClientID,
		Message: fmt.Sprintf("Tu turno de %s para el %s (%s) fue creado correctamente.", servicio, a.Date.Display(), a.Slot),
	}}
	if a.TechnicianID != nil {
		notes = append(notes, model.Notification{
			UserID:  *a.TechnicianID,
			Message: fmt.Sprintf("Se te asignó un nuevo turno de %s para el %s (%s).", servicio, a.Date.Display(), a.Slot),
		})
	}
	return notes
}

// transitionNotes returns nothing for moves back to Pendiente.
func transitionNotes(a *model.Appointment, next model.Status, actor string) []model.Notification {
	var client, tech string
	switch next {
	case model.StatusConfirmed:
		client = fmt.Sprintf("Tu turno del %s (%s) fue confirmado.", a.Date.Display(), a.Slot)
		tech = fmt.Sprintf("%s confirmó el turno del %s (%s).", actor, a.Date.Display(), a.Slot)
	case model.StatusCancelled:
		client = fmt.Sprintf("Tu turno del %s (%s) fue cancelado.", a.Date.Display(), a.Slot)
		tech = fmt.Sprintf("%s canceló el turno del %s (%s).", actor, a.Date.Display(), a.Slot)
	default:
		return nil
	}

	notes := []model.Notification{{UserID: a.ClientID, Message: client}}
	if a.TechnicianID != nil {
		notes = append(notes, model.Notification{UserID: *a.TechnicianID, Message: tech})
	}
	return notes
}
