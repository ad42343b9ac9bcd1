package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"planificanet/internal/apperr"
	"planificanet/internal/auth"
	"planificanet/internal/catalog"
	"planificanet/internal/model"
	"planificanet/internal/store"
)

const noTechnicianMsg = "No hay técnicos disponibles. Por favor prueba otra fecha u otra Franja horaria"

var errNotFound = apperr.E(apperr.NotFound, "Turno no encontrado")

type Appointments struct {
	store    AppointmentStore
	users    UserStore
	services Services
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewAppointments(st AppointmentStore, users UserStore, services Services, notifier Notifier, log *zap.Logger) *Appointments {
	return &Appointments{
		store:    st,
		users:    users,
		services: services,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the clock used to decide what "today" is.
func (s *Appointments) WithClock(now func() time.Time) *Appointments {
	s.now = now
	return s
}

type CreateInput struct {
	Fecha       string `json:"fecha"`
	Franja      string `json:"franja_horaria"`
	ServicioID  int64  `json:"servicio_id"`
	Descripcion string `json:"descripcion"`
}

type CreateResult struct {
	Message        string     `json:"message"`
	TurnoID        int64      `json:"turnoId"`
	ServicioNombre string     `json:"servicio_nombre"`
	Franja         model.Slot `json:"franja_horaria"`
}

// Create books a new appointment for a client and assigns the first free technician.
func (s *Appointments) Create(ctx context.Context, caller auth.Identity, in CreateInput) (*CreateResult, error) {
	if caller.Role != model.RoleClient {
		return nil, apperr.E(apperr.Forbidden, "Solo clientes pueden crear turnos")
	}
	slot, err := model.ParseSlot(in.Franja)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "Franja horaria inválida", err)
	}
	day, err := model.ParseDate(in.Fecha)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "Fecha inválida", err)
	}
	svc, err := s.services.Service(ctx, in.ServicioID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, apperr.E(apperr.InvalidInput, "Servicio no válido")
	}
	if err != nil {
		return nil, fmt.Errorf("service lookup: %w", err)
	}

	a := &model.Appointment{
		ClientID:    caller.ID,
		ServiceID:   svc.ID,
		Date:        day,
		Slot:        slot,
		Description: in.Descripcion,
	}
	notes, err := s.store.BookAppointment(ctx, store.Booking{
		Appointment: a,
		Notify: func(a *model.Appointment) []model.Notification {
			return createdNotes(a, svc.Name)
		},
	})
	if errors.Is(err, store.ErrNoTechnician) {
		return nil, apperr.E(apperr.NoTechnicianAvailable, noTechnicianMsg)
	}
	if err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}

	s.log.Info("appointment created",
		zap.Int64("appointment_id", a.ID),
		zap.Int64("client_id", a.ClientID),
		zap.Int64p("technician_id", a.TechnicianID),
	)
	s.notifier.Notify(notes)

	return &CreateResult{
		Message:        "Turno creado exitosamente",
		TurnoID:        a.ID,
		ServicioNombre: svc.Name,
		Franja:         slot,
	}, nil
}

// UpdateStatus lets a technician or admin move an appointment through its lifecycle.
func (s *Appointments) UpdateStatus(ctx context.Context, caller auth.Identity, id int64, estado string) error {
	if caller.Role != model.RoleTechnician && caller.Role != model.RoleAdmin {
		return apperr.E(apperr.Forbidden, "No tienes permiso para actualizar estados")
	}
	next, err := model.ParseStatus(estado)
	if err != nil {
		return apperr.Wrap(apperr.InvalidState, "Estado inválido", err)
	}
	actor := s.actorName(ctx, caller.ID)

	return s.transition(ctx, id, func(a *model.Appointment) (model.Status, []model.Notification, error) {
		if caller.Role == model.RoleTechnician && (a.TechnicianID == nil || *a.TechnicianID != caller.ID) {
			return "", nil, apperr.E(apperr.Forbidden, "No tienes permiso para modificar este turno")
		}
		if !a.Status.CanTransition(next) {
			return "", nil, apperr.E(apperr.InvalidState, "El turno está cancelado y no puede modificarse")
		}
		return next, transitionNotes(a, next, actor), nil
	})
}

// Cancel lets the owning client cancel their appointment.
func (s *Appointments) Cancel(ctx context.Context, caller auth.Identity, id int64) error {
	if caller.Role != model.RoleClient {
		return apperr.E(apperr.Forbidden, "Solo clientes pueden cancelar sus turnos")
	}
	actor := s.actorName(ctx, caller.ID)

	return s.transition(ctx, id, func(a *model.Appointment) (model.Status, []model.Notification, error) {
		if a.ClientID != caller.ID {
			return "", nil, apperr.E(apperr.Forbidden, "No tienes permiso para cancelar este turno")
		}
		if !a.Status.CanTransition(model.StatusCancelled) {
			return "", nil, apperr.E(apperr.InvalidState, "El turno ya está cancelado")
		}
		return model.StatusCancelled, transitionNotes(a, model.StatusCancelled, actor), nil
	})
}

func (s *Appointments) transition(ctx context.Context, id int64, fn store.Transition) error {
	var next model.Status
	notes, err := s.store.TransitionAppointment(ctx, id, func(a *model.Appointment) (model.Status, []model.Notification, error) {
		st, notes, err := fn(a)
		next = st
		return st, notes, err
	})
	if errors.Is(err, store.ErrNotFound) {
		return errNotFound
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if err != nil {
		return fmt.Errorf("update appointment %d: %w", id, err)
	}

	s.log.Info("appointment status changed",
		zap.Int64("appointment_id", id),
		zap.String("status", string(next)),
		zap.Int("notifications", len(notes)),
	)
	s.notifier.Notify(notes)
	return nil
}

// actorName is the display name used in transition notifications.
func (s *Appointments) actorName(ctx context.Context, id int64) string {
	u, err := s.users.UserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("actor lookup failed", zap.Int64("user_id", id), zap.Error(err))
		}
		return "Un usuario"
	}
	return u.Name
}

// List returns the appointments the caller is allowed to see.
func (s *Appointments) List(ctx context.Context, caller auth.Identity) ([]model.AppointmentView, error) {
	rows, err := s.store.ListAppointments(ctx, caller.Role, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return rows, nil
}

// Next returns the caller's earliest upcoming live appointment, or nil.
// Admins have no appointments of their own.
func (s *Appointments) Next(ctx context.Context, caller auth.Identity) (*model.AppointmentView, error) {
	if caller.Role == model.RoleAdmin {
		return nil, nil
	}
	now := s.now()
	today := model.Date{Time: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)}
	v, err := s.store.NextAppointment(ctx, caller.Role, caller.ID, today)
	if err != nil {
		return nil, fmt.Errorf("next appointment: %w", err)
	}
	return v, nil
}
