package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"planificanet/internal/model"
)

const slotConstraint = "turnos_tecnico_franja_uq"

// bookAttempts bounds retries when the slot index still reports a conflict.
const bookAttempts = 3

// Booking is a new appointment plus the notifications to write alongside it.
// Notify runs inside the transaction once a technician has been assigned.
type Booking struct {
	Appointment *model.Appointment
	Notify      func(a *model.Appointment) []model.Notification
}

// BookAppointment assigns a free technician and inserts the appointment and its
// notifications atomically. Returns ErrNoTechnician when nobody is free.
func (s *Store) BookAppointment(ctx context.Context, b Booking) ([]model.Notification, error) {
	var err error
	for i := 0; i < bookAttempts; i++ {
		var notes []model.Notification
		notes, err = s.book(ctx, b)
		if !violates(err, slotConstraint) {
			return notes, err
		}
	}
	return nil, ErrNoTechnician
}

func (s *Store) book(ctx context.Context, b Booking) ([]model.Notification, error) {
	a := b.Appointment

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// serialize bookings of the same (fecha, franja); other slots proceed in parallel
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1::date::text || '|' || $2::text))`,
		a.Date.Time, string(a.Slot),
	); err != nil {
		return nil, err
	}

	var techID int64
	err = tx.QueryRow(ctx,
		`SELECT u.id_usuario FROM usuarios u
		 WHERE u.id_rol = 2
		   AND NOT EXISTS (
		       SELECT 1 FROM turnos t
		       WHERE t.tecnico_id = u.id_usuario
		         AND t.fecha = $1
		         AND t.franja_horaria = $2
		         AND t.estado <> 'Cancelado')
		 ORDER BY u.id_usuario
		 LIMIT 1`,
		a.Date.Time, string(a.Slot),
	).Scan(&techID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoTechnician
	}
	if err != nil {
		return nil, err
	}

	a.TechnicianID = &techID
	a.Status = model.StatusPending
	err = tx.QueryRow(ctx,
		`INSERT INTO turnos (cliente_id, tecnico_id, servicio_id, fecha, franja_horaria, descripcion, estado)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING id_turno, creado_en`,
		a.ClientID, techID, a.ServiceID, a.Date.Time, string(a.Slot), a.Description, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	notes := b.Notify(a)
	if err := insertNotifications(ctx, tx, notes); err != nil {
		return nil, err
	}
	return notes, tx.Commit(ctx)
}

// Transition decides the next status for a locked appointment and the
// notifications that go with it. Returning an error aborts the update.
type Transition func(a *model.Appointment) (model.Status, []model.Notification, error)

// TransitionAppointment locks appointment id, applies fn and persists its outcome.
func (s *Store) TransitionAppointment(ctx context.Context, id int64, fn Transition) ([]model.Notification, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	a := &model.Appointment{ID: id}
	var (
		fecha  time.Time
		slot   string
		status string
	)
	err = tx.QueryRow(ctx,
		`SELECT cliente_id, tecnico_id, servicio_id, fecha, franja_horaria, descripcion, estado, creado_en
		 FROM turnos WHERE id_turno = $1
		 FOR UPDATE`, id,
	).Scan(&a.ClientID, &a.TechnicianID, &a.ServiceID, &fecha, &slot, &a.Description, &status, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	a.Date = model.Date{Time: fecha}
	a.Slot = model.Slot(slot)
	a.Status = model.Status(status)

	next, notes, err := fn(a)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE turnos SET estado = $1 WHERE id_turno = $2`, string(next), id,
	); err != nil {
		return nil, err
	}
	if err := insertNotifications(ctx, tx, notes); err != nil {
		return nil, err
	}
	return notes, tx.Commit(ctx)
}

const viewCols = `t.id_turno, t.fecha, t.franja_horaria, t.estado, t.descripcion,
	COALESCE(c.nombre, ''), COALESCE(c.telefono, ''), COALESCE(tec.nombre, ''), s.nombre`

const viewFrom = `FROM turnos t
	JOIN servicios s ON t.servicio_id = s.id_servicio
	LEFT JOIN usuarios c ON t.cliente_id = c.id_usuario
	LEFT JOIN usuarios tec ON t.tecnico_id = tec.id_usuario`

const slotOrder = `CASE t.franja_horaria WHEN 'Mañana' THEN 0 WHEN 'Tarde' THEN 1 ELSE 2 END`

// ListAppointments returns the rows visible to role/userID: everything for
// admins, the assigned queue for technicians, own appointments for clients.
func (s *Store) ListAppointments(ctx context.Context, role model.Role, userID int64) ([]model.AppointmentView, error) {
	var (
		q    string
		args []any
	)
	switch role {
	case model.RoleAdmin:
		q = `SELECT ` + viewCols + ` ` + viewFrom + `
		 ORDER BY t.fecha DESC, t.franja_horaria DESC, t.id_turno DESC`
	case model.RoleTechnician:
		q = `SELECT ` + viewCols + ` ` + viewFrom + `
		 WHERE t.tecnico_id = $1
		 ORDER BY t.fecha ASC, ` + slotOrder + ` ASC, t.id_turno ASC`
		args = append(args, userID)
	default:
		q = `SELECT ` + viewCols + ` ` + viewFrom + `
		 WHERE t.cliente_id = $1
		 ORDER BY t.fecha DESC, t.franja_horaria DESC, t.id_turno DESC`
		args = append(args, userID)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AppointmentView{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		// only technicians need to call the client
		if role != model.RoleTechnician {
			v.ClientPhone = ""
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// NextAppointment returns the earliest live appointment on or after today, or nil.
func (s *Store) NextAppointment(ctx context.Context, role model.Role, userID int64, today model.Date) (*model.AppointmentView, error) {
	owner := "t.cliente_id"
	if role == model.RoleTechnician {
		owner = "t.tecnico_id"
	}
	v, err := scanView(s.pool.QueryRow(ctx,
		`SELECT `+viewCols+` `+viewFrom+`
		 WHERE `+owner+` = $1
		   AND t.fecha >= $2
		   AND t.estado IN ('Pendiente', 'Confirmado')
		 ORDER BY t.fecha ASC, `+slotOrder+` ASC, t.id_turno ASC
		 LIMIT 1`,
		userID, today.Time,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func scanView(row rowScanner) (*model.AppointmentView, error) {
	var (
		v      model.AppointmentView
		fecha  time.Time
		slot   string
		status string
	)
	if err := row.Scan(&v.ID, &fecha, &slot, &status, &v.Description,
		&v.ClientName, &v.ClientPhone, &v.TechnicianName, &v.ServiceName); err != nil {
		return nil, err
	}
	v.Date = model.Date{Time: fecha}
	v.Slot = model.Slot(slot)
	v.Status = model.Status(status)
	return &v, nil
}
