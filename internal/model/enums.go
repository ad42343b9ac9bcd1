package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrBadSlot   = errors.New("franja horaria inválida")
	ErrBadStatus = errors.New("estado inválido")
	ErrBadRole   = errors.New("rol inválido")
)

// Role values match the persisted id_rol column.
type Role int

const (
	RoleClient     Role = 1
	RoleTechnician Role = 2
	RoleAdmin      Role = 3
)

func RoleFromID(id int16) (Role, error) {
	r := Role(id)
	if !r.Valid() {
		return 0, ErrBadRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleTechnician || r == RoleAdmin
}

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "cliente"
	case RoleTechnician:
		return "tecnico"
	case RoleAdmin:
		return "admin"
	}
	return "desconocido"
}

type Slot string

const (
	SlotMorning   Slot = "Mañana"
	SlotAfternoon Slot = "Tarde"
	SlotEvening   Slot = "Noche"
)

// Slots lists the time-slots in day order.
var Slots = []Slot{SlotMorning, SlotAfternoon, SlotEvening}

// ParseSlot accepts any casing, with or without the tilde.
func ParseSlot(s string) (Slot, error) {
	switch fold(s) {
	case "mañana", "manana":
		return SlotMorning, nil
	case "tarde":
		return SlotAfternoon, nil
	case "noche":
		return SlotEvening, nil
	}
	return "", ErrBadSlot
}

// Rank orders slots within a day: Mañana < Tarde < Noche.
func (s Slot) Rank() int {
	for i, v := range Slots {
		if v == s {
			return i
		}
	}
	return len(Slots)
}

type Status string

const (
	StatusPending   Status = "Pendiente"
	StatusConfirmed Status = "Confirmado"
	StatusCancelled Status = "Cancelado"
)

func ParseStatus(s string) (Status, error) {
	switch fold(s) {
	case "pendiente":
		return StatusPending, nil
	case "confirmado":
		return StatusConfirmed, nil
	case "cancelado":
		return StatusCancelled, nil
	}
	return "", ErrBadStatus
}

// CanTransition reports whether an appointment in s may be set to next.
// Cancelado is terminal; every other move inside the enum is allowed.
func (s Status) CanTransition(next Status) bool {
	return s != StatusCancelled
}

// Active reports whether the appointment still occupies its technician.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

const dateLayout = "2006-01-02"

// Date is a calendar day encoded as YYYY-MM-DD.
type Date struct{ time.Time }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

// Display renders the day the way notification texts show it (dd-mm-yyyy).
func (d Date) Display() string { return d.Format("02-01-2006") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	p, err := ParseDate(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*d = p
	return nil
}
