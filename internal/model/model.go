package model

import "time"

type User struct {
	ID             int64
	Email          string
	PasswordHash   string
	Name           string
	Phone          string
	Address        string
	Role           Role
	ZoneID         *int64
	NeighborhoodID *int64
	CreatedAt      time.Time
}

type Appointment struct {
	ID           int64
	ClientID     int64
	TechnicianID *int64
	ServiceID    int64
	Date         Date
	Slot         Slot
	Description  string
	Status       Status
	CreatedAt    time.Time
}

type Notification struct {
	ID      int64     `json:"id_notif"`
	UserID  int64     `json:"-"`
	Message string    `json:"mensaje"`
	SentAt  time.Time `json:"fecha_envio"`
	Read    bool      `json:"leida"`
}

// AppointmentView is one row of a role-scoped listing, joined with display names.
type AppointmentView struct {
	ID             int64  `json:"id_turno"`
	Date           Date   `json:"fecha"`
	Slot           Slot   `json:"franja_horaria"`
	Status         Status `json:"estado"`
	Description    string `json:"descripcion"`
	ClientName     string `json:"cliente_nombre,omitempty"`
	ClientPhone    string `json:"telefono,omitempty"`
	TechnicianName string `json:"tecnico_nombre,omitempty"`
	ServiceName    string `json:"servicio_nombre"`
}

type Zone struct {
	ID   int64  `json:"id_zona"`
	Name string `json:"nombre"`
}

type Neighborhood struct {
	ID     int64  `json:"id_barrio"`
	ZoneID int64  `json:"-"`
	Name   string `json:"nombre"`
}

type Service struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}
