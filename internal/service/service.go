// Package service holds the use cases behind the HTTP routes. Services speak
// apperr to their callers and depend only on the small interfaces below.
package service

import (
	"context"

	"planificanet/internal/model"
	"planificanet/internal/store"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	UpdateProfile(ctx context.Context, u *model.User) error
	SetPassword(ctx context.Context, id int64, hash string) error
}

type AppointmentStore interface {
	BookAppointment(ctx context.Context, b store.Booking) ([]model.Notification, error)
	TransitionAppointment(ctx context.Context, id int64, fn store.Transition) ([]model.Notification, error)
	ListAppointments(ctx context.Context, role model.Role, userID int64) ([]model.AppointmentView, error)
	NextAppointment(ctx context.Context, role model.Role, userID int64, today model.Date) (*model.AppointmentView, error)
}

type NotificationStore interface {
	ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error)
	NotificationOwner(ctx context.Context, id int64) (int64, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Services resolves the service catalog entry named by a booking.
type Services interface {
	Service(ctx context.Context, id int64) (*model.Service, error)
}

// Notifier receives notifications after they are committed.
type Notifier interface {
	Notify(notes []model.Notification)
}

// MinPasswordLen applies to registration and password changes.
const MinPasswordLen = 6
