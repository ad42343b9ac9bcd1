package service

import (
	"context"
	"errors"
	"fmt"

	"planificanet/internal/apperr"
	"planificanet/internal/auth"
	"planificanet/internal/model"
	"planificanet/internal/store"
)

type Notifications struct {
	store NotificationStore
}

func NewNotifications(st NotificationStore) *Notifications {
	return &Notifications{store: st}
}

func (s *Notifications) List(ctx context.Context, caller auth.Identity) ([]model.Notification, error) {
	out, err := s.store.ListNotifications(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags one of the caller's notifications as read. Repeating it is harmless.
func (s *Notifications) MarkRead(ctx context.Context, caller auth.Identity, id int64) error {
	owner, err := s.store.NotificationOwner(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.E(apperr.NotFound, "Notificación no encontrada")
	}
	if err != nil {
		return fmt.Errorf("notification owner: %w", err)
	}
	if owner != caller.ID {
		return apperr.E(apperr.Forbidden, "No tienes permiso para esta notificación")
	}
	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification %d: %w", id, err)
	}
	return nil
}
