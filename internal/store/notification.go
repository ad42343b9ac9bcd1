package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"planificanet/internal/model"
)

// insertNotifications writes notes inside tx and fills in their ids and timestamps.
func insertNotifications(ctx context.Context, tx pgx.Tx, notes []model.Notification) error {
	for i := range notes {
		n := &notes[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO notificaciones (id_usuario, mensaje) VALUES ($1, $2)
			 RETURNING id_notif, fecha_envio, leida`,
			n.UserID, n.Message,
		).Scan(&n.ID, &n.SentAt, &n.Read)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id_notif, id_usuario, mensaje, fecha_envio, leida
		 FROM notificaciones WHERE id_usuario = $1
		 ORDER BY fecha_envio DESC, id_notif DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.SentAt, &n.Read); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) NotificationOwner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := s.pool.QueryRow(ctx,
		`SELECT id_usuario FROM notificaciones WHERE id_notif = $1`, id,
	).Scan(&owner)
	return owner, notFound(err)
}

// MarkNotificationRead is idempotent.
func (s *Store) MarkNotificationRead(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notificaciones SET leida = true WHERE id_notif = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
