package store

import (
	"context"

	"planificanet/internal/model"
)

const userCols = `id_usuario, email, password, nombre, telefono, direccion, id_rol, id_zona, id_barrio, creado_en`

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO usuarios (email, password, nombre, telefono, direccion, id_rol, id_zona, id_barrio)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING id_usuario, creado_en`,
		u.Email, u.PasswordHash, u.Name, u.Phone, u.Address, int16(u.Role), u.ZoneID, u.NeighborhoodID,
	).Scan(&u.ID, &u.CreatedAt)
	if violates(err, "") {
		return ErrDuplicate
	}
	if violatesForeignKey(err) {
		return ErrBadReference
	}
	return err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM usuarios WHERE email = $1`, email))
}

func (s *Store) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM usuarios WHERE id_usuario = $1`, id))
}

// EmailTaken reports whether another user (not exceptID) already uses email.
func (s *Store) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM usuarios WHERE email = $1 AND id_usuario <> $2)`,
		email, exceptID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) UpdateProfile(ctx context.Context, u *model.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE usuarios SET nombre = $1, email = $2, telefono = $3, direccion = $4
		 WHERE id_usuario = $5`,
		u.Name, u.Email, u.Phone, u.Address, u.ID,
	)
	if violates(err, "") {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE usuarios SET password = $1 WHERE id_usuario = $2`, hash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var rol int16
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Address,
		&rol, &u.ZoneID, &u.NeighborhoodID, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if u.Role, err = model.RoleFromID(rol); err != nil {
		return nil, err
	}
	return u, nil
}
