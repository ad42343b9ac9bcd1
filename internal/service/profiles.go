package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"planificanet/internal/apperr"
	"planificanet/internal/auth"
	"planificanet/internal/model"
	"planificanet/internal/store"
)

var errUserNotFound = apperr.E(apperr.NotFound, "Usuario no encontrado")

type Profiles struct {
	users UserStore
}

func NewProfiles(users UserStore) *Profiles {
	return &Profiles{users: users}
}

type Profile struct {
	ID        int64  `json:"id_usuario"`
	Nombre    string `json:"nombre"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Direccion string `json:"direccion"`
}

type UpdateInput struct {
	Nombre    string `json:"nombre"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Direccion string `json:"direccion"`
}

func selfOrAdmin(caller auth.Identity, id int64) bool {
	return caller.ID == id || caller.Role == model.RoleAdmin
}

func (s *Profiles) Get(ctx context.Context, caller auth.Identity, id int64) (*Profile, error) {
	if !selfOrAdmin(caller, id) {
		return nil, apperr.E(apperr.Forbidden, "No tienes permiso para ver estos datos")
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{ID: u.ID, Nombre: u.Name, Email: u.Email, Telefono: u.Phone, Direccion: u.Address}, nil
}

func (s *Profiles) Update(ctx context.Context, caller auth.Identity, id int64, in UpdateInput) error {
	if !selfOrAdmin(caller, id) {
		return apperr.E(apperr.Forbidden, "No tienes permiso para editar estos datos")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" || strings.TrimSpace(in.Nombre) == "" {
		return apperr.E(apperr.InvalidInput, "Nombre y email son obligatorios")
	}

	errInUse := apperr.E(apperr.DuplicateEmail, "El email ya está en uso")
	taken, err := s.users.EmailTaken(ctx, email, id)
	if err != nil {
		return fmt.Errorf("email lookup: %w", err)
	}
	if taken {
		return errInUse
	}

	err = s.users.UpdateProfile(ctx, &model.User{
		ID:      id,
		Name:    strings.TrimSpace(in.Nombre),
		Email:   email,
		Phone:   in.Telefono,
		Address: in.Direccion,
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return errInUse
	case errors.Is(err, store.ErrNotFound):
		return errUserNotFound
	case err != nil:
		return fmt.Errorf("update profile %d: %w", id, err)
	}
	return nil
}

// ChangePassword is owner-only; admins cannot reset someone else's password here.
func (s *Profiles) ChangePassword(ctx context.Context, caller auth.Identity, id int64, actual, nueva string) error {
	if caller.ID != id {
		return apperr.E(apperr.Forbidden, "No puedes cambiar la contraseña de otro usuario")
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, actual) {
		return apperr.E(apperr.InvalidCredentials, "La contraseña actual es incorrecta")
	}
	if len(nueva) < MinPasswordLen {
		return apperr.E(apperr.InvalidInput, "La contraseña debe tener al menos 6 caracteres")
	}

	hash, err := auth.HashPassword(nueva)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, id, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errUserNotFound
		}
		return fmt.Errorf("set password %d: %w", id, err)
	}
	return nil
}

func (s *Profiles) load(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.UserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return u, nil
}
