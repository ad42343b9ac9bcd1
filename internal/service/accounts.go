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

type Accounts struct {
	users  UserStore
	secret string
}

func NewAccounts(users UserStore, secret string) *Accounts {
	return &Accounts{users: users, secret: secret}
}

type PublicUser struct {
	ID     int64      `json:"id"`
	Email  string     `json:"email"`
	Nombre string     `json:"nombre"`
	Rol    model.Role `json:"rol"`
}

type LoginResult struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

var errBadCredentials = apperr.E(apperr.InvalidCredentials, "Credenciales inválidas")

func (a *Accounts) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := a.users.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, errBadCredentials
	}

	tok, err := auth.MakeToken(auth.Identity{ID: u.ID, Email: u.Email, Role: u.Role}, a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &LoginResult{
		Token: tok,
		User:  PublicUser{ID: u.ID, Email: u.Email, Nombre: u.Name, Rol: u.Role},
	}, nil
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Nombre    string `json:"nombre"`
	Telefono  string `json:"telefono"`
	Direccion string `json:"direccion"`
	ZonaID    *int64 `json:"id_zona"`
	BarrioID  *int64 `json:"id_barrio"`
}

var errEmailRegistered = apperr.E(apperr.DuplicateEmail, "El email ya está registrado")

// Register creates a Client account and returns its id.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (int64, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return 0, apperr.E(apperr.InvalidInput, "El email es obligatorio")
	}
	// a taken email wins over every other validation error
	taken, err := a.users.EmailTaken(ctx, email, 0)
	if err != nil {
		return 0, fmt.Errorf("register lookup: %w", err)
	}
	if taken {
		return 0, errEmailRegistered
	}
	if strings.TrimSpace(in.Nombre) == "" || in.Password == "" {
		return 0, apperr.E(apperr.InvalidInput, "Email, contraseña y nombre son obligatorios")
	}
	if len(in.Password) < MinPasswordLen {
		return 0, apperr.E(apperr.InvalidInput, "La contraseña debe tener al menos 6 caracteres")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Email:          email,
		PasswordHash:   hash,
		Name:           strings.TrimSpace(in.Nombre),
		Phone:          in.Telefono,
		Address:        in.Direccion,
		Role:           model.RoleClient,
		ZoneID:         in.ZonaID,
		NeighborhoodID: in.BarrioID,
	}
	if err := a.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, errEmailRegistered
		}
		if errors.Is(err, store.ErrBadReference) {
			return 0, apperr.E(apperr.InvalidInput, "Zona o barrio inválido")
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return u.ID, nil
}
