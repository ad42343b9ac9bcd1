package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"planificanet/internal/apperr"
	"planificanet/internal/auth"
	"planificanet/internal/middleware"
	"planificanet/internal/model"
	"planificanet/internal/service"
)

type Accounts interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Register(ctx context.Context, in service.RegisterInput) (int64, error)
}

type Appointments interface {
	Create(ctx context.Context, caller auth.Identity, in service.CreateInput) (*service.CreateResult, error)
	UpdateStatus(ctx context.Context, caller auth.Identity, id int64, estado string) error
	Cancel(ctx context.Context, caller auth.Identity, id int64) error
	List(ctx context.Context, caller auth.Identity) ([]model.AppointmentView, error)
	Next(ctx context.Context, caller auth.Identity) (*model.AppointmentView, error)
}

type Notifications interface {
	List(ctx context.Context, caller auth.Identity) ([]model.Notification, error)
	MarkRead(ctx context.Context, caller auth.Identity, id int64) error
}

type Profiles interface {
	Get(ctx context.Context, caller auth.Identity, id int64) (*service.Profile, error)
	Update(ctx context.Context, caller auth.Identity, id int64, in service.UpdateInput) error
	ChangePassword(ctx context.Context, caller auth.Identity, id int64, actual, nueva string) error
}

type Catalog interface {
	Zones(ctx context.Context) ([]model.Zone, error)
	Neighborhoods(ctx context.Context, zoneID int64) ([]model.Neighborhood, error)
	Services(ctx context.Context) ([]model.Service, error)
}

// Deps is everything the HTTP surface needs.
type Deps struct {
	Accounts      Accounts
	Appointments  Appointments
	Notifications Notifications
	Profiles      Profiles
	Catalog       Catalog
	Limiter       *middleware.RateLimiter
	Secret        string
	Log           *zap.Logger
}

type Handler struct {
	Deps
	now func() time.Time
}

func New(d Deps) *Handler {
	return &Handler{Deps: d, now: time.Now}
}

// RegisterRoutes mounts every /api route on router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	public := api.NewRoute().Subrouter()
	public.HandleFunc("/health", h.health).Methods(http.MethodGet)
	public.HandleFunc("/zonas", h.listZones).Methods(http.MethodGet)
	public.HandleFunc("/barrios/{id_zona}", h.listNeighborhoods).Methods(http.MethodGet)
	public.HandleFunc("/servicios", h.listServices).Methods(http.MethodGet)

	authR := api.PathPrefix("/auth").Subrouter()
	authR.Use(middleware.RateLimit(h.Limiter))
	authR.HandleFunc("/login", h.login).Methods(http.MethodPost)
	authR.HandleFunc("/register", h.register).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(middleware.Auth(h.Secret))

	clientsOnly := middleware.RequireRole("Solo clientes pueden crear turnos", model.RoleClient)
	staffOnly := middleware.RequireRole("No tienes permiso para actualizar estados", model.RoleTechnician, model.RoleAdmin)

	private.HandleFunc("/turnos", h.listAppointments).Methods(http.MethodGet)
	private.HandleFunc("/turnos/proximo", h.nextAppointment).Methods(http.MethodGet)
	private.Handle("/turnos", clientsOnly(http.HandlerFunc(h.createAppointment))).Methods(http.MethodPost)
	private.Handle("/turnos/{id}/status", staffOnly(http.HandlerFunc(h.updateStatus))).Methods(http.MethodPut)
	private.HandleFunc("/turnos/{id}/cancelar", h.cancelAppointment).Methods(http.MethodPut)

	private.HandleFunc("/usuarios/{id}", h.getProfile).Methods(http.MethodGet)
	private.HandleFunc("/usuarios/{id}", h.updateProfile).Methods(http.MethodPut)
	private.HandleFunc("/usuarios/{id}/password", h.changePassword).Methods(http.MethodPut)

	private.HandleFunc("/notificaciones", h.listNotifications).Methods(http.MethodGet)
	private.HandleFunc("/notificaciones/{id}/leida", h.markNotificationRead).Methods(http.MethodPut)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type message struct {
	Message string `json:"message"`
}

// fail answers with the error's status and user-facing message.
// Internal failures are logged; their details never reach the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		h.Log.Error("request failed",
			zap.String("request_id", w.Header().Get(middleware.RequestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, kind.HTTPStatus(), map[string]string{"error": apperr.Message(err)})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "Solicitud inválida", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.E(apperr.InvalidInput, "Identificador inválido")
	}
	return id, nil
}

// caller is only called behind middleware.Auth.
func caller(r *http.Request) auth.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}
