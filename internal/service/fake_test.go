package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"planificanet/internal/auth"
	"planificanet/internal/catalog"
	"planificanet/internal/model"
	"planificanet/internal/store"
)

// memStore is an in-memory stand-in for store.Store.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*model.User
	appts    map[int64]*model.Appointment
	notes    []model.Notification
	services map[int64]string
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]*model.User{},
		appts:    map[int64]*model.Appointment{},
		services: map[int64]string{1: "Instalación", 2: "Reparación"},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

var hashes sync.Map

// hashOf memoizes bcrypt hashes so fixtures stay fast.
func hashOf(password string) string {
	if h, ok := hashes.Load(password); ok {
		return h.(string)
	}
	h, _ := auth.HashPassword(password)
	hashes.Store(password, h)
	return h
}

func (m *memStore) addUser(name string, role model.Role, password string) auth.Identity {
	hash := hashOf(password)
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{ID: m.id(), Email: name + "@example.com", Name: name, Phone: "555", Role: role, PasswordHash: hash}
	m.users[u.ID] = u
	return auth.Identity{ID: u.ID, Email: u.Email, Role: role}
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.users {
		if o.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.ID = m.id()
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) EmailTaken(_ context.Context, email string, exceptID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpdateProfile(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Name, cur.Email, cur.Phone, cur.Address = u.Name, u.Email, u.Phone, u.Address
	return nil
}

func (m *memStore) SetPassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memStore) insertNotes(notes []model.Notification) {
	for i := range notes {
		notes[i].ID = m.id()
		notes[i].SentAt = time.Now()
		m.notes = append(m.notes, notes[i])
	}
}

func (m *memStore) BookAppointment(_ context.Context, b store.Booking) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var techs []int64
	for id, u := range m.users {
		if u.Role == model.RoleTechnician {
			techs = append(techs, id)
		}
	}
	sort.Slice(techs, func(i, j int) bool { return techs[i] < techs[j] })

	a := b.Appointment
	for _, t := range techs {
		if m.busy(t, a.Date, a.Slot) {
			continue
		}
		tech := t
		a.ID = m.id()
		a.TechnicianID = &tech
		a.Status = model.StatusPending
		cp := *a
		m.appts[a.ID] = &cp
		notes := b.Notify(a)
		m.insertNotes(notes)
		return notes, nil
	}
	return nil, store.ErrNoTechnician
}

func (m *memStore) busy(tech int64, d model.Date, slot model.Slot) bool {
	for _, a := range m.appts {
		if a.TechnicianID != nil && *a.TechnicianID == tech && a.Date.Equal(d.Time) && a.Slot == slot && a.Status.Active() {
			return true
		}
	}
	return false
}

func (m *memStore) TransitionAppointment(_ context.Context, id int64, fn store.Transition) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	next, notes, err := fn(&cp)
	if err != nil {
		return nil, err
	}
	a.Status = next
	m.insertNotes(notes)
	return notes, nil
}

func (m *memStore) view(a *model.Appointment) model.AppointmentView {
	v := model.AppointmentView{
		ID: a.ID, Date: a.Date, Slot: a.Slot, Status: a.Status,
		Description: a.Description, ServiceName: m.services[a.ServiceID],
	}
	if c, ok := m.users[a.ClientID]; ok {
		v.ClientName, v.ClientPhone = c.Name, c.Phone
	}
	if a.TechnicianID != nil {
		if t, ok := m.users[*a.TechnicianID]; ok {
			v.TechnicianName = t.Name
		}
	}
	return v
}

func (m *memStore) ListAppointments(_ context.Context, role model.Role, userID int64) ([]model.AppointmentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []*model.Appointment
	for _, a := range m.appts {
		switch {
		case role == model.RoleAdmin,
			role == model.RoleTechnician && a.TechnicianID != nil && *a.TechnicianID == userID,
			role == model.RoleClient && a.ClientID == userID:
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date.Time) {
			if role == model.RoleTechnician {
				return rows[i].Date.Before(rows[j].Date.Time)
			}
			return rows[i].Date.After(rows[j].Date.Time)
		}
		if role == model.RoleTechnician {
			return rows[i].Slot.Rank() < rows[j].Slot.Rank()
		}
		return rows[i].Slot > rows[j].Slot
	})
	out := []model.AppointmentView{}
	for _, a := range rows {
		v := m.view(a)
		if role != model.RoleTechnician {
			v.ClientPhone = ""
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) NextAppointment(_ context.Context, role model.Role, userID int64, today model.Date) (*model.AppointmentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Appointment
	for _, a := range m.appts {
		owner := a.ClientID
		if role == model.RoleTechnician {
			if a.TechnicianID == nil {
				continue
			}
			owner = *a.TechnicianID
		}
		if owner != userID || a.Date.Before(today.Time) || !a.Status.Active() {
			continue
		}
		if best == nil || a.Date.Before(best.Date.Time) ||
			(a.Date.Equal(best.Date.Time) && a.Slot.Rank() < best.Slot.Rank()) {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	v := m.view(best)
	return &v, nil
}

func (m *memStore) ListNotifications(_ context.Context, userID int64) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Notification{}
	for i := len(m.notes) - 1; i >= 0; i-- {
		if m.notes[i].UserID == userID {
			out = append(out, m.notes[i])
		}
	}
	return out, nil
}

func (m *memStore) NotificationOwner(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notes {
		if n.ID == id {
			return n.UserID, nil
		}
	}
	return 0, store.ErrNotFound
}

func (m *memStore) MarkNotificationRead(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notes {
		if m.notes[i].ID == id {
			m.notes[i].Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) Service(_ context.Context, id int64) (*model.Service, error) {
	name, ok := m.services[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &model.Service{ID: id, Name: name}, nil
}

func (m *memStore) notesFor(userID int64) []model.Notification {
	out, _ := m.ListNotifications(context.Background(), userID)
	return out
}

func (m *memStore) status(id int64) model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appts[id].Status
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (r *recordingNotifier) Notify(notes []model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notes...)
}
