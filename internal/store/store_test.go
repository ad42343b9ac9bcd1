package store_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"planificanet/internal/model"
	"planificanet/internal/store"
)

func setup(t *testing.T) (*store.Store, *pgxpool.Pool) {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := store.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(pool), pool
}

func newUser(t *testing.T, st *store.Store, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Email:        fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8]),
		PasswordHash: "x",
		Name:         "Test " + role.String(),
		Phone:        "555-0100",
		Role:         role,
	}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// farDate picks a day no other run is likely to have booked.
func farDate() model.Date {
	base := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.Date{Time: base.AddDate(0, 0, rand.Intn(200000))}
}

func serviceID(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var id int64
	if err := pool.QueryRow(context.Background(),
		`SELECT id_servicio FROM servicios ORDER BY id_servicio LIMIT 1`).Scan(&id); err != nil {
		t.Fatalf("service: %v", err)
	}
	return id
}

func noNotes(*model.Appointment) []model.Notification { return nil }

func book(st *store.Store, clientID, svc int64, d model.Date, slot model.Slot, notify func(*model.Appointment) []model.Notification) (*model.Appointment, []model.Notification, error) {
	a := &model.Appointment{ClientID: clientID, ServiceID: svc, Date: d, Slot: slot, Description: "test"}
	notes, err := st.BookAppointment(context.Background(), store.Booking{Appointment: a, Notify: notify})
	return a, notes, err
}

func TestMigrateIdempotent(t *testing.T) {
	_, pool := setup(t)
	applied, err := store.Migrate(context.Background(), pool)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected nothing to apply, got %v", applied)
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	st, _ := setup(t)
	u := newUser(t, st, model.RoleClient)

	dup := &model.User{Email: u.Email, PasswordHash: "x", Name: "Dup", Role: model.RoleClient}
	if err := st.CreateUser(context.Background(), dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := st.UserByEmail(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	if got.ID != u.ID || got.Role != model.RoleClient {
		t.Errorf("unexpected user %+v", got)
	}

	taken, err := st.EmailTaken(context.Background(), u.Email, u.ID)
	if err != nil || taken {
		t.Errorf("own email should not count as taken: %v %v", taken, err)
	}
}

func TestUserNotFound(t *testing.T) {
	st, _ := setup(t)
	if _, err := st.UserByID(context.Background(), -1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookAppointmentWritesNotifications(t *testing.T) {
	st, pool := setup(t)
	newUser(t, st, model.RoleTechnician)
	client := newUser(t, st, model.RoleClient)

	a, notes, err := book(st, client.ID, serviceID(t, pool), farDate(), model.SlotMorning,
		func(a *model.Appointment) []model.Notification {
			return []model.Notification{
				{UserID: a.ClientID, Message: "cliente"},
				{UserID: *a.TechnicianID, Message: "tecnico"},
			}
		})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.ID == 0 || a.TechnicianID == nil || a.Status != model.StatusPending {
		t.Fatalf("unexpected appointment %+v", a)
	}
	if len(notes) != 2 || notes[0].ID == 0 || notes[1].ID == 0 {
		t.Fatalf("notifications not persisted: %+v", notes)
	}

	list, err := st.ListNotifications(context.Background(), client.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Message != "cliente" || list[0].Read {
		t.Errorf("unexpected client notifications %+v", list)
	}
}

func TestConcurrentBookingNeverDoubleBooks(t *testing.T) {
	st, pool := setup(t)
	newUser(t, st, model.RoleTechnician)
	newUser(t, st, model.RoleTechnician)

	var techs int
	if err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM usuarios WHERE id_rol = 2`).Scan(&techs); err != nil {
		t.Fatalf("count: %v", err)
	}

	svc := serviceID(t, pool)
	day := farDate()
	n := techs + 3
	clients := make([]*model.User, n)
	for i := range clients {
		clients[i] = newUser(t, st, model.RoleClient)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned = map[int64]int{}
		failures int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(c *model.User) {
			defer wg.Done()
			a, _, err := book(st, c.ID, svc, day, model.SlotEvening, noNotes)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, store.ErrNoTechnician) {
					t.Errorf("unexpected error: %v", err)
				}
				failures++
				return
			}
			assigned[*a.TechnicianID]++
		}(clients[i])
	}
	wg.Wait()

	if len(assigned) == 0 {
		t.Fatal("no booking succeeded")
	}
	for tech, count := range assigned {
		if count != 1 {
			t.Errorf("technician %d booked %d times in one slot", tech, count)
		}
	}
	if failures < n-techs {
		t.Errorf("expected at least %d rejections, got %d", n-techs, failures)
	}
}

func TestConcurrentBookingDifferentSlots(t *testing.T) {
	st, pool := setup(t)
	newUser(t, st, model.RoleTechnician)
	svc := serviceID(t, pool)
	start := farDate()
	slots := []model.Slot{model.SlotMorning, model.SlotAfternoon, model.SlotEvening}

	const n = 9
	clients := make([]*model.User, n)
	for i := range clients {
		clients[i] = newUser(t, st, model.RoleClient)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := model.Date{Time: start.AddDate(0, 0, i/len(slots))}
			_, _, errs[i] = book(st, clients[i].ID, svc, d, slots[i%len(slots)], noNotes)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("booking %d: %v", i, err)
		}
	}
}

func TestListAppointmentsOrdering(t *testing.T) {
	st, pool := setup(t)
	newUser(t, st, model.RoleTechnician)
	client := newUser(t, st, model.RoleClient)
	svc := serviceID(t, pool)
	start := farDate()

	for _, b := range []struct {
		days int
		slot model.Slot
	}{
		{0, model.SlotAfternoon},
		{2, model.SlotMorning},
		{0, model.SlotEvening},
		{1, model.SlotMorning},
		{2, model.SlotEvening},
		{0, model.SlotMorning},
	} {
		d := model.Date{Time: start.AddDate(0, 0, b.days)}
		if _, _, err := book(st, client.ID, svc, d, b.slot, noNotes); err != nil {
			t.Fatalf("book %v %s: %v", d, b.slot, err)
		}
	}

	// (fecha, franja as text) never increases down the list
	descending := func(name string, list []model.AppointmentView) {
		t.Helper()
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			if cur.Date.After(prev.Date.Time) ||
				(cur.Date.Equal(prev.Date.Time) && string(cur.Slot) > string(prev.Slot)) {
				t.Errorf("%s: row %d (%s %s) sorts after row %d (%s %s)",
					name, i, cur.Date.Display(), cur.Slot, i-1, prev.Date.Display(), prev.Slot)
			}
		}
	}

	own, err := st.ListAppointments(context.Background(), model.RoleClient, client.ID)
	if err != nil {
		t.Fatalf("client list: %v", err)
	}
	if len(own) != 6 {
		t.Fatalf("expected 6 client rows, got %d", len(own))
	}
	descending("client", own)
	if own[0].Slot != model.SlotEvening || !own[0].Date.Equal(start.AddDate(0, 0, 2)) {
		t.Errorf("expected latest evening first, got %+v", own[0])
	}
	for _, v := range own {
		if v.ClientPhone != "" {
			t.Errorf("client listing leaked a phone: %+v", v)
		}
	}

	all, err := st.ListAppointments(context.Background(), model.RoleAdmin, 0)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) < len(own) {
		t.Fatalf("admin sees %d rows, client alone has %d", len(all), len(own))
	}
	descending("admin", all)
}

func TestCancelledAppointmentFreesTechnician(t *testing.T) {
	st, pool := setup(t)
	newUser(t, st, model.RoleTechnician)
	client := newUser(t, st, model.RoleClient)
	svc := serviceID(t, pool)
	day := farDate()

	// occupy every technician in this slot
	var booked []*model.Appointment
	for {
		a, _, err := book(st, client.ID, svc, day, model.SlotAfternoon, noNotes)
		if errors.Is(err, store.ErrNoTechnician) {
			break
		}
		if err != nil {
			t.Fatalf("book: %v", err)
		}
		booked = append(booked, a)
	}
	if len(booked) == 0 {
		t.Fatal("nothing booked")
	}

	first := booked[0]
	_, err := st.TransitionAppointment(context.Background(), first.ID,
		func(a *model.Appointment) (model.Status, []model.Notification, error) {
			return model.StatusCancelled, nil, nil
		})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	a, _, err := book(st, client.ID, svc, day, model.SlotAfternoon, noNotes)
	if err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
	if *a.TechnicianID != *first.TechnicianID {
		t.Errorf("expected freed technician %d, got %d", *first.TechnicianID, *a.TechnicianID)
	}
}

func TestTransitionAbortLeavesStatus(t *testing.T) {
	st, pool := setup(t)
	newUser(t, st, model.RoleTechnician)
	client := newUser(t, st, model.RoleClient)
	a, _, err := book(st, client.ID, serviceID(t, pool), farDate(), model.SlotMorning, noNotes)
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	abort := errors.New("nope")
	_, err = st.TransitionAppointment(context.Background(), a.ID,
		func(a *model.Appointment) (model.Status, []model.Notification, error) {
			return model.StatusConfirmed, nil, abort
		})
	if !errors.Is(err, abort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	list, err := st.ListAppointments(context.Background(), model.RoleClient, client.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.StatusPending {
		t.Errorf("status changed despite abort: %+v", list)
	}
}

func TestTransitionNotFound(t *testing.T) {
	st, _ := setup(t)
	_, err := st.TransitionAppointment(context.Background(), -1,
		func(a *model.Appointment) (model.Status, []model.Notification, error) {
			return model.StatusConfirmed, nil, nil
		})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTechnicianListingAndNext(t *testing.T) {
	st, pool := setup(t)
	newUser(t, st, model.RoleTechnician)
	client := newUser(t, st, model.RoleClient)
	svc := serviceID(t, pool)
	day := farDate()

	noche, _, err := book(st, client.ID, svc, day, model.SlotEvening, noNotes)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	manana, _, err := book(st, client.ID, svc, day, model.SlotMorning, noNotes)
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	next, err := st.NextAppointment(context.Background(), model.RoleClient, client.ID, day)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next == nil || next.ID != manana.ID {
		t.Fatalf("expected morning appointment first, got %+v", next)
	}

	// a fresh day leaves the lowest-id technician free in every slot
	if *noche.TechnicianID != *manana.TechnicianID {
		t.Fatalf("expected one technician for both slots, got %d and %d", *manana.TechnicianID, *noche.TechnicianID)
	}
	list, err := st.ListAppointments(context.Background(), model.RoleTechnician, *noche.TechnicianID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var seen []int64
	for _, v := range list {
		if v.Date.Equal(day.Time) {
			seen = append(seen, v.ID)
			if v.ClientPhone == "" {
				t.Errorf("technician listing should include the client phone: %+v", v)
			}
		}
	}
	if len(seen) != 2 || seen[0] != manana.ID || seen[1] != noche.ID {
		t.Errorf("unexpected technician order %v", seen)
	}

	after := model.Date{Time: day.AddDate(0, 0, 1)}
	if next, err := st.NextAppointment(context.Background(), model.RoleClient, client.ID, after); err != nil || next != nil {
		t.Errorf("expected no upcoming appointment, got %+v %v", next, err)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	st, pool := setup(t)
	newUser(t, st, model.RoleTechnician)
	client := newUser(t, st, model.RoleClient)
	_, notes, err := book(st, client.ID, serviceID(t, pool), farDate(), model.SlotMorning,
		func(a *model.Appointment) []model.Notification {
			return []model.Notification{{UserID: a.ClientID, Message: "hola"}}
		})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	id := notes[0].ID
	owner, err := st.NotificationOwner(context.Background(), id)
	if err != nil || owner != client.ID {
		t.Fatalf("owner: %d %v", owner, err)
	}
	for i := 0; i < 2; i++ {
		if err := st.MarkNotificationRead(context.Background(), id); err != nil {
			t.Fatalf("mark read #%d: %v", i+1, err)
		}
	}
	list, _ := st.ListNotifications(context.Background(), client.ID)
	if len(list) != 1 || !list[0].Read {
		t.Errorf("expected read notification, got %+v", list)
	}
	if err := st.MarkNotificationRead(context.Background(), -1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
