// Package notify mirrors in-app notifications to the recipient's mailbox.
// The database row stays the source of truth; mail delivery is best effort.
package notify

import (
	"context"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"planificanet/internal/model"
)

const subject = "PlanificaNet: novedades de tu turno"

// Mailer sends one plain-text message.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTP delivers through a gomail dialer.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(host string, port int, user, password, from string) *SMTP {
	return &SMTP{dialer: gomail.NewDialer(host, port, user, password), from: from}
}

func (s *SMTP) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// Users resolves a recipient's address.
type Users interface {
	UserByID(ctx context.Context, id int64) (*model.User, error)
}

// Dispatcher queues notifications and mails them from a single worker.
type Dispatcher struct {
	mailer Mailer
	users  Users
	log    *zap.Logger
	queue  chan model.Notification
}

func NewDispatcher(mailer Mailer, users Users, log *zap.Logger, size int) *Dispatcher {
	return &Dispatcher{
		mailer: mailer,
		users:  users,
		log:    log,
		queue:  make(chan model.Notification, size),
	}
}

// Notify enqueues notes without blocking; overflow is dropped and logged.
func (d *Dispatcher) Notify(notes []model.Notification) {
	for _, n := range notes {
		select {
		case d.queue <- n:
		default:
			d.log.Warn("mail queue full, dropping", zap.Int64("notification_id", n.ID))
		}
	}
}

// Run delivers queued notifications until ctx is canceled, then drains
// whatever is already queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.log.Info("mail dispatcher stopped")
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) drain() {
	// ctx is gone; lookups get a fresh one
	ctx := context.Background()
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n model.Notification) {
	u, err := d.users.UserByID(ctx, n.UserID)
	if err != nil {
		d.log.Error("mail recipient lookup failed", zap.Error(err), zap.Int64("user_id", n.UserID))
		return
	}
	if err := d.mailer.Send(u.Email, subject, n.Message); err != nil {
		d.log.Error("mail send failed", zap.Error(err), zap.Int64("notification_id", n.ID))
		return
	}
	d.log.Debug("mail sent", zap.Int64("notification_id", n.ID))
}

// Nop discards notifications; used when SMTP is not configured.
type Nop struct{}

func (Nop) Notify([]model.Notification) {}
