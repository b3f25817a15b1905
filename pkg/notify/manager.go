package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/email"
	"github.com/xspensesai/billingkit/pkg/logger"
)

// Manager records billing notifications and optionally mirrors them to
// email. The stored record is authoritative; a failed email send is logged
// and swallowed so billing flows never fail on a delivery problem.
type Manager struct {
	storage Storage
	sender  email.EmailSender
	log     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEmailSender mirrors notifications to email. Without it the Manager
// only writes records.
func WithEmailSender(sender email.EmailSender) ManagerOption {
	return func(m *Manager) {
		if sender != nil {
			m.sender = sender
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a Manager.
// Panics if storage is nil to fail fast during initialization.
func NewManager(storage Storage, opts ...ManagerOption) *Manager {
	if storage == nil {
		panic("notify: storage is required")
	}

	m := &Manager{
		storage: storage,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UsageAlert records that a resource crossed into overage and by how much.
func (m *Manager) UsageAlert(ctx context.Context, accountID uuid.UUID, accountEmail string, p UsageAlertPayload) error {
	subject := fmt.Sprintf("Usage alert: %s at %d%% of your plan limit", p.Resource, p.Percent)
	body := fmt.Sprintf(
		"<p>You have used %d of your %d included %s this billing period (%d%%). "+
			"Additional usage is billed as overage.</p>",
		p.Usage, p.Limit, resourceNoun(p.Resource), p.Percent)
	return m.notify(ctx, accountID, accountEmail, TypeUsageAlert, p, subject, body)
}

// PaymentFailed records a failed payment and the grace window granted.
func (m *Manager) PaymentFailed(ctx context.Context, accountID uuid.UUID, accountEmail string, p PaymentFailedPayload) error {
	subject := "Payment failed - action required"
	body := fmt.Sprintf(
		"<p>Your latest payment did not go through. Please update your payment "+
			"method before %s to keep your plan active.</p>",
		p.GracePeriodEndsAt.Format("January 2, 2006"))
	return m.notify(ctx, accountID, accountEmail, TypePaymentFailed, p, subject, body)
}

// PaymentSucceeded records a cleared invoice.
func (m *Manager) PaymentSucceeded(ctx context.Context, accountID uuid.UUID, accountEmail string, p PaymentSucceededPayload) error {
	subject := "Payment received"
	body := "<p>Thanks, your payment went through and your plan is active.</p>"
	return m.notify(ctx, accountID, accountEmail, TypePaymentSucceeded, p, subject, body)
}

// TrialEnding records an approaching trial expiry.
func (m *Manager) TrialEnding(ctx context.Context, accountID uuid.UUID, accountEmail string, p TrialEndingPayload) error {
	subject := "Your trial is ending soon"
	body := fmt.Sprintf(
		"<p>Your trial ends on %s. Add a payment method to keep your plan.</p>",
		p.TrialEndsAt.Format("January 2, 2006"))
	return m.notify(ctx, accountID, accountEmail, TypeTrialEnding, p, subject, body)
}

// UpcomingInvoice records a renewal invoice the provider is about to
// finalize.
func (m *Manager) UpcomingInvoice(ctx context.Context, accountID uuid.UUID, accountEmail string, p UpcomingInvoicePayload) error {
	subject := "Upcoming renewal"
	body := "<p>Your subscription renews soon. No action is needed if your payment method is current.</p>"
	return m.notify(ctx, accountID, accountEmail, TypeUpcomingInvoice, p, subject, body)
}

// List returns the account's notification history, newest first.
func (m *Manager) List(ctx context.Context, accountID uuid.UUID, limit int) ([]Notification, error) {
	return m.storage.ListFor(ctx, accountID, limit)
}

func (m *Manager) notify(ctx context.Context, accountID uuid.UUID, accountEmail string, typ Type, payload any, subject, bodyHTML string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	n := &Notification{
		AccountID: accountID,
		Type:      typ,
		Payload:   data,
	}
	if err := m.storage.Save(ctx, n); err != nil {
		return err
	}

	if m.sender == nil || accountEmail == "" {
		return nil
	}
	err = m.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   accountEmail,
		Subject:  subject,
		BodyHTML: bodyHTML,
		Tag:      string(typ),
	})
	if err != nil {
		// The record is already stored; delivery is best-effort.
		m.log.WarnContext(ctx, "notification email not delivered",
			slog.String("type", string(typ)),
			logger.AccountID(accountID),
			logger.Error(err),
		)
	}
	return nil
}

func resourceNoun(res catalog.Resource) string {
	switch res {
	case catalog.ResourceOCRPages:
		return "OCR pages"
	case catalog.ResourceAPICalls:
		return "API calls"
	case catalog.ResourceStorageGB:
		return "GB of storage"
	default:
		return string(res)
	}
}
