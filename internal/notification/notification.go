package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/mediatheque/internal/domain"
	customError "github.com/segyhp/mediatheque/pkg/errors"
)

// Contact is the addressee of a notice
type Contact struct {
	Email     string
	FirstName string
	LastName  string
}

// ContactOf extracts the contact details of a member
func ContactOf(m *domain.Member) Contact {
	return Contact{Email: m.Email, FirstName: m.FirstName, LastName: m.LastName}
}

// Reachable reports whether the contact has an address to send to
func (c Contact) Reachable() bool {
	return c.Email != ""
}

// Dispatcher sends member notices. Implementations must honour ctx
// cancellation and deadlines.
type Dispatcher interface {
	SendLoanConfirmation(ctx context.Context, to Contact, loanID uuid.UUID, dueDate time.Time) error
	SendReturnConfirmation(ctx context.Context, to Contact, loanID uuid.UUID, wasLate bool) error
	SendOverdueReminder(ctx context.Context, to Contact, loanID uuid.UUID, daysLate int, feePreview decimal.Decimal) error
	SendSubscriptionExpiryNotice(ctx context.Context, to Contact, endDate time.Time) error
}

// Message is a rendered e-mail
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders notices and hands them to a Sender
type Mailer struct {
	renderer *Renderer
	sender   Sender
}

func NewMailer(renderer *Renderer, sender Sender) *Mailer {
	return &Mailer{renderer: renderer, sender: sender}
}

func (m *Mailer) SendLoanConfirmation(ctx context.Context, to Contact, loanID uuid.UUID, dueDate time.Time) error {
	return m.send(ctx, kindLoanConfirmation, to, loanConfirmationData{
		FirstName: to.FirstName,
		LoanRef:   reference(loanID),
		DueDate:   dueDate,
	})
}

func (m *Mailer) SendReturnConfirmation(ctx context.Context, to Contact, loanID uuid.UUID, wasLate bool) error {
	return m.send(ctx, kindReturnConfirmation, to, returnConfirmationData{
		FirstName: to.FirstName,
		LoanRef:   reference(loanID),
		Late:      wasLate,
	})
}

func (m *Mailer) SendOverdueReminder(ctx context.Context, to Contact, loanID uuid.UUID, daysLate int, feePreview decimal.Decimal) error {
	return m.send(ctx, kindOverdueReminder, to, overdueReminderData{
		FirstName:  to.FirstName,
		LoanRef:    reference(loanID),
		DaysLate:   daysLate,
		FeePreview: feePreview,
	})
}

func (m *Mailer) SendSubscriptionExpiryNotice(ctx context.Context, to Contact, endDate time.Time) error {
	return m.send(ctx, kindSubscriptionExpiry, to, subscriptionExpiryData{
		FirstName: to.FirstName,
		EndDate:   endDate,
	})
}

func (m *Mailer) send(ctx context.Context, kind string, to Contact, data interface{}) error {
	if !to.Reachable() {
		return customError.WrapNotificationFailure(kind, ErrNoRecipient)
	}

	msg, err := m.renderer.Render(kind, to.Email, data)
	if err != nil {
		return customError.WrapNotificationFailure(kind, err)
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		return customError.WrapNotificationFailure(kind, err)
	}

	return nil
}

// reference is the short loan reference quoted to members
func reference(loanID uuid.UUID) string {
	return loanID.String()[:8]
}
