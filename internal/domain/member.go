package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SubscriptionFree    = "free"
	SubscriptionMonthly = "monthly"
	SubscriptionAnnual  = "annual"
)

// Member represents a library adherent
type Member struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	FirstName           string     `json:"first_name" db:"first_name" validate:"required,max=100"`
	LastName            string     `json:"last_name" db:"last_name" validate:"required,max=100"`
	Email               string     `json:"email,omitempty" db:"email" validate:"omitempty,email"`
	Phone               string     `json:"phone,omitempty" db:"phone" validate:"max=32"`
	SubscriptionActive  bool       `json:"subscription_active" db:"subscription_active"`
	SubscriptionType    string     `json:"subscription_type" db:"subscription_type" validate:"omitempty,oneof=free monthly annual"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty" db:"subscription_end_date"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last"
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// HasActiveSubscription reports whether the member may borrow at now. An end
// date in the past disables the subscription even when the flag is still set.
func (m *Member) HasActiveSubscription(now time.Time) bool {
	if !m.SubscriptionActive {
		return false
	}
	if m.SubscriptionEndDate != nil && m.SubscriptionEndDate.Before(now) {
		return false
	}
	return true
}

type MemberPatch struct {
	FirstName           *string    `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName            *string    `json:"last_name" validate:"omitempty,min=1,max=100"`
	Email               *string    `json:"email" validate:"omitempty,email"`
	Phone               *string    `json:"phone" validate:"omitempty,max=32"`
	SubscriptionActive  *bool      `json:"subscription_active"`
	SubscriptionType    *string    `json:"subscription_type" validate:"omitempty,oneof=free monthly annual"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date"`
}

// Fields returns the provided fields keyed by column name
func (p MemberPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	setString(fields, "first_name", p.FirstName)
	setString(fields, "last_name", p.LastName)
	setString(fields, "email", p.Email)
	setString(fields, "phone", p.Phone)
	setBool(fields, "subscription_active", p.SubscriptionActive)
	setString(fields, "subscription_type", p.SubscriptionType)
	setTime(fields, "subscription_end_date", p.SubscriptionEndDate)
	return fields
}

// MemberFilter narrows FindAll on members. EndsBefore/EndsAfter bound the
// subscription end date.
type MemberFilter struct {
	Query              string
	SubscriptionActive *bool
	EndsAfter          *time.Time
	EndsBefore         *time.Time
	Limit              int
	Offset             int
}

type CreateMemberRequest struct {
	FirstName           string     `json:"first_name" validate:"required"`
	LastName            string     `json:"last_name" validate:"required"`
	Email               string     `json:"email" validate:"omitempty,email"`
	Phone               string     `json:"phone"`
	SubscriptionActive  bool       `json:"subscription_active"`
	SubscriptionType    string     `json:"subscription_type" validate:"omitempty,oneof=free monthly annual"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date"`
}

func (r CreateMemberRequest) ToMember() *Member {
	subscriptionType := r.SubscriptionType
	if subscriptionType == "" {
		subscriptionType = SubscriptionFree
	}
	return &Member{
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		Email:               r.Email,
		Phone:               r.Phone,
		SubscriptionActive:  r.SubscriptionActive,
		SubscriptionType:    subscriptionType,
		SubscriptionEndDate: r.SubscriptionEndDate,
	}
}
