package models

import (
	"database/sql/driver"
	"time"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentExpired  PaymentStatus = "expired"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentExpired, PaymentRefunded:
		return true
	}
	return false
}

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationRejected:
		return true
	}
	return false
}

type Player struct {
	Name      string `json:"name"`
	GameID    string `json:"gameId"`
	Email     string `json:"email,omitempty"`
	IsCaptain bool   `json:"isCaptain"`
}

// Players хранится в колонке teams.players (JSONB), порядок значим: первый игрок капитан.
type Players []Player

func (p Players) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return jsonbValue(p)
}

func (p *Players) Scan(src interface{}) error {
	return scanJSONB(src, p)
}

type Team struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Players            Players            `json:"players"`
	CaptainEmail       string             `json:"captainEmail"`
	EntryFee           int64              `json:"entryFee"`
	LogoKey            *string            `json:"-"`
	LogoURL            *string            `json:"logoUrl,omitempty"`
	PaymentStatus      PaymentStatus      `json:"paymentStatus"`
	RegistrationStatus RegistrationStatus `json:"registrationStatus"`
	PaymentID          *string            `json:"paymentId,omitempty"`
	ApprovedBy         *string            `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time         `json:"approvedAt,omitempty"`
	RejectedBy         *string            `json:"rejectedBy,omitempty"`
	RejectedAt         *time.Time         `json:"rejectedAt,omitempty"`
	RejectionReason    *string            `json:"rejectionReason,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Captain returns the first player, who is always the captain.
func (t *Team) Captain() *Player {
	if len(t.Players) == 0 {
		return nil
	}
	return &t.Players[0]
}

// Eligible reports whether the team may take part in a bracket.
func (t *Team) Eligible() bool {
	return t.RegistrationStatus == RegistrationApproved && t.PaymentStatus == PaymentPaid
}

type TeamFilter struct {
	RegistrationStatus *RegistrationStatus
	PaymentStatus      *PaymentStatus
	Limit              int
	Offset             int
}

type TeamStats struct {
	Total              int                        `json:"total"`
	ByRegistration     map[RegistrationStatus]int `json:"byRegistrationStatus"`
	ByPayment          map[PaymentStatus]int      `json:"byPaymentStatus"`
	CollectedEntryFees int64                      `json:"collectedEntryFees"`
}
