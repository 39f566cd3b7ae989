package model

import (
	"time"

	"go-fairdice/internal/config"
)

type ForcedActionStatus string

const (
	ForcePending  ForcedActionStatus = "pending"
	ForceApproved ForcedActionStatus = "approved"
	ForceRejected ForcedActionStatus = "rejected"
	ForceApplied  ForcedActionStatus = "applied"
)

type Confirmation struct {
	AdminID     int64     `json:"admin_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type ForcedAction struct {
	ID                    int64              `json:"id"`
	ChatID                int64              `json:"chat_id"`
	RequestedBy           int64              `json:"requested_by"`
	Target                config.TargetClass `json:"target"`
	RequestedAt           time.Time          `json:"requested_at"`
	Confirmations         []Confirmation     `json:"confirmations"`
	RequiredConfirmations int                `json:"required_confirmations"`
	Status                ForcedActionStatus `json:"status"`
	AppliedRound          string             `json:"applied_round,omitempty"`
}

// ConfirmedBy reports whether the admin already confirmed this action.
func (a *ForcedAction) ConfirmedBy(adminID int64) bool {
	for _, c := range a.Confirmations {
		if c.AdminID == adminID {
			return true
		}
	}

	return false
}
