package model

import "time"

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutDone    PayoutStatus = "done"
	PayoutFailed  PayoutStatus = "failed"
)

type Payout struct {
	ID          int64        `json:"id"`
	TxRef       string       `json:"tx_ref"`
	UserID      int64        `json:"user_id"`
	Amount      int64        `json:"amount"`
	RoundID     string       `json:"round_id,omitempty"`
	Status      PayoutStatus `json:"status"`
	Attempts    int          `json:"attempts"`
	LastError   string       `json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
