package model

import "time"

type Round struct {
	ID                int64      `json:"id"`
	RoundID           string     `json:"round_id"`
	Commitment        string     `json:"commitment"`
	EncryptedSeed     string     `json:"-"`
	RevealedSeedHash  *string    `json:"revealed_seed_hash,omitempty"`
	RevealedAt        *time.Time `json:"revealed_at,omitempty"`
	PeriodTag         string     `json:"period_tag,omitempty"`
	ClientSeedAllowed bool       `json:"client_seed_allowed"`
	CreatedAt         time.Time  `json:"created_at"`
}
