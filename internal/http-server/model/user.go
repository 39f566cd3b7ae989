package model

import "time"

type User struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	Username   string    `json:"username,omitempty"`
	Balance    int64     `json:"balance"`
	ClientSeed string    `json:"client_seed,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Pot struct {
	ID        int64      `json:"id"`
	Balance   int64      `json:"balance"`
	UpdatedAt *time.Time `json:"updated_at"`
}
