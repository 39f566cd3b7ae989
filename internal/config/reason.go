package config

type PayoutReason string

const (
	Win    PayoutReason = "win"
	Retry  PayoutReason = "retry"
	Refund PayoutReason = "refund"
)
