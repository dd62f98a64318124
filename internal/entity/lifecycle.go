package entity

// LifecycleState is the state of a ticker within the simulated portfolio.
type LifecycleState string

const (
	StateWatchlisted LifecycleState = "WATCHLISTED"
	StateHeld        LifecycleState = "HELD"
	StateClosed      LifecycleState = "CLOSED"
)

// CloseReason tells which trigger closed a position.
type CloseReason string

const (
	CloseReasonOracle   CloseReason = "oracle_sell"
	CloseReasonStopLoss CloseReason = "stop_loss"
	CloseReasonTarget   CloseReason = "target_reached"
)
