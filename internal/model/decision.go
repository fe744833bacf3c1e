package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision is emitted when an order clears a rule. It is handed straight to
// the notification sink and not retained by the engine.
type Decision struct {
	DecisionID  string          `json:"decision_id"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	SeatCount   int             `json:"seat_count"`
	RuleName    string          `json:"rule_name"`
	Order       Order           `json:"order"`
	MatchedAt   time.Time       `json:"matched_at"`
}
