package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies the marketplace an order came from.
type Platform string

const (
	PlatformHaha  Platform = "haha"
	PlatformMahua Platform = "mahua"
)

// Order is the canonical, platform-independent representation of a bid.
// It is constructed once by a normalizer and never mutated afterwards.
type Order struct {
	OrderID       string                 `json:"order_id"`
	Platform      Platform               `json:"platform"`
	City          string                 `json:"city"`
	CinemaName    string                 `json:"cinema_name"`
	HallType      string                 `json:"hall_type"`
	MovieName     string                 `json:"movie_name"`
	BiddingPrice  decimal.Decimal        `json:"bidding_price"`
	SeatCount     int                    `json:"seat_count"`
	ShowTimestamp string                 `json:"show_timestamp,omitempty"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
}

// Valid reports whether the order may enter the pipeline. An order without
// an ID must never pass normalization.
func (o Order) Valid() bool {
	return o.OrderID != ""
}

// OrderBatch groups the orders of one poll cycle, carried on the order
// channel towards the store writer.
type OrderBatch struct {
	Platform  Platform  `json:"platform"`
	Orders    []Order   `json:"orders"`
	FetchedAt time.Time `json:"fetched_at"`
}
