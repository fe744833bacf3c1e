package haha

import (
	"github.com/shopspring/decimal"

	"bidflow/internal/adapter"
	"bidflow/internal/model"
	"bidflow/logger"
)

// normalize maps raw records to canonical orders. A record without an ID is
// skipped; malformed numeric fields fall back to zero price or one seat
// with the record retained, so state of the batch never depends on one bad
// record.
func (r *Reader) normalize(records []map[string]interface{}) []model.Order {
	log := r.log.WithComponent("haha_normalizer")

	orders := make([]model.Order, 0, len(records))
	for _, record := range records {
		orderID := adapter.StringField(record, "id", "orderId")
		if orderID == "" {
			log.Warn("record without order id skipped")
			continue
		}

		price, ok := adapter.DecimalField(record, "bidding_price", "price")
		if !ok {
			log.WithFields(logger.Fields{"order_id": orderID}).Warn("price field missing or malformed, defaulting to 0")
			price = decimal.Zero
		}

		seats, ok := adapter.IntField(record, "seat_count", "num")
		if !ok || seats < 1 {
			seats = 1
		}

		orders = append(orders, model.Order{
			OrderID:       orderID,
			Platform:      model.PlatformHaha,
			City:          adapter.StringField(record, "city"),
			CinemaName:    adapter.StringField(record, "cinema_name"),
			HallType:      adapter.StringField(record, "hall_type"),
			MovieName:     adapter.StringField(record, "movie_name"),
			BiddingPrice:  price,
			SeatCount:     seats,
			ShowTimestamp: adapter.StringField(record, "show_time", "timestamp"),
			Raw:           record,
		})
	}

	return orders
}
