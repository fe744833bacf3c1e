package mahua

import (
	"github.com/shopspring/decimal"

	"bidflow/internal/adapter"
	"bidflow/internal/model"
	"bidflow/logger"
)

// normalize maps raw records to canonical orders, tolerating the field name
// drift this API exhibits between deployments.
func (r *Reader) normalize(records []map[string]interface{}) []model.Order {
	log := r.log.WithComponent("mahua_normalizer")

	orders := make([]model.Order, 0, len(records))
	for _, record := range records {
		orderID := adapter.StringField(record, "id", "orderId")
		if orderID == "" {
			log.Warn("record without order id skipped")
			continue
		}

		price, ok := adapter.DecimalField(record, "price", "bidPrice")
		if !ok {
			log.WithFields(logger.Fields{"order_id": orderID}).Warn("price field missing or malformed, defaulting to 0")
			price = decimal.Zero
		}

		seats, ok := adapter.IntField(record, "buyNum", "seatCount")
		if !ok || seats < 1 {
			seats = 1
		}

		orders = append(orders, model.Order{
			OrderID:       orderID,
			Platform:      model.PlatformMahua,
			City:          adapter.StringField(record, "movieCityName", "cityName"),
			CinemaName:    adapter.StringField(record, "cinemaName"),
			HallType:      adapter.StringField(record, "hallName"),
			MovieName:     adapter.StringField(record, "movieName"),
			BiddingPrice:  price,
			SeatCount:     seats,
			ShowTimestamp: adapter.StringField(record, "showTime"),
			Raw:           record,
		})
	}

	return orders
}
