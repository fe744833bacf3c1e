// Package store persists ingested orders to SQLite. The table acts as an
// append sink: inserts conflict-skip on order_id so replayed batches are
// idempotent.
package store

import (
	"encoding/json"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bidflow/internal/apperrors"
	"bidflow/internal/model"
	"bidflow/logger"
)

// OrderRecord is the persisted shape of a canonical order.
type OrderRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       string    `gorm:"uniqueIndex;not null" json:"order_id"`
	Platform      string    `gorm:"index;not null" json:"platform"`
	BiddingPrice  string    `gorm:"not null" json:"bidding_price"`
	SeatCount     int       `gorm:"not null" json:"seat_count"`
	City          string    `gorm:"index;not null" json:"city"`
	CinemaName    string    `gorm:"index;not null" json:"cinema_name"`
	HallType      string    `gorm:"not null" json:"hall_type"`
	MovieName     string    `gorm:"not null" json:"movie_name"`
	ShowTimestamp string    `json:"show_timestamp"`
	RawData       string    `gorm:"not null" json:"raw_data"`
	CreatedAt     time.Time `gorm:"index;autoCreateTime" json:"created_at"`
}

func (OrderRecord) TableName() string {
	return "orders"
}

// Store wraps the SQLite handle and the order queries the API serves.
type Store struct {
	db  *gorm.DB
	log *logger.Log
}

// Open opens (creating if needed) the database at path and migrates the
// orders table. Use ":memory:" or a "file:...mode=memory" DSN in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&OrderRecord{}); err != nil {
		return nil, err
	}

	log := logger.GetLogger()
	log.WithComponent("store").WithFields(logger.Fields{"path": path}).Info("order store opened")

	return &Store{db: db, log: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveOrders inserts the batch, skipping rows whose order_id already
// exists, and returns the number of rows actually inserted.
func (s *Store) SaveOrders(orders []model.Order) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	records := make([]OrderRecord, 0, len(orders))
	for _, o := range orders {
		if !o.Valid() {
			s.log.WithComponent("store").WithError(apperrors.NewValidation("order without id reached the store")).Warn("skipping invalid order")
			continue
		}
		raw, err := json.Marshal(o.Raw)
		if err != nil {
			raw = []byte("{}")
		}
		records = append(records, OrderRecord{
			OrderID:       o.OrderID,
			Platform:      string(o.Platform),
			BiddingPrice:  o.BiddingPrice.String(),
			SeatCount:     o.SeatCount,
			City:          o.City,
			CinemaName:    o.CinemaName,
			HallType:      o.HallType,
			MovieName:     o.MovieName,
			ShowTimestamp: o.ShowTimestamp,
			RawData:       string(raw),
		})
	}

	if len(records) == 0 {
		return 0, nil
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(&records)
	if result.Error != nil {
		return 0, result.Error
	}

	inserted := int(result.RowsAffected)
	if inserted > 0 {
		logger.IncrementOrdersStored(inserted)
	}
	return inserted, nil
}

// RecentOrders returns up to limit orders, newest first.
func (s *Store) RecentOrders(limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []OrderRecord
	err := s.db.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// CountOrders returns the total number of stored orders.
func (s *Store) CountOrders() (int64, error) {
	var count int64
	err := s.db.Model(&OrderRecord{}).Count(&count).Error
	return count, err
}

// Filter narrows ListOrders. Zero values mean no constraint.
type Filter struct {
	Platform string
	City     string
	Cinema   string
	Limit    int
	Offset   int
}

// ListOrders returns orders matching the filter, newest first.
func (s *Store) ListOrders(f Filter) ([]OrderRecord, error) {
	query := s.db.Model(&OrderRecord{})
	if f.Platform != "" {
		query = query.Where("platform = ?", f.Platform)
	}
	if f.City != "" {
		query = query.Where("city = ?", f.City)
	}
	if f.Cinema != "" {
		query = query.Where("cinema_name LIKE ?", "%"+f.Cinema+"%")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}

	var records []OrderRecord
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}
