package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PushDelivery is the latest known outcome of a push job.
type PushDelivery struct {
	RequestID  string `gorm:"primaryKey"`
	Status     string
	Target     string
	StatusCode int
	ErrorCode  string
	Detail     string
	UpdatedAt  time.Time
}

// DeliveryUpdate is one status transition written by the dispatch worker.
type DeliveryUpdate struct {
	RequestID  string
	Status     string
	Target     string
	StatusCode int
	ErrorCode  string
	Detail     string
}

type StatusStore struct {
	db        *gorm.DB
	tableName string
}

func NewStatusStore(db *gorm.DB, tableName string) (*StatusStore, error) {
	if tableName == "" {
		tableName = "push_deliveries"
	}
	if err := db.Table(tableName).AutoMigrate(&PushDelivery{}); err != nil {
		return nil, err
	}
	return &StatusStore{
		db:        db,
		tableName: tableName,
	}, nil
}

// UpdateStatus upserts the delivery row for u.RequestID.
func (s *StatusStore) UpdateStatus(ctx context.Context, u DeliveryUpdate) error {
	row := PushDelivery{
		RequestID:  u.RequestID,
		Status:     u.Status,
		Target:     u.Target,
		StatusCode: u.StatusCode,
		ErrorCode:  u.ErrorCode,
		Detail:     u.Detail,
		UpdatedAt:  time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "target", "status_code", "error_code", "detail", "updated_at"}),
		}).Create(&row).Error
}
