package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Sitevar is a runtime-editable configuration record with JSON contents.
type Sitevar struct {
	ID          string `gorm:"primaryKey"`
	Description string
	Values      string `gorm:"column:values_json"`
}

type SitevarStore struct {
	db *gorm.DB
}

func NewSitevarStore(db *gorm.DB) (*SitevarStore, error) {
	if err := db.AutoMigrate(&Sitevar{}); err != nil {
		return nil, err
	}
	return &SitevarStore{db: db}, nil
}

// Contents decodes the sitevar's JSON contents into out. Returns ErrNotFound
// when the sitevar does not exist.
func (s *SitevarStore) Contents(ctx context.Context, id string, out any) error {
	var sv Sitevar
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&sv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(sv.Values), out); err != nil {
		return fmt.Errorf("sitevar %s: %w", id, err)
	}
	return nil
}
