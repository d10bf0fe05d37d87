package repository

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"
)

// Team is the public team record served by the API.
type Team struct {
	Key        string `gorm:"primaryKey" json:"key"`
	TeamNumber int    `json:"team_number"`
	Nickname   string `json:"nickname"`
	Name       string `json:"name"`
	City       string `json:"city"`
	StateProv  string `json:"state_prov"`
	Country    string `json:"country"`
	Website    string `json:"website"`
	RookieYear int    `json:"rookie_year"`
}

type TeamStore struct {
	db *gorm.DB
}

func NewTeamStore(db *gorm.DB) (*TeamStore, error) {
	if err := db.AutoMigrate(&Team{}); err != nil {
		return nil, err
	}
	return &TeamStore{db: db}, nil
}

// Team fetches a team by key ("frc254"). Returns ErrNotFound when absent.
func (s *TeamStore) Team(ctx context.Context, key string) (*Team, error) {
	var team Team
	err := s.db.WithContext(ctx).Where(map[string]any{"key": key}).Take(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// TeamPageSize is the number of teams per list page.
const TeamPageSize = 500

// MaxTeamPage is the largest page whose team number range fits in an int.
const MaxTeamPage = math.MaxInt/TeamPageSize - 1

// TeamPage returns teams numbered [page*500, page*500+499], ordered by number.
func (s *TeamStore) TeamPage(ctx context.Context, page int) ([]Team, error) {
	if page < 0 || page > MaxTeamPage {
		return nil, nil
	}
	start := page * TeamPageSize
	var teams []Team
	err := s.db.WithContext(ctx).
		Where("team_number >= ? AND team_number < ?", start, start+TeamPageSize).
		Order("team_number").
		Find(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}
