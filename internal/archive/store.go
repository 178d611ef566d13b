package archive

import (
	"context"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// HistoryRecord is one finished game as persisted for the history screen.
type HistoryRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Pin         string    `gorm:"size:8;index" json:"pin"`
	GameRef     string    `json:"gameRef"`
	BestPlayer  string    `json:"bestPlayer"`
	BestScore   float64   `json:"bestScore"`
	PlayerCount int       `json:"playerCount"`
	EndedAt     time.Time `json:"endedAt"`
}

type HistoryStore interface {
	Insert(ctx context.Context, rec HistoryRecord) error
	List(ctx context.Context) ([]HistoryRecord, error)
}

// GormStore persists history records to Postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&HistoryRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Insert(ctx context.Context, rec HistoryRecord) error {
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *GormStore) List(ctx context.Context) ([]HistoryRecord, error) {
	var recs []HistoryRecord
	err := s.db.WithContext(ctx).Order("ended_at desc").Find(&recs).Error
	return recs, err
}

// MemoryStore backs tests and DSN-less local runs.
type MemoryStore struct {
	mu   sync.Mutex
	recs []HistoryRecord
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Insert(_ context.Context, rec HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uint(len(s.recs) + 1)
	s.recs = append(s.recs, rec)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryRecord, len(s.recs))
	copy(out, s.recs)
	return out, nil
}
