package medicine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gmsas95/mediremind/internal/store"
)

// Store handles medicine persistence
type Store struct {
	db  *gorm.DB
	hub *store.Hub
}

// NewStore creates a new medicine store
func NewStore(db *gorm.DB, hub *store.Hub) (*Store, error) {
	if err := db.AutoMigrate(&Medicine{}); err != nil {
		return nil, fmt.Errorf("failed to migrate medicine schema: %w", err)
	}
	return &Store{db: db, hub: hub}, nil
}

// Create validates and persists a new medicine
func (s *Store) Create(med *Medicine) error {
	if med.ID == "" {
		med.ID = uuid.NewString()
	}
	med.CreatedAt = time.Now()
	med.UpdatedAt = med.CreatedAt

	if err := med.Validate(); err != nil {
		return err
	}

	if err := s.db.Create(med).Error; err != nil {
		return err
	}

	s.hub.Publish(store.Change{Key: store.KeyMedicines, Op: "create", ID: med.ID})
	return nil
}

// Get retrieves a medicine by ID
func (s *Store) Get(id string) (*Medicine, error) {
	var med Medicine
	err := s.db.Where("id = ?", id).First(&med).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &med, err
}

// ListByOwner lists an owner's medicines ordered by schedule time
func (s *Store) ListByOwner(ownerID string) ([]Medicine, error) {
	var meds []Medicine
	err := s.db.Where("owner_id = ?", ownerID).
		Order("time_of_day ASC, created_at ASC").Find(&meds).Error
	return meds, err
}

// ListAll lists every medicine ordered by schedule time. Used by the
// reminder engine on each tick.
func (s *Store) ListAll() ([]Medicine, error) {
	var meds []Medicine
	err := s.db.Order("time_of_day ASC, created_at ASC").Find(&meds).Error
	return meds, err
}

// Count returns the number of known medicines
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.Model(&Medicine{}).Count(&n).Error
	return n, err
}
