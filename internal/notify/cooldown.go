package notify

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gmsas95/mediremind/internal/store"
)

// Cooldown records the last automated send instant per medicine. It is
// written before the send is attempted, so a failed send still consumes the
// cooldown window; losing an occasional SMS beats double-sending.
type Cooldown struct {
	MedicineID string    `json:"medicine_id" gorm:"primaryKey"`
	LastSentAt time.Time `json:"last_sent_at"`
}

// CooldownStore persists per-medicine send cooldowns.
type CooldownStore struct {
	db  *gorm.DB
	hub *store.Hub
}

// NewCooldownStore creates a new cooldown store
func NewCooldownStore(db *gorm.DB, hub *store.Hub) (*CooldownStore, error) {
	if err := db.AutoMigrate(&Cooldown{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cooldown schema: %w", err)
	}
	return &CooldownStore{db: db, hub: hub}, nil
}

// Touch upserts the medicine's last-sent instant.
func (s *CooldownStore) Touch(medicineID string, at time.Time) error {
	row := Cooldown{MedicineID: medicineID, LastSentAt: at}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "medicine_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sent_at"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}
	s.hub.Publish(store.Change{Key: store.KeyCooldowns, Op: "touch", ID: medicineID})
	return nil
}

// Last returns the medicine's last-sent instant, or ok=false when the
// medicine has never been sent for.
func (s *CooldownStore) Last(medicineID string) (time.Time, bool, error) {
	var row Cooldown
	err := s.db.Where("medicine_id = ?", medicineID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return row.LastSentAt, true, nil
}

// Prune drops cooldown rows older than the cutoff. The window is two
// minutes, so anything older than a day is long inert.
func (s *CooldownStore) Prune(olderThan time.Time) (int64, error) {
	res := s.db.Where("last_sent_at < ?", olderThan).Delete(&Cooldown{})
	return res.RowsAffected, res.Error
}
