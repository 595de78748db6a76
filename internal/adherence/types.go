package adherence

import "time"

// Status is the outcome of one resolved reminder instance
type Status string

const (
	StatusTaken  Status = "taken"
	StatusMissed Status = "missed"
)

// DoseLog records one resolved dose. Append-only: created exactly once per
// resolved reminder instance, never mutated or deleted. Timestamps are
// persisted and serialized as ISO-8601 instants.
type DoseLog struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	MedicineID string    `json:"medicine_id" gorm:"index"`
	OwnerID    string    `json:"owner_id" gorm:"index"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
	Status     Status    `json:"status"`
}

// DayReport aggregates dose outcomes for one calendar day.
type DayReport struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Taken  int    `json:"taken"`
	Missed int    `json:"missed"`
}

// WeeklyReport is the trailing seven-day adherence summary.
type WeeklyReport struct {
	Days        []DayReport `json:"days"`
	TotalTaken  int         `json:"total_taken"`
	TotalMissed int         `json:"total_missed"`
}
