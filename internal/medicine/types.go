package medicine

import (
	"strings"
	"time"

	"github.com/gmsas95/mediremind/internal/errors"
	"github.com/gmsas95/mediremind/internal/schedule"
)

// Medicine is a schedule definition created by a caretaker. Immutable after
// creation; no edit or delete flow exists.
type Medicine struct {
	ID      string `json:"id" gorm:"primaryKey"`
	OwnerID string `json:"owner_id" gorm:"index"`

	Name       string `json:"name"`
	DosageMg   int    `json:"dosage_mg"`
	PillCount  int    `json:"pill_count"`
	BeforeFood bool   `json:"before_food"`

	// Schedule: comma-separated weekday names plus an HH:MM time
	Days      string `json:"days"`
	TimeOfDay string `json:"time_of_day" gorm:"index"`

	// Opaque display references; never interpreted by the engine
	ImageRef string `json:"image_ref,omitempty"`
	AudioRef string `json:"audio_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DayList returns the weekday names of the schedule.
func (m *Medicine) DayList() []string {
	if m.Days == "" {
		return nil
	}
	parts := strings.Split(m.Days, ",")
	days := make([]string, 0, len(parts))
	for _, p := range parts {
		if d := strings.TrimSpace(p); d != "" {
			days = append(days, d)
		}
	}
	return days
}

// SetDays stores a weekday list on the medicine.
func (m *Medicine) SetDays(days []string) {
	m.Days = strings.Join(days, ",")
}

// Schedule returns the medicine's recurrence rule.
func (m *Medicine) Schedule() schedule.Schedule {
	return schedule.Schedule{
		Days:      m.DayList(),
		TimeOfDay: m.TimeOfDay,
	}
}

// FoodInstruction renders the before/after-food flag for message content.
func (m *Medicine) FoodInstruction() string {
	if m.BeforeFood {
		return "BEFORE"
	}
	return "AFTER"
}

// Validate checks the medicine invariants before it is persisted.
func (m *Medicine) Validate() error {
	if m.OwnerID == "" {
		return errors.Wrap(nil, errors.ErrInvalidMedicine.Code, "owner is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return errors.Wrap(nil, errors.ErrInvalidMedicine.Code, "name is required")
	}
	if m.DosageMg <= 0 {
		return errors.Wrap(nil, errors.ErrInvalidMedicine.Code, "dosage must be a positive integer")
	}
	if m.PillCount <= 0 {
		return errors.Wrap(nil, errors.ErrInvalidMedicine.Code, "pill count must be a positive integer")
	}
	if err := schedule.Validate(m.Schedule()); err != nil {
		return errors.Wrap(err, errors.ErrInvalidSchedule.Code, "invalid schedule")
	}
	return nil
}
