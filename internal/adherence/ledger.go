// Package adherence keeps the append-only record of dose outcomes.
package adherence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gmsas95/mediremind/internal/store"
)

// Ledger answers "has today's dose for this medicine already been resolved?"
// and appends dose outcomes. It does not deduplicate: callers must check
// HasResolvedToday before recording. Two racing writers may both append; a
// duplicate log is harmless to status because readers treat "resolved" as
// "at least one log exists".
type Ledger struct {
	db  *gorm.DB
	hub *store.Hub
}

// NewLedger creates a new adherence ledger
func NewLedger(db *gorm.DB, hub *store.Hub) (*Ledger, error) {
	if err := db.AutoMigrate(&DoseLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate dose log schema: %w", err)
	}
	return &Ledger{db: db, hub: hub}, nil
}

// HasResolvedToday reports whether any log exists for the medicine on the
// same calendar day as now, regardless of taken/missed status.
func (l *Ledger) HasResolvedToday(medicineID string, now time.Time) (bool, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var n int64
	err := l.db.Model(&DoseLog{}).
		Where("medicine_id = ? AND timestamp >= ? AND timestamp < ?", medicineID, dayStart, dayEnd).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordTaken appends a taken log stamped with the given instant.
func (l *Ledger) RecordTaken(medicineID, ownerID string, at time.Time) (*DoseLog, error) {
	return l.record(medicineID, ownerID, at, StatusTaken)
}

// RecordMissed appends a missed log stamped with the given instant.
func (l *Ledger) RecordMissed(medicineID, ownerID string, at time.Time) (*DoseLog, error) {
	return l.record(medicineID, ownerID, at, StatusMissed)
}

func (l *Ledger) record(medicineID, ownerID string, at time.Time, status Status) (*DoseLog, error) {
	log := &DoseLog{
		ID:         uuid.NewString(),
		MedicineID: medicineID,
		OwnerID:    ownerID,
		Timestamp:  at,
		Status:     status,
	}

	if err := l.db.Create(log).Error; err != nil {
		return nil, err
	}

	l.hub.Publish(store.Change{Key: store.KeyLogs, Op: "create", ID: log.ID})
	return log, nil
}

// ListByOwner returns an owner's logs, newest first
func (l *Ledger) ListByOwner(ownerID string, limit int) ([]DoseLog, error) {
	query := l.db.Where("owner_id = ?", ownerID).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var logs []DoseLog
	err := query.Find(&logs).Error
	return logs, err
}

// Weekly builds the trailing seven-day adherence report ending on now's day.
func (l *Ledger) Weekly(ownerID string, now time.Time) (*WeeklyReport, error) {
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	weekStart := dayEnd.AddDate(0, 0, -7)

	var logs []DoseLog
	err := l.db.Where("owner_id = ? AND timestamp >= ? AND timestamp < ?", ownerID, weekStart, dayEnd).
		Order("timestamp ASC").Find(&logs).Error
	if err != nil {
		return nil, err
	}

	report := &WeeklyReport{}
	byDay := make(map[string]*DayReport, 7)
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i).Format("2006-01-02")
		day := &DayReport{Date: date}
		byDay[date] = day
		report.Days = append(report.Days, DayReport{Date: date})
	}

	for _, log := range logs {
		date := log.Timestamp.Format("2006-01-02")
		day, ok := byDay[date]
		if !ok {
			continue
		}
		switch log.Status {
		case StatusTaken:
			day.Taken++
			report.TotalTaken++
		case StatusMissed:
			day.Missed++
			report.TotalMissed++
		}
	}

	for i := range report.Days {
		if day, ok := byDay[report.Days[i].Date]; ok {
			report.Days[i] = *day
		}
	}

	return report, nil
}
