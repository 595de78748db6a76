package medicine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gmsas95/mediremind/internal/store"
)

func setupTestStore(t *testing.T) (*Store, *store.Hub) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	hub := store.NewHub()
	s, err := NewStore(db, hub)
	require.NoError(t, err)
	return s, hub
}

func validMedicine() *Medicine {
	return &Medicine{
		OwnerID:    "9876543210",
		Name:       "Paracetamol",
		DosageMg:   500,
		PillCount:  2,
		BeforeFood: false,
		Days:       "Monday,Wednesday,Friday",
		TimeOfDay:  "08:00",
	}
}

func TestStore_Create(t *testing.T) {
	s, hub := setupTestStore(t)

	ch, cancel := hub.Subscribe(store.KeyMedicines)
	defer cancel()

	med := validMedicine()
	require.NoError(t, s.Create(med))
	assert.NotEmpty(t, med.ID)

	retrieved, err := s.Get(med.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "Paracetamol", retrieved.Name)
	assert.Equal(t, []string{"Monday", "Wednesday", "Friday"}, retrieved.DayList())

	change := <-ch
	assert.Equal(t, med.ID, change.ID)
}

func TestStore_CreateRejectsInvalid(t *testing.T) {
	s, _ := setupTestStore(t)

	tests := []struct {
		name   string
		mutate func(*Medicine)
	}{
		{"missing owner", func(m *Medicine) { m.OwnerID = "" }},
		{"blank name", func(m *Medicine) { m.Name = "  " }},
		{"zero dosage", func(m *Medicine) { m.DosageMg = 0 }},
		{"negative pills", func(m *Medicine) { m.PillCount = -1 }},
		{"no days", func(m *Medicine) { m.Days = "" }},
		{"bad day name", func(m *Medicine) { m.Days = "Mondayy" }},
		{"bad time", func(m *Medicine) { m.TimeOfDay = "8 o'clock" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			med := validMedicine()
			tt.mutate(med)
			assert.Error(t, s.Create(med))
		})
	}

	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "invalid medicines must not be persisted")
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := setupTestStore(t)

	med, err := s.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, med)
}

func TestStore_ListByOwnerOrdering(t *testing.T) {
	s, _ := setupTestStore(t)

	evening := validMedicine()
	evening.Name = "Metformin"
	evening.TimeOfDay = "20:00"
	require.NoError(t, s.Create(evening))

	morning := validMedicine()
	morning.TimeOfDay = "07:00"
	require.NoError(t, s.Create(morning))

	other := validMedicine()
	other.OwnerID = "1112223334"
	require.NoError(t, s.Create(other))

	meds, err := s.ListByOwner("9876543210")
	require.NoError(t, err)
	require.Len(t, meds, 2)
	assert.Equal(t, "07:00", meds[0].TimeOfDay)
	assert.Equal(t, "20:00", meds[1].TimeOfDay)

	all, err := s.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMedicine_FoodInstruction(t *testing.T) {
	med := validMedicine()
	assert.Equal(t, "AFTER", med.FoodInstruction())
	med.BeforeFood = true
	assert.Equal(t, "BEFORE", med.FoodInstruction())
}
