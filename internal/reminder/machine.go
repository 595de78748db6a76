package reminder

import (
	"sync"

	"github.com/gmsas95/mediremind/internal/errors"
	"github.com/gmsas95/mediremind/internal/medicine"
)

// Machine is the single reminder slot. At most one medicine is ever showing;
// another actionable medicine stays deferred until the slot frees and a later
// tick picks it up. The countdown is driven by Tick, one call per second.
type Machine struct {
	mu          sync.Mutex
	phase       Phase
	current     *medicine.Medicine
	secondsLeft int
}

// NewMachine creates an idle reminder slot.
func NewMachine() *Machine {
	return &Machine{phase: PhaseIdle}
}

// Show claims the slot for a medicine and starts its countdown. Returns
// false when the slot is already occupied; the caller treats that as a
// deferral, not an error.
func (m *Machine) Show(med *medicine.Medicine, countdownSeconds int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseShowing {
		return false
	}

	m.phase = PhaseShowing
	m.current = med
	m.secondsLeft = countdownSeconds
	return true
}

// Tick advances the countdown by one second. When the countdown reaches
// zero the slot frees and the timed-out medicine is returned so the caller
// can record the miss and escalate.
func (m *Machine) Tick() (timedOut *medicine.Medicine) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseShowing {
		return nil
	}

	m.secondsLeft--
	if m.secondsLeft > 0 {
		return nil
	}

	med := m.current
	m.reset()
	return med
}

// ConfirmTaken resolves the showing reminder as taken and frees the slot.
func (m *Machine) ConfirmTaken() (*medicine.Medicine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseShowing {
		return nil, errors.ErrNoActiveReminder
	}

	med := m.current
	m.reset()
	return med, nil
}

// Showing reports whether the given medicine currently occupies the slot.
func (m *Machine) Showing(medicineID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == PhaseShowing && m.current != nil && m.current.ID == medicineID
}

// Snapshot returns a copy of the slot state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{Phase: m.phase}
	if m.phase == PhaseShowing && m.current != nil {
		s.MedicineID = m.current.ID
		s.SecondsLeft = m.secondsLeft
	}
	return s
}

func (m *Machine) reset() {
	m.phase = PhaseIdle
	m.current = nil
	m.secondsLeft = 0
}
