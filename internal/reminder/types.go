package reminder

// Phase is the state of the single reminder slot.
type Phase string

const (
	// PhaseIdle means no reminder is on screen.
	PhaseIdle Phase = "idle"
	// PhaseShowing means a reminder modal is up and counting down.
	PhaseShowing Phase = "showing"
)

// Snapshot is a point-in-time copy of the reminder slot, safe to serialize
// to clients.
type Snapshot struct {
	Phase       Phase  `json:"phase"`
	MedicineID  string `json:"medicine_id,omitempty"`
	SecondsLeft int    `json:"seconds_left,omitempty"`
}
