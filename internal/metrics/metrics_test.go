package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := New()

	m.RecordTick(false)
	m.RecordTick(true)
	m.RecordReminderShown()
	m.RecordDose(true)
	m.RecordDose(true)
	m.RecordDose(false)
	m.RecordSend(true)
	m.RecordSend(false)
	m.RecordSendThrottled()
	m.RecordEscalation()
	m.RecordTransportSend("fast2sms")
	m.RecordTransportSend("fast2sms")
	m.RecordTransportSend("telegram")

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.TicksTotal)
	assert.Equal(t, int64(1), s.TickErrors)
	assert.Equal(t, int64(1), s.RemindersShown)
	assert.Equal(t, int64(2), s.DosesTaken)
	assert.Equal(t, int64(1), s.DosesMissed)
	assert.Equal(t, int64(2), s.SendsAttempted)
	assert.Equal(t, int64(1), s.SendsFailed)
	assert.Equal(t, int64(1), s.SendsThrottled)
	assert.Equal(t, int64(1), s.EscalationsSent)
	assert.Equal(t, int64(2), s.TransportSends["fast2sms"])
	assert.Equal(t, int64(1), s.TransportSends["telegram"])
	assert.InDelta(t, 66.6, s.AdherenceRate, 0.1)
}

func TestMetrics_Prometheus(t *testing.T) {
	m := New()
	m.RecordTick(false)
	m.RecordDose(false)
	m.RecordTransportSend("fast2sms")

	out := m.Prometheus()
	assert.True(t, strings.Contains(out, "mediremind_ticks_total 1"))
	assert.True(t, strings.Contains(out, "mediremind_doses_missed_total 1"))
	assert.True(t, strings.Contains(out, `mediremind_transport_sends_total{transport="fast2sms"} 1`))
}

func TestMetrics_PackageHelpers(t *testing.T) {
	before := Default().Snapshot()

	RecordTick(false)
	RecordReminderShown()
	RecordDose(true)
	RecordSend(true)
	RecordTransportSend("fast2sms")

	after := Default().Snapshot()
	assert.Equal(t, before.TicksTotal+1, after.TicksTotal)
	assert.Equal(t, before.RemindersShown+1, after.RemindersShown)
	assert.Equal(t, before.DosesTaken+1, after.DosesTaken)
	assert.Equal(t, before.SendsSucceeded+1, after.SendsSucceeded)
	assert.Equal(t, before.TransportSends["fast2sms"]+1, after.TransportSends["fast2sms"])
}

func TestMetrics_ActiveConnections(t *testing.T) {
	m := New()
	m.IncrementActiveConnections()
	m.IncrementActiveConnections()
	m.DecrementActiveConnections()
	assert.Equal(t, int64(1), m.Snapshot().ActiveConnections)
}
