package metrics

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	startTime time.Time

	ticksTotal atomic.Int64
	tickErrors atomic.Int64

	remindersShown atomic.Int64
	dosesTaken     atomic.Int64
	dosesMissed    atomic.Int64

	sendsAttempted atomic.Int64
	sendsSucceeded atomic.Int64
	sendsFailed    atomic.Int64
	sendsThrottled atomic.Int64

	escalationsSent atomic.Int64

	activeConnections atomic.Int64

	transportSends map[string]*atomic.Int64
	transportLock  sync.Mutex
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

func New() *Metrics {
	return &Metrics{
		startTime:      time.Now(),
		transportSends: make(map[string]*atomic.Int64),
	}
}

func (m *Metrics) RecordTick(err bool) {
	m.ticksTotal.Add(1)
	if err {
		m.tickErrors.Add(1)
	}
}

func (m *Metrics) RecordReminderShown() {
	m.remindersShown.Add(1)
}

func (m *Metrics) RecordDose(taken bool) {
	if taken {
		m.dosesTaken.Add(1)
	} else {
		m.dosesMissed.Add(1)
	}
}

func (m *Metrics) RecordSend(success bool) {
	m.sendsAttempted.Add(1)
	if success {
		m.sendsSucceeded.Add(1)
	} else {
		m.sendsFailed.Add(1)
	}
}

func (m *Metrics) RecordSendThrottled() {
	m.sendsThrottled.Add(1)
}

func (m *Metrics) RecordEscalation() {
	m.escalationsSent.Add(1)
}

func (m *Metrics) RecordTransportSend(transport string) {
	m.transportLock.Lock()
	defer m.transportLock.Unlock()

	if m.transportSends[transport] == nil {
		m.transportSends[transport] = &atomic.Int64{}
	}
	m.transportSends[transport].Add(1)
}

func (m *Metrics) IncrementActiveConnections() {
	m.activeConnections.Add(1)
}

func (m *Metrics) DecrementActiveConnections() {
	m.activeConnections.Add(-1)
}

type Snapshot struct {
	Uptime            time.Duration    `json:"uptime"`
	TicksTotal        int64            `json:"ticks_total"`
	TickErrors        int64            `json:"tick_errors"`
	RemindersShown    int64            `json:"reminders_shown"`
	DosesTaken        int64            `json:"doses_taken"`
	DosesMissed       int64            `json:"doses_missed"`
	SendsAttempted    int64            `json:"sends_attempted"`
	SendsSucceeded    int64            `json:"sends_succeeded"`
	SendsFailed       int64            `json:"sends_failed"`
	SendsThrottled    int64            `json:"sends_throttled"`
	EscalationsSent   int64            `json:"escalations_sent"`
	ActiveConnections int64            `json:"active_connections"`
	TransportSends    map[string]int64 `json:"transport_sends"`
	AdherenceRate     float64          `json:"adherence_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{
		Uptime:            time.Since(m.startTime),
		TicksTotal:        m.ticksTotal.Load(),
		TickErrors:        m.tickErrors.Load(),
		RemindersShown:    m.remindersShown.Load(),
		DosesTaken:        m.dosesTaken.Load(),
		DosesMissed:       m.dosesMissed.Load(),
		SendsAttempted:    m.sendsAttempted.Load(),
		SendsSucceeded:    m.sendsSucceeded.Load(),
		SendsFailed:       m.sendsFailed.Load(),
		SendsThrottled:    m.sendsThrottled.Load(),
		EscalationsSent:   m.escalationsSent.Load(),
		ActiveConnections: m.activeConnections.Load(),
		TransportSends:    make(map[string]int64),
	}

	if resolved := s.DosesTaken + s.DosesMissed; resolved > 0 {
		s.AdherenceRate = float64(s.DosesTaken) / float64(resolved) * 100
	}

	m.transportLock.Lock()
	for k, v := range m.transportSends {
		s.TransportSends[k] = v.Load()
	}
	m.transportLock.Unlock()

	return s
}

func (m *Metrics) Prometheus() string {
	var sb strings.Builder

	sb.WriteString("# HELP mediremind_uptime_seconds Time since server start\n")
	sb.WriteString("# TYPE mediremind_uptime_seconds gauge\n")
	sb.WriteString("mediremind_uptime_seconds " + strconv.FormatInt(int64(time.Since(m.startTime).Seconds()), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_ticks_total Total engine ticks\n")
	sb.WriteString("# TYPE mediremind_ticks_total counter\n")
	sb.WriteString("mediremind_ticks_total " + strconv.FormatInt(m.ticksTotal.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_tick_errors_total Engine ticks with at least one error\n")
	sb.WriteString("# TYPE mediremind_tick_errors_total counter\n")
	sb.WriteString("mediremind_tick_errors_total " + strconv.FormatInt(m.tickErrors.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_reminders_shown_total Reminders surfaced to the patient\n")
	sb.WriteString("# TYPE mediremind_reminders_shown_total counter\n")
	sb.WriteString("mediremind_reminders_shown_total " + strconv.FormatInt(m.remindersShown.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_doses_taken_total Doses confirmed taken\n")
	sb.WriteString("# TYPE mediremind_doses_taken_total counter\n")
	sb.WriteString("mediremind_doses_taken_total " + strconv.FormatInt(m.dosesTaken.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_doses_missed_total Doses missed after timeout\n")
	sb.WriteString("# TYPE mediremind_doses_missed_total counter\n")
	sb.WriteString("mediremind_doses_missed_total " + strconv.FormatInt(m.dosesMissed.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_sends_attempted_total Notification send attempts\n")
	sb.WriteString("# TYPE mediremind_sends_attempted_total counter\n")
	sb.WriteString("mediremind_sends_attempted_total " + strconv.FormatInt(m.sendsAttempted.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_sends_failed_total Notification sends that failed on every channel\n")
	sb.WriteString("# TYPE mediremind_sends_failed_total counter\n")
	sb.WriteString("mediremind_sends_failed_total " + strconv.FormatInt(m.sendsFailed.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_sends_throttled_total Automated sends dropped by the rate limiter\n")
	sb.WriteString("# TYPE mediremind_sends_throttled_total counter\n")
	sb.WriteString("mediremind_sends_throttled_total " + strconv.FormatInt(m.sendsThrottled.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_escalations_sent_total Caretaker escalations sent\n")
	sb.WriteString("# TYPE mediremind_escalations_sent_total counter\n")
	sb.WriteString("mediremind_escalations_sent_total " + strconv.FormatInt(m.escalationsSent.Load(), 10) + "\n\n")

	sb.WriteString("# HELP mediremind_active_connections Active websocket connections\n")
	sb.WriteString("# TYPE mediremind_active_connections gauge\n")
	sb.WriteString("mediremind_active_connections " + strconv.FormatInt(m.activeConnections.Load(), 10) + "\n\n")

	m.transportLock.Lock()
	for transport, count := range m.transportSends {
		sb.WriteString("# HELP mediremind_transport_sends_total Successful sends per transport\n")
		sb.WriteString("# TYPE mediremind_transport_sends_total counter\n")
		sb.WriteString("mediremind_transport_sends_total{transport=\"" + transport + "\"} " + strconv.FormatInt(count.Load(), 10) + "\n\n")
	}
	m.transportLock.Unlock()

	return sb.String()
}

func RecordTick(err bool) {
	Default().RecordTick(err)
}

func RecordReminderShown() {
	Default().RecordReminderShown()
}

func RecordDose(taken bool) {
	Default().RecordDose(taken)
}

func RecordSend(success bool) {
	Default().RecordSend(success)
}

func RecordSendThrottled() {
	Default().RecordSendThrottled()
}

func RecordEscalation() {
	Default().RecordEscalation()
}

func RecordTransportSend(transport string) {
	Default().RecordTransportSend(transport)
}

func Prometheus() string {
	return Default().Prometheus()
}
