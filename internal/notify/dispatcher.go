package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gmsas95/mediremind/internal/config"
	"github.com/gmsas95/mediremind/internal/errors"
	"github.com/gmsas95/mediremind/internal/medicine"
	"github.com/gmsas95/mediremind/internal/metrics"
	"github.com/gmsas95/mediremind/internal/schedule"
)

// RecipientResolver maps a medicine owner to the phones that should receive
// reminders and escalations.
type RecipientResolver interface {
	PatientPhone(ownerID string) (string, error)
	CaretakerPhone(ownerID string) (string, error)
}

// Dispatcher decides when an outbound message may go out and sends it.
// Automated reminders pass two gates: the per-medicine cooldown and a global
// rate limit. Manual sends and escalations skip the cooldown check.
type Dispatcher struct {
	transport Transport
	cooldowns *CooldownStore
	resolver  RecipientResolver
	limiter   *rate.Limiter
	cooldown  time.Duration
	logger    *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(transport Transport, cooldowns *CooldownStore, resolver RecipientResolver, cfg *config.Config, logger *zap.Logger) *Dispatcher {
	perMinute := cfg.Notify.SendsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := cfg.Notify.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Dispatcher{
		transport: transport,
		cooldowns: cooldowns,
		resolver:  resolver,
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		cooldown:  time.Duration(cfg.Reminder.CooldownSeconds) * time.Second,
		logger:    logger,
	}
}

// Notify sends the automated patient reminder for a medicine at its exact
// trigger minute. The cooldown is consumed before the send is attempted, so
// a transport failure does not cause a retry storm; the next eligible send
// is the next trigger. Returns nil when the send was suppressed by a gate.
func (d *Dispatcher) Notify(ctx context.Context, med *medicine.Medicine, now time.Time) error {
	last, ok, err := d.cooldowns.Last(med.ID)
	if err != nil {
		return err
	}
	if ok && now.Sub(last) < d.cooldown {
		d.logger.Debug("reminder send suppressed by cooldown",
			zap.String("medicine_id", med.ID),
			zap.Time("last_sent_at", last))
		return nil
	}

	if !d.limiter.Allow() {
		metrics.RecordSendThrottled()
		d.logger.Warn("reminder send dropped by rate limit", zap.String("medicine_id", med.ID))
		return nil
	}

	if err := d.cooldowns.Touch(med.ID, now); err != nil {
		return err
	}

	return d.sendReminder(ctx, med)
}

// SendManual sends a patient reminder on operator demand. It skips the
// cooldown check but still stamps the cooldown, so the next automated send
// waits out the window. Transport errors are returned to the caller.
func (d *Dispatcher) SendManual(ctx context.Context, med *medicine.Medicine, now time.Time) error {
	if err := d.cooldowns.Touch(med.ID, now); err != nil {
		return err
	}
	return d.sendReminder(ctx, med)
}

// Escalate alerts the caretaker that a dose was missed. Escalations have no
// cooldown: one is sent per missed dose, and misses are already bounded to
// one per medicine per day.
func (d *Dispatcher) Escalate(ctx context.Context, med *medicine.Medicine, now time.Time) error {
	phone, err := d.resolver.CaretakerPhone(med.OwnerID)
	if err != nil {
		return err
	}

	message := EscalationMessage(med, now)
	if err := d.send(ctx, phone, message); err != nil {
		return err
	}

	metrics.RecordEscalation()
	d.logger.Info("escalation sent",
		zap.String("medicine_id", med.ID),
		zap.String("medicine", med.Name))
	return nil
}

func (d *Dispatcher) sendReminder(ctx context.Context, med *medicine.Medicine) error {
	phone, err := d.resolver.PatientPhone(med.OwnerID)
	if err != nil {
		return err
	}

	if err := d.send(ctx, phone, ReminderMessage(med)); err != nil {
		return err
	}

	d.logger.Info("reminder sent",
		zap.String("medicine_id", med.ID),
		zap.String("medicine", med.Name))
	return nil
}

func (d *Dispatcher) send(ctx context.Context, phone, message string) error {
	err := d.transport.Send(ctx, phone, message)
	metrics.RecordSend(err == nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrSendFailed.Code, "delivery failed")
	}
	return nil
}

// ReminderMessage renders the patient SMS: quantity, name, dosage, food
// instruction, and the scheduled time in 12-hour form.
func ReminderMessage(med *medicine.Medicine) string {
	return fmt.Sprintf("MediRemind Take %d pills of %s %dmg %s food at %s",
		med.PillCount, med.Name, med.DosageMg, med.FoodInstruction(),
		schedule.Format12Hour(med.TimeOfDay))
}

// EscalationMessage renders the caretaker alert. It carries the scheduled
// time plus the wall-clock instant the miss was recorded.
func EscalationMessage(med *medicine.Medicine, now time.Time) string {
	return fmt.Sprintf("ALERT Patient MISSED medicine %s %dmg Quantity %d pills %s food at %s %s",
		med.Name, med.DosageMg, med.PillCount, med.FoodInstruction(),
		schedule.Format12Hour(med.TimeOfDay), now.Format("15:04:05"))
}
