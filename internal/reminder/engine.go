// Package reminder runs the once-per-second evaluation loop that surfaces,
// times out, and resolves dose reminders.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/mediremind/internal/adherence"
	"github.com/gmsas95/mediremind/internal/config"
	"github.com/gmsas95/mediremind/internal/medicine"
	"github.com/gmsas95/mediremind/internal/metrics"
	"github.com/gmsas95/mediremind/internal/notify"
	"github.com/gmsas95/mediremind/internal/schedule"
	"github.com/gmsas95/mediremind/internal/store"
)

// Engine drives the reminder lifecycle. Every poll interval it advances the
// showing countdown, then scans all medicines: an actionable unresolved
// medicine claims the slot if it is free, and its exact trigger minute fires
// the automated send whether or not the slot was free.
type Engine struct {
	cfg        *config.Config
	medicines  *medicine.Store
	ledger     *adherence.Ledger
	dispatcher *notify.Dispatcher
	machine    *Machine
	hub        *store.Hub
	clock      schedule.Clock
	logger     *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewEngine creates a new reminder engine
func NewEngine(cfg *config.Config, medicines *medicine.Store, ledger *adherence.Ledger, dispatcher *notify.Dispatcher, hub *store.Hub, clock schedule.Clock, logger *zap.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	if clock == nil {
		clock = schedule.System()
	}

	return &Engine{
		cfg:        cfg,
		medicines:  medicines,
		ledger:     ledger,
		dispatcher: dispatcher,
		machine:    NewMachine(),
		hub:        hub,
		clock:      clock,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Machine exposes the reminder slot for API handlers.
func (e *Engine) Machine() *Machine {
	return e.machine
}

// Start starts the evaluation loop
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("reminder engine already running")
	}

	// A fresh context each start so a stopped engine can be started again.
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.running = true
	e.wg.Add(1)
	go e.run()

	return nil
}

// Stop stops the evaluation loop
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("Reminder engine stopped")
}

// IsRunning returns whether the engine is active
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Duration(e.cfg.Reminder.PollIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.safeTick()
		}
	}
}

func (e *Engine) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in reminder tick", zap.Any("panic", r))
		}
	}()
	e.Tick(e.ctx, e.clock.Now())
}

// Tick runs one evaluation pass at the given instant. Errors on one medicine
// never stop the others from being evaluated.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	// Nothing to evaluate and nothing can be showing with an empty set, so
	// the pass is skipped outright.
	if n, err := e.medicines.Count(); err == nil && n == 0 {
		return
	}

	tickErr := false

	if timedOut := e.machine.Tick(); timedOut != nil {
		if err := e.resolveMissed(ctx, timedOut, now); err != nil {
			tickErr = true
			e.logger.Error("failed to resolve missed dose",
				zap.String("medicine_id", timedOut.ID),
				zap.Error(err))
		}
	}

	meds, err := e.medicines.ListAll()
	if err != nil {
		metrics.RecordTick(true)
		e.logger.Error("failed to list medicines", zap.Error(err))
		return
	}

	for i := range meds {
		if err := e.evaluate(ctx, &meds[i], now); err != nil {
			tickErr = true
			e.logger.Error("medicine evaluation failed",
				zap.String("medicine_id", meds[i].ID),
				zap.Error(err))
		}
	}

	metrics.RecordTick(tickErr)
}

func (e *Engine) evaluate(ctx context.Context, med *medicine.Medicine, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating medicine: %v", r)
		}
	}()

	eval := schedule.Evaluate(med.Schedule(), now)
	if !eval.InWindow {
		return nil
	}

	resolved, err := e.ledger.HasResolvedToday(med.ID, now)
	if err != nil {
		return err
	}
	if resolved {
		return nil
	}

	// The automated send is tied to the trigger minute, not the slot:
	// a deferred medicine still gets its SMS on time.
	if eval.ExactTrigger {
		go e.notify(med, now)
	}

	if !e.machine.Showing(med.ID) {
		if e.machine.Show(med, e.cfg.Reminder.CountdownSeconds) {
			metrics.RecordReminderShown()
			e.hub.Publish(store.Change{Key: store.KeyReminder, Op: "show", ID: med.ID})
			e.logger.Info("reminder showing",
				zap.String("medicine_id", med.ID),
				zap.String("medicine", med.Name),
				zap.String("time_of_day", med.TimeOfDay))
		}
	}

	return nil
}

// notify runs off the tick goroutine so a slow SMS route cannot stall the
// countdown.
func (e *Engine) notify(med *medicine.Medicine, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in reminder send", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := e.dispatcher.Notify(ctx, med, now); err != nil {
		e.logger.Error("reminder send failed",
			zap.String("medicine_id", med.ID),
			zap.Error(err))
	}
}

// ConfirmTaken resolves the showing reminder as taken.
func (e *Engine) ConfirmTaken(now time.Time) (*adherence.DoseLog, error) {
	med, err := e.machine.ConfirmTaken()
	if err != nil {
		return nil, err
	}

	log, err := e.ledger.RecordTaken(med.ID, med.OwnerID, now)
	if err != nil {
		return nil, err
	}

	metrics.RecordDose(true)
	e.hub.Publish(store.Change{Key: store.KeyReminder, Op: "taken", ID: med.ID})
	e.logger.Info("dose taken",
		zap.String("medicine_id", med.ID),
		zap.String("medicine", med.Name))
	return log, nil
}

func (e *Engine) resolveMissed(ctx context.Context, med *medicine.Medicine, now time.Time) error {
	if _, err := e.ledger.RecordMissed(med.ID, med.OwnerID, now); err != nil {
		return err
	}

	metrics.RecordDose(false)
	e.hub.Publish(store.Change{Key: store.KeyReminder, Op: "missed", ID: med.ID})
	e.logger.Warn("dose missed",
		zap.String("medicine_id", med.ID),
		zap.String("medicine", med.Name))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("panic in escalation send", zap.Any("panic", r))
			}
		}()

		sendCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := e.dispatcher.Escalate(sendCtx, med, now); err != nil {
			e.logger.Error("escalation send failed",
				zap.String("medicine_id", med.ID),
				zap.Error(err))
		}
	}()

	return nil
}
