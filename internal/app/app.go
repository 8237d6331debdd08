package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/booking"
	"github.com/Felps0156/SDR-Agent/internal/config"
	"github.com/Felps0156/SDR-Agent/internal/confirm"
	"github.com/Felps0156/SDR-Agent/internal/handler"
	"github.com/Felps0156/SDR-Agent/internal/logger"
	"github.com/Felps0156/SDR-Agent/internal/metrics"
	"github.com/Felps0156/SDR-Agent/internal/orchestrator"
	"github.com/Felps0156/SDR-Agent/internal/service"
	"github.com/Felps0156/SDR-Agent/internal/store"
)

// App wires the configured backends into a booking orchestrator.
type App struct {
	config   *config.Config
	features *service.FeatureConfig
	logger   *logger.Logger

	// In and Out carry the confirmation prompt in "stdin" mode.
	In  io.Reader
	Out io.Writer

	recorder  *metrics.Recorder
	location  *time.Location
	hours     booking.BusinessHours
	orch      *orchestrator.Orchestrator
	readiness handler.Readiness
	closers   []func() error
}

func New(cfg *config.Config, features *service.FeatureConfig, log *logger.Logger) *App {
	if log == nil {
		log = logger.Discard()
	}
	if features == nil {
		features = service.DefaultFeatureConfig()
	}
	loc := booking.LoadLocation(features.Booking.TimeZone)
	return &App{
		config:   cfg,
		features: features,
		logger:   log,
		In:       os.Stdin,
		Out:      os.Stderr,
		recorder: metrics.NewRecorder(),
		location: loc,
		hours:    booking.DefaultBusinessHours(loc),
	}
}

// Initialize connects the calendar backend, the lock and the confirmation
// channel. On failure the app stays usable but every operation reports
// not initialized.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.initialize(ctx); err != nil {
		a.readiness = handler.NotReady(err)
		a.logger.Error("Booking service not initialized", logger.Action("startup"), logger.Error(err))
		return err
	}
	a.readiness = handler.Ready()
	a.logger.Info("Booking service ready",
		logger.Action("startup"),
		logger.Status("ready"),
		logger.F("BACKEND", a.config.CalendarBackend),
		logger.Calendar(a.features.Calendar.CalendarID))
	return nil
}

func (a *App) initialize(ctx context.Context) error {
	if a.config == nil {
		return fmt.Errorf("infrastructure config is missing")
	}
	b := a.features.Booking

	days, err := booking.ParseWeekdays(b.WorkingDays)
	if err != nil {
		return fmt.Errorf("invalid booking.working_days: %w", err)
	}
	a.hours = booking.BusinessHours{
		OpenHour:  b.OpenHour,
		CloseHour: b.CloseHour,
		Days:      days,
		Location:  a.location,
	}

	policy, err := buildPolicy(a.features.Gates)
	if err != nil {
		return err
	}

	calendarStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	instrumented := metrics.InstrumentStore(calendarStore, a.recorder)

	locker, err := a.openLocker()
	if err != nil {
		return err
	}

	gate, err := a.openGate()
	if err != nil {
		return err
	}

	a.orch = &orchestrator.Orchestrator{
		Logger: a.logger,
		Store:  instrumented,
		Normalizer: &booking.Normalizer{
			Location:        a.location,
			DefaultDuration: time.Duration(b.DefaultDurationMinutes) * time.Minute,
		},
		Hours: a.hours,
		Conflicts: &booking.ConflictChecker{
			Store:      instrumented,
			Buffer:     time.Duration(b.BufferMinutes) * time.Minute,
			LeadBuffer: time.Duration(b.LeadBufferMinutes) * time.Minute,
			MaxResults: b.ConflictMaxResults,
		},
		Gate:       gate,
		Locker:     locker,
		Policy:     policy,
		Metrics:    a.recorder,
		CalendarID: a.features.Calendar.CalendarID,
	}
	return nil
}

func buildPolicy(gates service.GatesConfig) (booking.Policy, error) {
	policy := booking.Policy{}
	for op, names := range map[booking.Operation][]string{
		booking.OpCreate: gates.Create,
		booking.OpUpdate: gates.Update,
		booking.OpDelete: gates.Delete,
	} {
		parsed, err := booking.ParseGates(names)
		if err != nil {
			return nil, fmt.Errorf("invalid gates.%s: %w", op, err)
		}
		policy[op] = parsed
	}
	return policy, nil
}

func (a *App) openStore(ctx context.Context) (service.CalendarStore, error) {
	switch a.config.CalendarBackend {
	case config.BackendGoogle:
		svc, err := service.NewCalendarService(ctx, a.features.Calendar, a.location)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize calendar service: %w", err)
		}
		return svc, nil
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(a.config.SQLitePath)
		if err != nil {
			return nil, err
		}
		return a.ownStore(s), nil
	case config.BackendMemory:
		a.logger.Warn("Using in-memory calendar, bookings are lost on exit", logger.Action("startup"))
		return a.ownStore(store.NewMemoryStore()), nil
	default:
		return nil, fmt.Errorf("unsupported calendar backend %q", a.config.CalendarBackend)
	}
}

// ownStore registers a local backend for release on Close.
func (a *App) ownStore(s store.Store) store.Store {
	a.closers = append(a.closers, s.Close)
	return s
}

func (a *App) openLocker() (booking.Locker, error) {
	if !a.config.UseRedis() {
		return booking.NewLocalLocker(), nil
	}
	client, err := store.NewRedisClient(a.config.RedisAddr, a.config.RedisPassword, a.config.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	ttl := time.Duration(a.features.Booking.LockTTLSeconds) * time.Second
	a.logger.Info("Booking lock backed by Redis", logger.Action("startup"), logger.F("REDIS_ADDR", a.config.RedisAddr))
	return store.NewRedisLocker(client, ttl, a.logger), nil
}

func (a *App) openGate() (confirm.Gate, error) {
	c := a.features.Confirmation
	switch c.Mode {
	case "auto_approve":
		a.logger.Warn("Confirmation disabled, every write is approved", logger.Action("startup"))
		return confirm.AutoApprove, nil
	case "auto_deny":
		return confirm.AutoDeny, nil
	case "stdin":
		return a.prompter(confirm.NewPrompter(a.In, a.Out)), nil
	case "tty", "":
		p, closeTTY, err := confirm.TTY()
		if err != nil {
			// Headless deployments still answer reads; writes are refused.
			a.logger.Warn("No terminal for confirmation, writes will be refused", logger.Action("startup"), logger.Error(err))
			return confirm.AutoDeny, nil
		}
		a.closers = append(a.closers, closeTTY)
		return a.prompter(p), nil
	default:
		return nil, fmt.Errorf("unsupported confirmation mode %q", c.Mode)
	}
}

func (a *App) prompter(p *confirm.Prompter) *confirm.Prompter {
	c := a.features.Confirmation
	if len(c.Affirmative) > 0 {
		p.Affirmative = c.Affirmative
	}
	p.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	return p
}

// Orchestrator is nil until Initialize succeeds.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

func (a *App) Readiness() handler.Readiness {
	return a.readiness
}

func (a *App) Recorder() *metrics.Recorder {
	return a.recorder
}

func (a *App) Formatter() handler.Formatter {
	return handler.Formatter{Location: a.location, Hours: a.hours}
}

// Handler returns the MCP tool handler; it answers "not initialized"
// when Initialize failed or was never called.
func (a *App) Handler() *handler.Handler {
	var svc handler.Service
	if a.orch != nil {
		svc = a.orch
	}
	return handler.New(svc, a.readiness, a.Formatter(), a.logger)
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close booking backends: %w", err)
	}
	a.logger.Info("Booking service stopped", logger.Action("shutdown"))
	return nil
}
