package runner

import (
	"context"
	"errors"
	"fmt"
	"gamewarden/internal/cloud"
	"gamewarden/internal/domain"
	"gamewarden/internal/rcon"
	"gamewarden/internal/server"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyCommand      = errors.New("empty command")
	ErrUnsupportedIntent = errors.New("unsupported intent")
)

type Recorder interface {
	RecordOperation(res domain.Result) error
}

type Publisher interface {
	Publish(server string, ev domain.Event)
}

// Settings holds the tuning knobs of the lifecycle operations.
type Settings struct {
	Password    string
	ControlPort int

	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	SaveSettle     time.Duration
	ShutdownSettle time.Duration

	// ShutdownGrace is the countdown, in seconds on the wire, the game
	// server shows to players before it exits.
	ShutdownGrace   time.Duration
	ShutdownMessage string

	// OperationTimeout bounds the control-session path of one operation.
	// Zero derives it from the other timeouts.
	OperationTimeout time.Duration
	CleanupTimeout   time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		ControlPort:     rcon.DefaultPort,
		ConnectTimeout:  rcon.DefaultConnectTimeout,
		CommandTimeout:  rcon.DefaultCommandTimeout,
		SaveSettle:      15 * time.Second,
		ShutdownSettle:  15 * time.Second,
		ShutdownGrace:   30 * time.Second,
		ShutdownMessage: "Server_is_shutting_down",
		CleanupTimeout:  30 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ControlPort <= 0 {
		s.ControlPort = d.ControlPort
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = d.ConnectTimeout
	}
	if s.CommandTimeout <= 0 {
		s.CommandTimeout = d.CommandTimeout
	}
	if s.SaveSettle < 0 {
		s.SaveSettle = 0
	}
	if s.ShutdownSettle < 0 {
		s.ShutdownSettle = 0
	}
	if s.ShutdownMessage == "" {
		s.ShutdownMessage = d.ShutdownMessage
	}
	if s.CleanupTimeout <= 0 {
		s.CleanupTimeout = d.CleanupTimeout
	}
	if s.OperationTimeout <= 0 {
		s.OperationTimeout = s.ConnectTimeout*2 + s.CommandTimeout*2 + s.SaveSettle + s.ShutdownSettle + 10*time.Second
	}
	return s
}

func (s Settings) shutdownCommand() string {
	secs := int(s.ShutdownGrace / time.Second)
	// the game splits arguments on spaces
	msg := strings.ReplaceAll(strings.TrimSpace(s.ShutdownMessage), " ", "_")
	return fmt.Sprintf("Shutdown %d %s", secs, msg)
}

// Supervisor runs lifecycle operations against registered servers. At most
// one operation per server name is in flight; different names run
// concurrently.
type Supervisor struct {
	Registry *server.Registry
	Cloud    cloud.Controller
	Store    Recorder
	Events   Publisher

	settings Settings
	log      *slog.Logger

	inflight map[string]*activeOperation
	mu       sync.Mutex
}

type activeOperation struct {
	ID     string
	Intent domain.Intent
	Since  time.Time
}

func NewSupervisor(registry *server.Registry, controller cloud.Controller, store Recorder, events Publisher, settings Settings, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		Registry: registry,
		Cloud:    controller,
		Store:    store,
		Events:   events,
		settings: settings.withDefaults(),
		log:      logger.With("component", "supervisor"),
		inflight: make(map[string]*activeOperation),
	}
}

func (s *Supervisor) Settings() Settings { return s.settings }

// Servers lists every registered server together with the operation, if
// any, that currently holds it.
func (s *Supervisor) Servers() []domain.ServerStatus {
	names := s.Registry.Names()
	out := make([]domain.ServerStatus, 0, len(names))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		p, _ := s.Registry.Lookup(name)
		st := domain.ServerStatus{Name: name, Region: p.Account.Region}
		if op, ok := s.inflight[name]; ok {
			since := op.Since
			st.Busy = true
			st.Intent = op.Intent
			st.Since = &since
		}
		out = append(out, st)
	}
	return out
}

func (s *Supervisor) acquire(name string, op *domain.Result) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, exists := s.inflight[name]; exists {
		return nil, fmt.Errorf("%w: %s is running %s (%s)", domain.ErrOperationInProgress, name, cur.Intent, cur.ID)
	}
	s.inflight[name] = &activeOperation{ID: op.ID, Intent: op.Intent, Since: op.StartedAt}

	return func() {
		s.mu.Lock()
		delete(s.inflight, name)
		s.mu.Unlock()
	}, nil
}

// Do dispatches a start, stop or graceful-stop request. Exec carries a
// command and has its own entry point.
func (s *Supervisor) Do(ctx context.Context, req domain.LifecycleRequest) (domain.Result, error) {
	switch req.Intent {
	case domain.IntentStart:
		return s.StartByName(ctx, req.Server)
	case domain.IntentStop:
		return s.StopByName(ctx, req.Server)
	case domain.IntentGracefulStop:
		return s.GracefulStopByName(ctx, req.Server)
	default:
		op := s.begin(req.Server, req.Intent)
		if _, err := s.Registry.Lookup(req.Server); err != nil {
			return s.finish(op, domain.StatusRejected, err)
		}
		return s.finish(op, domain.StatusRejected, fmt.Errorf("%w: %q", ErrUnsupportedIntent, req.Intent))
	}
}

func (s *Supervisor) StartByName(ctx context.Context, name string) (domain.Result, error) {
	return s.scale(ctx, name, domain.IntentStart, 1)
}

func (s *Supervisor) StopByName(ctx context.Context, name string) (domain.Result, error) {
	return s.scale(ctx, name, domain.IntentStop, 0)
}

func (s *Supervisor) scale(ctx context.Context, name string, intent domain.Intent, count int) (domain.Result, error) {
	op := s.begin(name, intent)

	profile, err := s.Registry.Lookup(name)
	if err != nil {
		return s.finish(op, domain.StatusRejected, err)
	}
	release, err := s.acquire(name, op)
	if err != nil {
		return s.finish(op, domain.StatusRejected, err)
	}
	defer release()
	s.emit(op, domain.StepAccepted, "")

	if err := s.Cloud.SetDesiredCount(ctx, profile.Account, count); err != nil {
		return s.finish(op, domain.StatusFailed, err)
	}
	s.emit(op, domain.StepScaled, fmt.Sprintf("desired count set to %d", count))

	return s.finish(op, domain.StatusCompleted, nil)
}

// GracefulStopByName saves the world over RCON, asks the game to shut down,
// and scales the service to zero. Unless the server has no running task,
// scale-to-zero is attempted even when the console path fails.
func (s *Supervisor) GracefulStopByName(ctx context.Context, name string) (domain.Result, error) {
	op := s.begin(name, domain.IntentGracefulStop)

	profile, err := s.Registry.Lookup(name)
	if err != nil {
		return s.finish(op, domain.StatusRejected, err)
	}
	release, err := s.acquire(name, op)
	if err != nil {
		return s.finish(op, domain.StatusRejected, err)
	}
	defer release()
	s.emit(op, domain.StepAccepted, "")

	opCtx, cancel := context.WithTimeout(ctx, s.settings.OperationTimeout)
	defer cancel()

	endpoint, err := s.Cloud.ResolvePublicEndpoint(opCtx, profile.Account)
	if errors.Is(err, cloud.ErrNoRunningTask) {
		return s.finish(op, domain.StatusRejected, fmt.Errorf("%w: %s: %v", domain.ErrEndpointUnavailable, name, err))
	}
	if err != nil {
		return s.degrade(ctx, op, profile, fmt.Errorf("resolve endpoint: %w", err))
	}
	op.Endpoint = endpoint
	s.emit(op, domain.StepResolved, endpoint)

	if err := s.saveAndShutdown(opCtx, op, endpoint); err != nil {
		return s.degrade(ctx, op, profile, err)
	}

	if err := s.scaleToZero(ctx, op, profile); err != nil {
		return s.finish(op, domain.StatusFailed, err)
	}
	return s.finish(op, domain.StatusCompleted, nil)
}

func (s *Supervisor) saveAndShutdown(ctx context.Context, op *domain.Result, endpoint string) error {
	sess, err := s.dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer sess.Close()
	s.emit(op, domain.StepConnected, sess.Addr())

	out, err := sess.SendCommand(ctx, "Save")
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	s.emit(op, domain.StepSaved, strings.TrimSpace(out))

	if err := sleep(ctx, s.settings.SaveSettle); err != nil {
		return fmt.Errorf("waiting for save: %w", err)
	}

	out, err = sess.SendCommand(ctx, s.settings.shutdownCommand())
	switch {
	case errors.Is(err, rcon.ErrConnectionClosed):
		// the process went away before answering
		s.log.Info("connection closed after shutdown", "server", op.Server, "operation", op.ID)
		out = "connection closed"
	case err != nil:
		return fmt.Errorf("shutdown: %w", err)
	}
	s.emit(op, domain.StepShutdown, strings.TrimSpace(out))

	if err := sleep(ctx, s.settings.ShutdownSettle); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	return nil
}

// Exec runs one console command on a running server. It never scales.
func (s *Supervisor) Exec(ctx context.Context, name, command string) (domain.Result, error) {
	op := s.begin(name, domain.IntentExec)

	profile, err := s.Registry.Lookup(name)
	if err != nil {
		return s.finish(op, domain.StatusRejected, err)
	}
	if strings.TrimSpace(command) == "" {
		return s.finish(op, domain.StatusRejected, ErrEmptyCommand)
	}
	release, err := s.acquire(name, op)
	if err != nil {
		return s.finish(op, domain.StatusRejected, err)
	}
	defer release()
	s.emit(op, domain.StepAccepted, command)

	opCtx, cancel := context.WithTimeout(ctx, s.settings.ConnectTimeout*2+s.settings.CommandTimeout)
	defer cancel()

	endpoint, err := s.Cloud.ResolvePublicEndpoint(opCtx, profile.Account)
	if errors.Is(err, cloud.ErrNoRunningTask) {
		return s.finish(op, domain.StatusRejected, fmt.Errorf("%w: %s: %v", domain.ErrEndpointUnavailable, name, err))
	}
	if err != nil {
		return s.finish(op, domain.StatusFailed, fmt.Errorf("resolve endpoint: %w", err))
	}
	op.Endpoint = endpoint
	s.emit(op, domain.StepResolved, endpoint)

	sess, err := s.dial(opCtx, endpoint)
	if err != nil {
		return s.finish(op, domain.StatusFailed, err)
	}
	defer sess.Close()

	out, err := sess.SendCommand(opCtx, command)
	if err != nil {
		return s.finish(op, domain.StatusFailed, fmt.Errorf("%s: %w", command, err))
	}
	op.Output = out
	s.emit(op, domain.StepCommand, out)

	return s.finish(op, domain.StatusCompleted, nil)
}

func (s *Supervisor) dial(ctx context.Context, endpoint string) (*rcon.Session, error) {
	return rcon.Dial(ctx, endpoint, s.settings.ControlPort, s.settings.Password, rcon.Options{
		ConnectTimeout: s.settings.ConnectTimeout,
		CommandTimeout: s.settings.CommandTimeout,
		Logger:         s.log,
	})
}

// degrade runs the scale-to-zero cleanup after a failed console path and
// returns cause. The cleanup gets its own deadline so a cancelled or
// expired caller context cannot skip it.
func (s *Supervisor) degrade(ctx context.Context, op *domain.Result, profile domain.ServerProfile, cause error) (domain.Result, error) {
	s.log.Warn("graceful stop failed, scaling down anyway", "server", op.Server, "operation", op.ID, "error", cause)
	s.emit(op, domain.StepFailed, cause.Error())

	if err := s.scaleToZero(ctx, op, profile); err != nil {
		s.log.Error("cleanup scale-down failed", "server", op.Server, "operation", op.ID, "error", err)
		res, _ := s.finish(op, domain.StatusFailed, errors.Join(cause, err))
		return res, cause
	}
	return s.finish(op, domain.StatusDegraded, cause)
}

func (s *Supervisor) scaleToZero(ctx context.Context, op *domain.Result, profile domain.ServerProfile) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.CleanupTimeout)
	defer cancel()

	if err := s.Cloud.SetDesiredCount(cleanupCtx, profile.Account, 0); err != nil {
		return err
	}
	s.emit(op, domain.StepScaled, "desired count set to 0")
	return nil
}

func (s *Supervisor) begin(name string, intent domain.Intent) *domain.Result {
	return &domain.Result{
		ID:        uuid.New().String(),
		Server:    name,
		Intent:    intent,
		StartedAt: time.Now().UTC(),
	}
}

func (s *Supervisor) finish(op *domain.Result, status domain.Status, err error) (domain.Result, error) {
	op.Status = status
	op.FinishedAt = time.Now().UTC()
	if err != nil {
		op.Error = err.Error()
	}

	attrs := []any{"server", op.Server, "intent", op.Intent, "operation", op.ID, "status", status, "elapsed", op.FinishedAt.Sub(op.StartedAt)}
	switch status {
	case domain.StatusCompleted:
		s.log.Info("operation finished", attrs...)
	case domain.StatusRejected:
		s.log.Info("operation rejected", append(attrs, "reason", err)...)
	default:
		s.log.Error("operation failed", append(attrs, "error", err)...)
	}

	if errors.Is(err, domain.ErrUnknownServer) {
		return *op, err
	}
	if s.Store != nil {
		if rerr := s.Store.RecordOperation(*op); rerr != nil {
			s.log.Warn("could not record operation", "operation", op.ID, "error", rerr)
		}
	}
	s.emit(op, domain.StepDone, string(status))

	return *op, err
}

func (s *Supervisor) emit(op *domain.Result, step, message string) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(op.Server, domain.Event{
		Server:      op.Server,
		OperationID: op.ID,
		Intent:      op.Intent,
		Step:        step,
		Message:     message,
		Time:        time.Now().UTC(),
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
