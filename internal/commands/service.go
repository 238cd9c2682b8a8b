// Package commands is the operator command surface shared by the admin API
// and the interactive console. Every command runs on the host loop so the
// scheduler is never touched concurrently.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"autoshutdown/internal/host"
	"autoshutdown/internal/scheduler"
	"autoshutdown/internal/timecodec"
	"autoshutdown/internal/types"
)

// Keys echoed back in confirmations. The delay keys are never persisted.
const (
	KeyEnableTimer = scheduler.KeyEnableTimer
	KeyTimer       = scheduler.KeyTimer
	KeyEnableDelay = "enable-delay"
	KeyDelay       = "delay"
)

// Executor runs work on the goroutine that owns the scheduler.
type Executor interface {
	Do(ctx context.Context, fn host.Func) error
}

// Result is the operator-facing outcome of a command.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Service implements the operator commands.
type Service struct {
	exec       Executor
	scheduler  *scheduler.DeadlineScheduler
	controller *scheduler.ShutdownController
	clock      types.Clock
	logger     *slog.Logger
}

// NewService creates a Service.
func NewService(
	exec Executor,
	sched *scheduler.DeadlineScheduler,
	controller *scheduler.ShutdownController,
	clock types.Clock,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		exec:       exec,
		scheduler:  sched,
		controller: controller,
		clock:      clock,
		logger:     logger,
	}
}

// EnableTimer turns the daily timer on or off and persists the choice.
func (s *Service) EnableTimer(ctx context.Context, enabled bool) (Result, error) {
	if err := s.authorize(ctx, KeyEnableTimer); err != nil {
		return Result{}, err
	}
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		return s.scheduler.SetRecurring(ctx, enabled, "")
	})
	return s.result(KeyEnableTimer, strconv.FormatBool(enabled), err)
}

// SetTimer sets the daily shutdown time of day without changing whether the
// timer is enabled.
func (s *Service) SetTimer(ctx context.Context, text string) (Result, error) {
	if err := s.authorize(ctx, KeyTimer); err != nil {
		return Result{}, err
	}
	var value string
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		st := s.scheduler.State()
		err := s.scheduler.SetRecurring(ctx, st.Recurring.Enabled, text)
		value = timecodec.FormatClock(st.Recurring.Offset)
		return err
	})
	return s.result(KeyTimer, value, err)
}

// EnableDelay turns the one-shot delay on or off. Enabling restarts the
// countdown from now.
func (s *Service) EnableDelay(ctx context.Context, enabled bool) (Result, error) {
	if err := s.authorize(ctx, KeyEnableDelay); err != nil {
		return Result{}, err
	}
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		return s.scheduler.SetOneShot(ctx, enabled, "")
	})
	return s.result(KeyEnableDelay, strconv.FormatBool(enabled), err)
}

// SetDelay sets the one-shot delay and restarts it from now.
func (s *Service) SetDelay(ctx context.Context, text string) (Result, error) {
	if err := s.authorize(ctx, KeyDelay); err != nil {
		return Result{}, err
	}
	var value string
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		st := s.scheduler.State()
		err := s.scheduler.SetOneShot(ctx, st.OneShot.Enabled, text)
		value = timecodec.FormatClock(st.OneShot.Duration)
		return err
	})
	return s.result(KeyDelay, value, err)
}

// Status returns a snapshot of the countdown. It needs no privilege.
func (s *Service) Status(ctx context.Context) (scheduler.Status, error) {
	var st scheduler.Status
	err := s.exec.Do(ctx, func(context.Context) error {
		st = s.controller.Status(s.clock.Now())
		return nil
	})
	return st, err
}

// authorize rejects callers without operator privilege.
func (s *Service) authorize(ctx context.Context, command string) error {
	actor, ok := types.GetActor(ctx)
	if !ok || !actor.Operator {
		s.logger.Warn("operator command rejected", "command", command, "actor", actor.ID)
		return types.NewAppError(types.ErrCodePermissionOperator, "operator privilege required", nil)
	}
	s.logger.Info("operator command",
		"command", command,
		"actor", actor.ID,
		"actor_type", string(actor.Type),
		"request_id", types.GetRequestID(ctx),
	)
	return nil
}

// result turns a scheduler outcome into a Result.
//
// A persistence failure still reports the new value, since the change is live
// in memory, but the Result is not OK and the error is returned as well.
func (s *Service) result(key, value string, err error) (Result, error) {
	switch {
	case err == nil:
		return Result{OK: true, Message: fmt.Sprintf("%s set to %s", key, value)}, nil
	case types.IsPersistenceError(err):
		return Result{
			OK:      false,
			Message: fmt.Sprintf("%s set to %s. Failed to write config file: %s", key, value, cause(err)),
		}, err
	default:
		return Result{}, err
	}
}

// cause returns the innermost error text.
func cause(err error) string {
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(err) {
		err = next
	}
	return err.Error()
}
