package initshim

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Controller runs service actions. It looks the unit up in the Store on
// every call and does not track the processes its actions start.
type Controller struct {
	store *Store
	exec  Executor
	log   *zap.Logger
}

// NewController creates a Controller. A nil Executor means ExecExecutor.
func NewController(store *Store, exec Executor, log *zap.Logger) *Controller {
	if exec == nil {
		exec = &ExecExecutor{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		store: store,
		exec:  exec,
		log:   log.Named("controller"),
	}
}

// Start runs the unit's ExecStart= action.
func (c *Controller) Start(ctx context.Context, name UnitName) error {
	return c.run(ctx, VerbStart, name)
}

// Stop runs the unit's ExecStop= action.
func (c *Controller) Stop(ctx context.Context, name UnitName) error {
	return c.run(ctx, VerbStop, name)
}

// Reload runs the unit's ExecReload= action.
func (c *Controller) Reload(ctx context.Context, name UnitName) error {
	return c.run(ctx, VerbReload, name)
}

// Restart runs the stop action and then the start action. The start action
// runs even if stopping failed.
func (c *Controller) Restart(ctx context.Context, name UnitName) error {
	merr := &MultiError{}
	merr.Add(c.run(ctx, VerbStop, name))
	merr.Add(c.run(ctx, VerbStart, name))
	return merr.Err()
}

func (c *Controller) run(ctx context.Context, verb Verb, name UnitName) error {
	desc, err := c.store.LoadService(name)
	if err != nil {
		if !desc.Found() {
			return &OpError{Op: verb, Unit: name, Err: err}
		}
		// A partly malformed unit still runs the actions that parsed.
		c.log.Warn("unit file has errors", zap.Stringer("unit", name), zap.Error(err))
	}

	cmd := desc.Action(verb)
	if cmd.IsZero() {
		c.log.Debug("no action, nothing to do", zap.Stringer("unit", name), zap.Stringer("verb", verb))
		return nil
	}

	log := c.log.With(zap.Stringer("unit", name), zap.Stringer("verb", verb), zap.Strings("argv", cmd.Argv))
	log.Info("running action")

	start := time.Now()
	err = c.exec.Run(ctx, cmd)
	if err == nil {
		log.Info("action finished", zap.Duration("took", time.Since(start)))
		return nil
	}

	var exitErr *ExitError
	if cmd.IgnoreFailure && errors.As(err, &exitErr) {
		log.Info("action failed, ignored", zap.Int("status", exitErr.Code))
		return nil
	}
	log.Warn("action failed", zap.Error(err))
	return &OpError{Op: verb, Unit: name, Err: err}
}
