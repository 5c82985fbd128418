package initshim

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Multiplexer is the systemctl-compatible control surface. Calls are
// serialized; each one completes before the next begins.
//
// Every invocation succeeds. Verbs it does not act on, and failures of the
// actions it does run, are logged and otherwise ignored so installer
// scripts probing the service manager are never aborted.
type Multiplexer struct {
	ctl   *Controller
	paths PathActivator
	log   *zap.Logger

	mu sync.Mutex
}

// NewMultiplexer creates a Multiplexer. paths may be nil, in which case
// path units are ignored.
func NewMultiplexer(ctl *Controller, paths PathActivator, log *zap.Logger) *Multiplexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Multiplexer{
		ctl:   ctl,
		paths: paths,
		log:   log.Named("systemctl"),
	}
}

// Dispatch handles one systemctl invocation: a verb followed by unit names.
// Flags such as --no-block or -q are skipped wherever they appear.
func (m *Multiplexer) Dispatch(ctx context.Context, args ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	args = stripFlags(args)
	if len(args) == 0 {
		m.log.Info("no verb given, nothing to do")
		return
	}

	verb := ParseVerb(args[0])
	log := m.log.With(zap.Strings("args", args))
	if verb.IsNoop() {
		log.Info("accepted without action", zap.String("verb", args[0]))
		return
	}

	var units []string
	for _, arg := range args[1:] {
		if !strings.HasPrefix(arg, "-") {
			units = append(units, arg)
		}
	}
	if len(units) == 0 {
		log.Info("no units given, nothing to do", zap.Stringer("verb", verb))
		return
	}
	for _, arg := range units {
		name := NormalizeUnitName(arg)
		if !name.Valid() {
			log.Warn("skipping invalid unit name", zap.String("unit", arg))
			continue
		}
		if err := m.apply(ctx, verb, name); err != nil {
			log.Warn("control operation failed", zap.Stringer("verb", verb), zap.Stringer("unit", name), zap.Error(err))
		}
	}
}

func (m *Multiplexer) apply(ctx context.Context, verb Verb, name UnitName) error {
	switch name.Type() {
	case UnitTypePath:
		if m.paths == nil {
			m.log.Info("path units unavailable, ignoring", zap.Stringer("unit", name))
			return nil
		}
		switch verb {
		case VerbStart:
			return m.paths.StartPath(ctx, name)
		case VerbStop:
			return m.paths.StopPath(ctx, name)
		case VerbRestart:
			merr := &MultiError{}
			merr.Add(m.paths.StopPath(ctx, name))
			merr.Add(m.paths.StartPath(ctx, name))
			return merr.Err()
		case VerbReload:
			return m.paths.ReloadPaths(ctx)
		}

	case UnitTypeService:
		switch verb {
		case VerbStart:
			return m.ctl.Start(ctx, name)
		case VerbStop:
			return m.ctl.Stop(ctx, name)
		case VerbReload:
			return m.ctl.Reload(ctx, name)
		case VerbRestart:
			return m.ctl.Restart(ctx, name)
		}
	}

	m.log.Info("unit type not managed, ignoring", zap.Stringer("verb", verb), zap.Stringer("unit", name))
	return nil
}

// stripFlags drops leading dash-prefixed arguments. A bare "--" ends the
// flags.
func stripFlags(args []string) []string {
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		done := args[0] == "--"
		args = args[1:]
		if done {
			break
		}
	}
	return args
}
