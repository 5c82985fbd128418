package initshim

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	"go.uber.org/zap"
)

// Unit file sections and directives read by the Store. Everything else in a
// unit file is ignored.
const (
	sectionService = "Service"
	sectionPath    = "Path"

	directiveExecStart    = "ExecStart"
	directiveExecStop     = "ExecStop"
	directiveExecReload   = "ExecReload"
	directivePathModified = "PathModified"
	directivePathChanged  = "PathChanged"
	directiveUnit         = "Unit"
)

// ServiceDescriptor holds the actions of a service unit.
type ServiceDescriptor struct {
	// Name is the unit the descriptor was loaded for
	Name UnitName
	// Source is the unit file it was parsed from, empty if none was found
	Source string
	// Start is the ExecStart= action
	Start Command
	// Stop is the ExecStop= action
	Stop Command
	// Reload is the ExecReload= action
	Reload Command
}

// Found reports whether a unit file backed the descriptor.
func (d ServiceDescriptor) Found() bool {
	return d.Source != ""
}

// Action returns the command bound to a verb. Verbs without an action,
// and absent actions, return the zero Command.
func (d ServiceDescriptor) Action(v Verb) Command {
	switch v {
	case VerbStart:
		return d.Start
	case VerbStop:
		return d.Stop
	case VerbReload:
		return d.Reload
	default:
		return Command{}
	}
}

// PathUnit maps a watched absolute path to the unit it activates.
type PathUnit struct {
	// Name is the path unit itself, e.g. "reindex.path"
	Name UnitName
	// Source is the unit file it was parsed from, empty if none was found
	Source string
	// Path is the watched path, kept verbatim
	Path string
	// Unit is the unit started when Path changes
	Unit UnitName
}

// Found reports whether a unit file backed the path unit.
func (p PathUnit) Found() bool {
	return p.Source != ""
}

// Store reads unit files from a fixed list of directories. Nothing is
// cached: every lookup parses the file again so edits apply to the next
// control operation.
type Store struct {
	dirs []string
	log  *zap.Logger
}

// NewStore creates a Store searching dirs in order. With no dirs the
// DefaultUnitDirs are used.
func NewStore(log *zap.Logger, dirs ...string) *Store {
	if len(dirs) == 0 {
		dirs = DefaultUnitDirs
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		dirs: append([]string(nil), dirs...),
		log:  log.Named("units"),
	}
}

// Dirs returns the unit directories in search order.
func (s *Store) Dirs() []string {
	return append([]string(nil), s.dirs...)
}

// find returns the first unit file named after the unit.
func (s *Store) find(name UnitName) (string, bool, error) {
	if !name.Valid() {
		return "", false, ErrInvalidUnitName
	}
	for _, dir := range s.dirs {
		p := filepath.Join(dir, string(name))
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", false, err
		}
		if info.IsDir() {
			continue
		}
		return p, true, nil
	}
	return "", false, nil
}

// options parses a unit file into its option list.
func (s *Store) options(path string) ([]*unit.UnitOption, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	opts, err := unit.DeserializeOptions(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return opts, nil
}

// LoadService loads the descriptor for a service unit. A unit without a
// file yields an empty descriptor and a nil error.
func (s *Store) LoadService(name UnitName) (ServiceDescriptor, error) {
	desc := ServiceDescriptor{Name: name}

	path, ok, err := s.find(name)
	if err != nil {
		return desc, &UnitError{Unit: name, Err: err}
	}
	if !ok {
		s.log.Info("no unit file, treating as empty", zap.Stringer("unit", name))
		return desc, nil
	}

	opts, err := s.options(path)
	if err != nil {
		return desc, &UnitError{Unit: name, Err: err}
	}
	desc.Source = path

	merr := &MultiError{}
	for _, opt := range opts {
		if opt.Section != sectionService {
			continue
		}
		var target *Command
		switch opt.Name {
		case directiveExecStart:
			target = &desc.Start
		case directiveExecStop:
			target = &desc.Stop
		case directiveExecReload:
			target = &desc.Reload
		default:
			continue
		}
		// Later assignments win and an empty assignment clears the action.
		cmd, err := ParseCommand(opt.Value)
		if err != nil {
			merr.Add(&UnitError{Unit: name, Err: err})
			continue
		}
		*target = cmd
	}

	s.log.Debug("loaded service",
		zap.Stringer("unit", name),
		zap.String("source", path),
		zap.Stringer("start", desc.Start),
		zap.Stringer("stop", desc.Stop),
		zap.Stringer("reload", desc.Reload))

	return desc, merr.Err()
}

// LoadPath loads a path unit. A unit without a file yields an empty
// PathUnit and a nil error.
func (s *Store) LoadPath(name UnitName) (PathUnit, error) {
	pu := PathUnit{Name: name}

	path, ok, err := s.find(name)
	if err != nil {
		return pu, &UnitError{Unit: name, Err: err}
	}
	if !ok {
		s.log.Info("no unit file, treating as empty", zap.Stringer("unit", name))
		return pu, nil
	}

	opts, err := s.options(path)
	if err != nil {
		return pu, &UnitError{Unit: name, Err: err}
	}
	pu.Source = path

	for _, opt := range opts {
		if opt.Section != sectionPath {
			continue
		}
		switch opt.Name {
		case directivePathModified, directivePathChanged:
			pu.Path = strings.TrimSpace(opt.Value)
		case directiveUnit:
			pu.Unit = UnitName(strings.TrimSpace(opt.Value))
		}
	}

	if pu.Unit == "" {
		pu.Unit = UnitName(name.Base() + ServiceSuffix)
	}

	switch {
	case pu.Path == "":
		return pu, &UnitError{Unit: name, Err: ErrNoWatchedPath}
	case !filepath.IsAbs(pu.Path):
		return pu, &UnitError{Unit: name, Err: fmt.Errorf("%w: %s", ErrPathNotAbsolute, pu.Path)}
	}

	s.log.Debug("loaded path unit",
		zap.Stringer("unit", name),
		zap.String("path", pu.Path),
		zap.Stringer("activates", pu.Unit))

	return pu, nil
}

// ListPathUnits loads every *.path unit in the unit directories. When the
// same file name exists in several directories the first one wins.
// Unreadable directories and units that fail to load are skipped and
// reported in the returned MultiError.
func (s *Store) ListPathUnits() ([]PathUnit, error) {
	seen := make(map[UnitName]struct{})
	var names []UnitName
	merr := &MultiError{}

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			merr.Add(fmt.Errorf("reading unit dir %s: %w", dir, err))
			continue
		}
		for _, e := range entries {
			name := UnitName(e.Name())
			if e.IsDir() || name.Type() != UnitTypePath {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	units := make([]PathUnit, 0, len(names))
	for _, name := range names {
		pu, err := s.LoadPath(name)
		if err != nil {
			merr.Add(err)
			continue
		}
		units = append(units, pu)
	}
	return units, merr.Err()
}
