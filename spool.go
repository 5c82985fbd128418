package initshim

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Activation is one queued path-unit request.
type Activation struct {
	Verb string   `yaml:"verb"`
	Unit UnitName `yaml:"unit"`
}

// spoolFile is the on-disk layout of the spool
type spoolFile struct {
	Activations []Activation `yaml:"activations"`
}

// Spool hands path-unit start/stop requests from a standalone systemctl
// invocation to the running process-one. Both sides hold an exclusive lock
// on a sibling lock file while touching the spool.
type Spool struct {
	// Path is the spool file
	Path string
}

// NewSpool creates a Spool stored in runtimeDir.
func NewSpool(runtimeDir string) *Spool {
	return &Spool{Path: filepath.Join(runtimeDir, SpoolFileName)}
}

func (s *Spool) read() (spoolFile, error) {
	var sf spoolFile
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sf, nil
		}
		return sf, err
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("decoding spool %s: %w", s.Path, err)
	}
	return sf, nil
}

func (s *Spool) write(sf spoolFile) error {
	data, err := yaml.Marshal(&sf)
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.Path, data, FileMode)
}

// Append queues one request.
func (s *Spool) Append(a Activation) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), DirMode); err != nil {
		return fmt.Errorf("creating runtime dir: %w", err)
	}

	unlock, err := lockFile(s.Path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	sf, err := s.read()
	if err != nil {
		return err
	}
	sf.Activations = append(sf.Activations, a)
	return s.write(sf)
}

// Drain returns all queued requests in order and empties the spool.
func (s *Spool) Drain() ([]Activation, error) {
	if _, err := os.Stat(filepath.Dir(s.Path)); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	unlock, err := lockFile(s.Path + ".lock")
	if err != nil {
		return nil, err
	}
	defer unlock()

	sf, err := s.read()
	if err != nil {
		return nil, err
	}
	if len(sf.Activations) == 0 {
		return nil, nil
	}
	if err := s.write(spoolFile{}); err != nil {
		return nil, err
	}
	return sf.Activations, nil
}
