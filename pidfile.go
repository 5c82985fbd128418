package initshim

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// PIDFile records the process-one PID in the runtime directory.
type PIDFile struct {
	Path string
}

// NewPIDFile returns the PID file for runtimeDir.
func NewPIDFile(runtimeDir string) *PIDFile {
	return &PIDFile{Path: filepath.Join(runtimeDir, PIDFileName)}
}

// Write records pid atomically.
func (p *PIDFile) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), DirMode); err != nil {
		return fmt.Errorf("creating runtime dir: %w", err)
	}
	return renameio.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), FileMode)
}

// Read returns the recorded PID. A missing file yields ErrNoSupervisor.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNoSupervisor
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %s: %q", p.Path, data)
	}
	return pid, nil
}

// Remove deletes the PID file; a missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
