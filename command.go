package initshim

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Command is a unit action such as ExecStart=, split into argv form.
// The zero Command is an absent action.
type Command struct {
	// Raw is the directive value exactly as written in the unit file
	Raw string
	// Argv is the program and its arguments
	Argv []string
	// IgnoreFailure is set by the "-" exec prefix
	IgnoreFailure bool
}

// IsZero reports whether the command is absent.
func (c Command) IsZero() bool {
	return len(c.Argv) == 0
}

// String returns the command line as declared.
func (c Command) String() string {
	return c.Raw
}

// ParseCommand splits an Exec*= value into a Command. The systemd exec
// prefixes "-", "+", "!", "!!" and ":" are stripped; only "-" changes
// behaviour here. An empty value yields the zero Command.
func ParseCommand(raw string) (Command, error) {
	cmd := Command{Raw: raw}

	line := strings.TrimSpace(raw)
prefix:
	for len(line) > 0 {
		switch line[0] {
		case '-':
			cmd.IgnoreFailure = true
		case '+', '!', ':':
		default:
			break prefix
		}
		line = line[1:]
	}

	if line == "" {
		return Command{}, nil
	}

	argv, err := shlex.Split(line)
	if err != nil {
		return Command{}, fmt.Errorf("splitting %q: %w", raw, err)
	}
	cmd.Argv = argv
	return cmd, nil
}
