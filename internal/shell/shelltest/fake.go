// Package shelltest provides a recording shell.Executor for tests.
package shelltest

import (
	"context"
	"strings"
	"sync"

	"github.com/yugabyte/build-gcc/internal/shell"
)

// Fake records every command and answers from scripted handlers
type Fake struct {
	mu       sync.Mutex
	Commands []shell.Command

	// Handler, when set, decides the outcome of each command. The first
	// return value is the command's standard output.
	Handler func(c shell.Command) (string, error)
}

func (f *Fake) Run(ctx context.Context, c shell.Command) error {
	_, err := f.Output(ctx, c)
	return err
}

func (f *Fake) Output(_ context.Context, c shell.Command) (string, error) {
	f.mu.Lock()
	f.Commands = append(f.Commands, c)
	f.mu.Unlock()

	if f.Handler == nil {
		return "", nil
	}

	return f.Handler(c)
}

// Lines renders each recorded command as "name arg1 arg2"
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines := make([]string, 0, len(f.Commands))
	for _, c := range f.Commands {
		lines = append(lines, strings.Join(append([]string{c.Name}, c.Args...), " "))
	}

	return lines
}

// Find returns the first recorded command with the given name
func (f *Fake) Find(name string) (shell.Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.Commands {
		if c.Name == name {
			return c, true
		}
	}

	return shell.Command{}, false
}
