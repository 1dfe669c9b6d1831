// Package logging builds the hclog logger shared by every build-gcc component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const Name = "build-gcc"

// Options for New
type Options struct {
	Verbose bool
	JSON    bool
	// Output defaults to os.Stderr
	Output io.Writer
}

// New creates the root logger
func New(opts Options) hclog.Logger {
	var output io.Writer = os.Stderr
	if opts.Output != nil {
		output = opts.Output
	}

	level := hclog.Info
	if opts.Verbose {
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:            Name,
		Level:           level,
		JSONFormat:      opts.JSON,
		Output:          output,
		IncludeLocation: opts.Verbose,
		TimeFormat:      "2006-01-02T15:04:05.000Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Heading logs msg framed by separator rules
func Heading(logger hclog.Logger, msg string, args ...any) {
	rule := strings.Repeat("-", 80)
	logger.Info(rule)
	logger.Info(msg, args...)
	logger.Info(rule)
}
