package codes

import (
	"errors"
	"fmt"
)

// Process exit codes
const (
	ExitSuccess   = 0
	ExitGeneral   = 1
	ExitConfig    = 2
	ExitTool      = 3
	ExitInvariant = 70
)

// ExitCodes maps build-gcc exit codes to their descriptions
var ExitCodes = map[int]string{
	ExitSuccess:   "Success",
	ExitGeneral:   "General failure",
	ExitConfig:    "Configuration error",
	ExitTool:      "External tool failure",
	ExitInvariant: "Internal invariant violation",
}

// Kind classifies a failure
type Kind int

const (
	KindConfig Kind = iota + 1
	KindTool
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindTool:
		return "external tool failure"
	case KindInvariant:
		return "invariant violation"
	default:
		return "error"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configf returns a configuration error. These are raised before any filesystem mutation.
func Configf(format string, args ...any) error {
	return &Error{Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}

// Tool wraps the failure of an external process
func Tool(op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Kind: KindTool, Op: op, Err: err}
}

// Invariantf reports a bug in identity derivation rather than bad input
func Invariantf(format string, args ...any) error {
	return &Error{Kind: KindInvariant, Err: fmt.Errorf(format, args...)}
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}

func IsConfig(err error) bool    { return kindOf(err) == KindConfig }
func IsTool(err error) bool      { return kindOf(err) == KindTool }
func IsInvariant(err error) bool { return kindOf(err) == KindInvariant }

// ExitCode returns the process exit code for err
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch kindOf(err) {
	case KindConfig:
		return ExitConfig
	case KindTool:
		return ExitTool
	case KindInvariant:
		return ExitInvariant
	default:
		return ExitGeneral
	}
}

// GetErrorMessage returns the description for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ExitCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
