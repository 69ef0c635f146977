package cli

import "errors"

// Sentinel errors for exit code classification
var (
	// ErrUsage indicates invalid command usage, flags, or arguments
	ErrUsage = errors.New("usage error")

	// ErrConfig indicates invalid or unsafe configuration
	ErrConfig = errors.New("configuration error")

	// ErrSource indicates certificates that could not be loaded from their source
	ErrSource = errors.New("certificate source error")

	// ErrRuntime indicates runtime execution failures
	ErrRuntime = errors.New("runtime error")

	// ErrInternal indicates internal system errors
	ErrInternal = errors.New("internal error")
)

// Exit codes
const (
	ExitSuccess  = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitConfig   = 3
	ExitSource   = 4
	ExitRuntime  = 5
	ExitInternal = 6
)

// ExitCode maps an error returned by Execute onto a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrSource):
		return ExitSource
	case errors.Is(err, ErrRuntime):
		return ExitRuntime
	case errors.Is(err, ErrInternal):
		return ExitInternal
	default:
		return ExitFailure
	}
}
